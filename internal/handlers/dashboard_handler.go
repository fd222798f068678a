package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

/*
*
GetDashboardSummary handles GET /api/dashboard/summary
Returns the dashboard header: today's and this week's progress, urgent
task counts and the timer state.
*/
func GetDashboardSummary(c *gin.Context) {
	view, err := svc().Overview(time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetDashboardToday handles GET /api/dashboard/today
func GetDashboardToday(c *gin.Context) {
	view, err := svc().TodayOverview(time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetDashboardWeekly handles GET /api/dashboard/weekly
// Accepts week_start=YYYY-MM-DD; any day within the target week works.
// Defaults to the current week.
func GetDashboardWeekly(c *gin.Context) {
	target := time.Now()
	if raw := c.Query("week_start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid week_start, expected YYYY-MM-DD"})
			return
		}
		target = parsed
	}

	report, err := svc().WeeklyReport(target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
