package handlers

import (
	"errors"
	"net/http"
	"time"

	"research-planner-api/internal/database"
	"research-planner-api/internal/models"
	"research-planner-api/internal/workflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

/*
*
GenerateWeeklySchedule handles POST /api/schedules/generate-weekly
Places ready tasks into the 7-day window starting at week_start.
*/
func GenerateWeeklySchedule(c *gin.Context) {
	var req workflow.GenerateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := svc().GenerateWeeklySchedule(req)
	if err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "schedule_generated", map[string]any{
		"week_start": result.WeekStart.Format("2006-01-02"),
		"count":      len(result.Schedules),
	})
	c.JSON(http.StatusOK, result)
}

/*
*
RescheduleDay handles POST /api/schedules/reschedule
Cancels conflicting entries on a date and re-places the residual work.
*/
func RescheduleDay(c *gin.Context) {
	var req workflow.RescheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := svc().Reschedule(req)
	if err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "schedule_rescheduled", map[string]any{
		"date":            req.Date.Format("2006-01-02"),
		"cancelled_count": len(result.CancelledSchedules),
	})
	c.JSON(http.StatusOK, result)
}

// GetSchedules handles GET /api/schedules
// Lists schedule entries, optionally filtered by date range and task.
func GetSchedules(c *gin.Context) {
	db := database.GetDB()
	query := db.Model(&models.Schedule{})

	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date: " + from})
			return
		}
		query = query.Where("scheduled_date >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date: " + to})
			return
		}
		query = query.Where("scheduled_date <= ?", t)
	}
	if taskID := c.Query("task_id"); taskID != "" {
		query = query.Where("task_id = ?", taskID)
	}

	var schedules []models.Schedule
	if err := query.Order("scheduled_date asc").Find(&schedules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch schedules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// UpdateScheduleStatusRequest changes one schedule entry's status.
type UpdateScheduleStatusRequest struct {
	Status models.ScheduleStatus `json:"status" binding:"required"`
}

var validScheduleStatuses = map[models.ScheduleStatus]bool{
	models.ScheduleScheduled: true,
	models.ScheduleCompleted: true,
	models.ScheduleSkipped:   true,
}

// UpdateScheduleStatus handles PATCH /api/schedules/:id/status
func UpdateScheduleStatus(c *gin.Context) {
	scheduleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateScheduleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validScheduleStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + string(req.Status)})
		return
	}

	db := database.GetDB()
	var schedule models.Schedule
	if err := db.First(&schedule, scheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Schedule entry not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch schedule entry"})
		}
		return
	}

	schedule.Status = req.Status
	if err := db.Model(&schedule).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update schedule entry"})
		return
	}

	c.JSON(http.StatusOK, schedule)
}
