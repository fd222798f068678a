package workflow

import (
	"testing"
	"time"

	"research-planner-api/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func scheduleOn(t *testing.T, db *gorm.DB, taskID uint, date time.Time, hours float64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Schedule{
		TaskID:        taskID,
		ScheduledDate: date,
		PlannedHours:  hours,
		Status:        models.ScheduleScheduled,
		IsGenerated:   true,
	}).Error)
}

func TestWeeklyReport_TotalsAndGrouping(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&models.Project{Name: "thesis"}).Error)
	inProject := createTask(t, db, "write chapter", hoursPtr(8))
	require.NoError(t, db.Model(inProject).Update("project_id", 1).Error)
	loose := createTask(t, db, "reviews", hoursPtr(4))

	scheduleOn(t, db, inProject.ID, weekMonday, 2)
	scheduleOn(t, db, loose.ID, weekMonday.AddDate(0, 0, 1), 3)
	logTime(t, db, inProject.ID, 90) // Monday, 1.5h

	report, err := svc.WeeklyReport(weekMonday)
	require.NoError(t, err)

	require.True(t, report.WeekStart.Equal(weekMonday))
	require.Len(t, report.Daily, 7)
	require.Equal(t, "Mon", report.Daily[0].Day)
	require.InDelta(t, 2.0, report.Daily[0].PlannedHours, 1e-9)
	require.InDelta(t, 1.5, report.Daily[0].ActualHours, 1e-9)
	require.InDelta(t, 3.0, report.Daily[1].PlannedHours, 1e-9)

	require.InDelta(t, 5.0, report.Totals.PlannedHours, 1e-9)
	require.InDelta(t, 1.5, report.Totals.ActualHours, 1e-9)

	require.Len(t, report.Totals.ByProject, 1)
	require.Equal(t, "thesis", report.Totals.ByProject[0].Name)
	require.InDelta(t, 1.5, report.Totals.ByProject[0].Hours, 1e-9)
}

func TestWeeklyReport_SnapsToMonday(t *testing.T) {
	svc, db := newTestService(t)
	task := createTask(t, db, "midweek work", hoursPtr(2))
	scheduleOn(t, db, task.ID, weekMonday, 2)

	// A Wednesday input reports on the week containing it.
	report, err := svc.WeeklyReport(weekMonday.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.True(t, report.WeekStart.Equal(weekMonday))
	require.InDelta(t, 2.0, report.Totals.PlannedHours, 1e-9)
}

func TestTodayOverview_SummaryAndViews(t *testing.T) {
	svc, db := newTestService(t)
	task := createTask(t, db, "morning analysis", hoursPtr(6))
	scheduleOn(t, db, task.ID, weekMonday, 4)
	logTime(t, db, task.ID, 60)

	view, err := svc.TodayOverview(weekMonday.Add(10 * time.Hour))
	require.NoError(t, err)

	require.True(t, view.Date.Equal(weekMonday))
	require.False(t, view.Timer.IsRunning)
	require.Len(t, view.Schedules, 1)
	require.Equal(t, "morning analysis", view.Schedules[0].TaskName)

	require.InDelta(t, 4.0, view.Summary.PlannedHours, 1e-9)
	require.InDelta(t, 1.0, view.Summary.ActualHours, 1e-9)
	require.InDelta(t, 3.0, view.Summary.RemainingHours, 1e-9)
}

func TestOverview_UrgentCountsAndTargets(t *testing.T) {
	svc, db := newTestService(t)
	now := weekMonday.Add(12 * time.Hour)

	yesterday := weekMonday.AddDate(0, 0, -1)
	thursday := weekMonday.AddDate(0, 0, 3)
	overdue := createTask(t, db, "late report", hoursPtr(2))
	require.NoError(t, db.Model(overdue).Update("deadline", yesterday).Error)
	dueSoon := createTask(t, db, "slides", hoursPtr(2))
	require.NoError(t, db.Model(dueSoon).Update("deadline", thursday).Error)

	// A finished task with a past deadline is not urgent.
	finished := createTask(t, db, "old errand", hoursPtr(1))
	require.NoError(t, db.Model(finished).Updates(map[string]any{
		"deadline": yesterday, "status": models.StatusDone,
	}).Error)

	blocker := createTask(t, db, "data cleanup", hoursPtr(2))
	blocked := createTask(t, db, "modeling", hoursPtr(2))
	require.NoError(t, db.Create(&models.TaskDependency{
		TaskID: blocked.ID, DependsOnTaskID: blocker.ID,
	}).Error)

	view, err := svc.Overview(now)
	require.NoError(t, err)

	require.Equal(t, 1, view.Urgent.OverdueTasks)
	require.Equal(t, 1, view.Urgent.DueThisWeek)
	require.Equal(t, 1, view.Urgent.BlockedTasks)

	// Default capacity is six hours Monday through Friday.
	require.InDelta(t, 30.0, view.ThisWeek.TargetHours, 1e-9)
}
