package planner

import (
	"time"

	"research-planner-api/internal/models"
)

// BlockedWindow is an ad-hoc unavailable time span on a day. Hours is
// used for capacity accounting when start/end are absent.
type BlockedWindow struct {
	Start *time.Time
	End   *time.Time
}

// Hours returns the window's length in hours, 0 when open-ended.
func (w BlockedWindow) Hours() float64 {
	if w.Start == nil || w.End == nil {
		return 0
	}
	return w.End.Sub(*w.Start).Hours()
}

// CancelPlan is the first half of a reschedule: which entries to cancel
// and how many residual hours per task must be re-placed.
type CancelPlan struct {
	CancelledIDs  []uint
	ResidualHours map[uint]float64
}

// PlanCancellations decides which of a day's schedule entries conflict
// with the blocked windows. Completed entries are never touched; skipped
// entries carry no hours. With fullDay true (or no windows given) every
// remaining scheduled entry on the day is cancelled. Entries without
// start/end times occupy no fixed slot and are treated as conflicting,
// since the day's capacity they relied on is gone.
func PlanCancellations(entries []models.Schedule, windows []BlockedWindow, fullDay bool) CancelPlan {
	plan := CancelPlan{ResidualHours: make(map[uint]float64)}
	for _, e := range entries {
		if e.Status != models.ScheduleScheduled {
			continue
		}
		if !fullDay && len(windows) > 0 && !overlapsAny(e, windows) {
			continue
		}
		plan.CancelledIDs = append(plan.CancelledIDs, e.ID)
		plan.ResidualHours[e.TaskID] += e.PlannedHours
	}
	return plan
}

func overlapsAny(e models.Schedule, windows []BlockedWindow) bool {
	if e.StartTime == nil || e.EndTime == nil {
		return true
	}
	for _, w := range windows {
		if w.Start == nil || w.End == nil {
			return true
		}
		if w.Start.Before(*e.EndTime) && e.StartTime.Before(*w.End) {
			return true
		}
	}
	return false
}

// ApplyBlockedWindows subtracts the blocked spans from a day's capacity
// before the scheduler re-places residual work. Open-ended windows zero
// the day.
func ApplyBlockedWindows(cal *Calendar, date time.Time, windows []BlockedWindow, fullDay bool) {
	if fullDay || len(windows) == 0 {
		cal.BlockAll(date)
		return
	}
	for _, w := range windows {
		h := w.Hours()
		if h <= 0 {
			cal.BlockAll(date)
			return
		}
		cal.Block(date, h)
	}
}
