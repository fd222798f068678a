package workflow

import (
	"encoding/json"
	"time"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"
	"research-planner-api/internal/planner"

	"gorm.io/gorm"
)

// weekdayNames maps the wire format of the daily-hours preference map.
var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// SchedulePreferences is the wire form of scheduling preferences.
type SchedulePreferences struct {
	DailyHours            map[string]float64 `json:"daily_hours"`
	AvoidContextSwitch    bool               `json:"avoid_context_switch"`
	MaxHoursPerTaskPerDay float64            `json:"max_hours_per_task_per_day"`
	FocusProjectID        *uint              `json:"focus_project_id"`
}

func (p SchedulePreferences) toPlanner() (planner.Preferences, error) {
	out := planner.Preferences{
		AvoidContextSwitch:    p.AvoidContextSwitch,
		MaxHoursPerTaskPerDay: p.MaxHoursPerTaskPerDay,
		FocusProjectID:        p.FocusProjectID,
		DailyHours:            make(map[time.Weekday]float64, len(p.DailyHours)),
	}
	for name, hours := range p.DailyHours {
		wd, ok := weekdayNames[name]
		if !ok {
			return planner.Preferences{}, apperr.Validation("unknown weekday %q in daily_hours", name)
		}
		out.DailyHours[wd] = hours
	}
	return out, nil
}

// FixedEvent is an externally committed block of time in the target
// range (a meeting, a seminar). Open-ended events block the whole day.
type FixedEvent struct {
	Date  time.Time  `json:"date" binding:"required"`
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
	Title string     `json:"title"`
}

// GenerateInput is the weekly schedule generation request.
type GenerateInput struct {
	WeekStart     time.Time           `json:"week_start" binding:"required"`
	Preferences   SchedulePreferences `json:"preferences"`
	FixedEvents   []FixedEvent        `json:"fixed_events"`
	ClearExisting *bool               `json:"clear_existing"` // nil = true
}

// ScheduleEntryView is a persisted schedule entry enriched with task,
// project and genre names for display.
type ScheduleEntryView struct {
	ID           uint      `json:"id"`
	TaskID       uint      `json:"task_id"`
	TaskName     string    `json:"task_name"`
	ProjectName  string    `json:"project_name,omitempty"`
	GenreName    string    `json:"genre_name,omitempty"`
	Date         time.Time `json:"date"`
	PlannedHours float64   `json:"planned_hours"`
}

// GroupSummary aggregates planned hours for one project or genre.
type GroupSummary struct {
	ID    uint    `json:"id"`
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

// ScheduleSummary totals the generated placements.
type ScheduleSummary struct {
	TotalPlannedHours float64        `json:"total_planned_hours"`
	ByProject         []GroupSummary `json:"by_project"`
	ByGenre           []GroupSummary `json:"by_genre"`
}

// GenerateResult is the weekly generation response.
type GenerateResult struct {
	WeekStart time.Time           `json:"week_start"`
	WeekEnd   time.Time           `json:"week_end"`
	Schedules []ScheduleEntryView `json:"schedules"`
	Summary   ScheduleSummary     `json:"summary"`
	Warnings  []string            `json:"warnings"`
}

// GenerateWeeklySchedule places ready tasks into the week starting at
// WeekStart. All task, edge, capacity and consumption data is loaded up
// front, the placement loop runs in memory, and the resulting entries
// are persisted in one batch inside the same transaction. The engine
// never commits a partial schedule.
func (s *Service) GenerateWeeklySchedule(in GenerateInput) (*GenerateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := in.Preferences.toPlanner()
	if err != nil {
		return nil, err
	}
	if len(prefs.DailyHours) == 0 {
		stored, err := s.weekdayCapacity()
		if err != nil {
			return nil, err
		}
		prefs.DailyHours = stored
	}

	weekStart := planner.Midnight(in.WeekStart)
	weekEnd := weekStart.AddDate(0, 0, 6)

	var res *GenerateResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if in.ClearExisting == nil || *in.ClearExisting {
			if err := tx.Where(
				"is_generated = ? AND status = ? AND scheduled_date >= ? AND scheduled_date <= ?",
				true, models.ScheduleScheduled, weekStart, weekEnd,
			).Delete(&models.Schedule{}).Error; err != nil {
				return err
			}
		}

		graph, err := s.loadGraph(tx)
		if err != nil {
			return err
		}
		actuals, err := s.actualHoursByTask(tx)
		if err != nil {
			return err
		}
		planned, err := s.plannedHoursByTask(tx)
		if err != nil {
			return err
		}

		cal := planner.NewCalendar(weekStart, 7, prefs.DailyHours)
		if err := s.blockExistingEntries(tx, cal, weekStart, weekEnd); err != nil {
			return err
		}
		for _, ev := range in.FixedEvents {
			if ev.Start == nil || ev.End == nil {
				cal.BlockAll(ev.Date)
				continue
			}
			cal.Block(ev.Date, ev.End.Sub(*ev.Start).Hours())
		}

		result, err := planner.GenerateSchedule(planner.Input{
			Graph:        graph,
			Calendar:     cal,
			PlannedHours: planned,
			ActualHours:  actuals,
			Prefs:        prefs,
		})
		if err != nil {
			return err
		}

		created, err := s.persistEntries(tx, result.Entries)
		if err != nil {
			return err
		}
		views, summary, err := s.buildViews(tx, created)
		if err != nil {
			return err
		}
		res = &GenerateResult{
			WeekStart: weekStart,
			WeekEnd:   weekEnd,
			Schedules: views,
			Summary:   summary,
			Warnings:  result.Warnings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// blockExistingEntries subtracts hours already committed by non-skipped
// schedule entries in the range from the calendar.
func (s *Service) blockExistingEntries(tx *gorm.DB, cal *planner.Calendar, from, to time.Time) error {
	var existing []models.Schedule
	if err := tx.Where(
		"scheduled_date >= ? AND scheduled_date <= ? AND status <> ?",
		from, to, models.ScheduleSkipped,
	).Find(&existing).Error; err != nil {
		return err
	}
	for _, e := range existing {
		cal.Block(e.ScheduledDate, e.PlannedHours)
	}
	return nil
}

func (s *Service) persistEntries(tx *gorm.DB, entries []planner.Entry) ([]models.Schedule, error) {
	created := make([]models.Schedule, 0, len(entries))
	for _, e := range entries {
		rec := models.Schedule{
			TaskID:        e.TaskID,
			ScheduledDate: e.Date,
			PlannedHours:  e.Hours,
			Status:        models.ScheduleScheduled,
			IsGenerated:   true,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return nil, err
		}
		created = append(created, rec)
	}
	return created, nil
}

func (s *Service) buildViews(tx *gorm.DB, created []models.Schedule) ([]ScheduleEntryView, ScheduleSummary, error) {
	var tasks []models.Task
	if err := tx.Find(&tasks).Error; err != nil {
		return nil, ScheduleSummary{}, err
	}
	taskByID := make(map[uint]*models.Task, len(tasks))
	for i := range tasks {
		taskByID[tasks[i].ID] = &tasks[i]
	}

	projectNames, err := nameMap[models.Project](tx)
	if err != nil {
		return nil, ScheduleSummary{}, err
	}
	genreNames, err := nameMap[models.Genre](tx)
	if err != nil {
		return nil, ScheduleSummary{}, err
	}

	views := make([]ScheduleEntryView, 0, len(created))
	summary := ScheduleSummary{}
	byProject := make(map[uint]float64)
	byGenre := make(map[uint]float64)

	for _, rec := range created {
		view := ScheduleEntryView{
			ID:           rec.ID,
			TaskID:       rec.TaskID,
			Date:         rec.ScheduledDate,
			PlannedHours: rec.PlannedHours,
		}
		summary.TotalPlannedHours += rec.PlannedHours
		if t, ok := taskByID[rec.TaskID]; ok {
			view.TaskName = t.Name
			if t.ProjectID != nil {
				view.ProjectName = projectNames[*t.ProjectID]
				byProject[*t.ProjectID] += rec.PlannedHours
			}
			if t.GenreID != nil {
				view.GenreName = genreNames[*t.GenreID]
				byGenre[*t.GenreID] += rec.PlannedHours
			}
		}
		views = append(views, view)
	}

	for id, hours := range byProject {
		summary.ByProject = append(summary.ByProject, GroupSummary{ID: id, Name: projectNames[id], Hours: hours})
	}
	for id, hours := range byGenre {
		summary.ByGenre = append(summary.ByGenre, GroupSummary{ID: id, Name: genreNames[id], Hours: hours})
	}
	return views, summary, nil
}

type named interface {
	models.Project | models.Genre
}

func nameMap[T named](tx *gorm.DB) (map[uint]string, error) {
	type row struct {
		ID   uint
		Name string
	}
	var model T
	var rows []row
	if err := tx.Model(&model).Select("id, name").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]string, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Name
	}
	return out, nil
}

// BlockedTime is an ad-hoc unavailable span in a reschedule request.
type BlockedTime struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// RescheduleInput cancels conflicting work on a date and re-places it.
type RescheduleInput struct {
	Date         time.Time     `json:"date" binding:"required"`
	Reason       string        `json:"reason"`
	BlockedTimes []BlockedTime `json:"blocked_times"`
	FullDay      bool          `json:"full_day"`
}

// RescheduleResult lists what was cancelled and what replaced it.
type RescheduleResult struct {
	CancelledSchedules []models.Schedule   `json:"cancelled_schedules"`
	NewSchedules       []ScheduleEntryView `json:"new_schedules"`
	Warnings           []string            `json:"warnings"`
}

// Reschedule cancels the date's schedule entries that conflict with the
// blocked windows (completed entries are never touched), then re-invokes
// the scheduler over the following week to re-place the residual work
// for the affected tasks under the same deadline and capacity rules.
func (s *Service) Reschedule(in RescheduleInput) (*RescheduleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capacity, err := s.weekdayCapacity()
	if err != nil {
		return nil, err
	}

	date := planner.Midnight(in.Date)
	windows := make([]planner.BlockedWindow, 0, len(in.BlockedTimes))
	for _, b := range in.BlockedTimes {
		windows = append(windows, planner.BlockedWindow{Start: b.Start, End: b.End})
	}

	var res *RescheduleResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var dayEntries []models.Schedule
		if err := tx.Where("scheduled_date = ?", date).Find(&dayEntries).Error; err != nil {
			return err
		}

		plan := planner.PlanCancellations(dayEntries, windows, in.FullDay)
		var cancelled []models.Schedule
		if len(plan.CancelledIDs) > 0 {
			if err := tx.Model(&models.Schedule{}).
				Where("id IN ?", plan.CancelledIDs).
				Update("status", models.ScheduleSkipped).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", plan.CancelledIDs).Find(&cancelled).Error; err != nil {
				return err
			}
		}

		res = &RescheduleResult{CancelledSchedules: cancelled}
		if len(plan.ResidualHours) == 0 {
			return nil
		}

		// Re-place only the affected tasks, over the week from the
		// blocked date forward. The full graph is loaded so dependency
		// state that changed since the original placement (a dependency
		// reopened, say) still blocks the residual work.
		graph, err := s.loadGraph(tx)
		if err != nil {
			return err
		}
		residualIDs := make(map[uint]bool, len(plan.ResidualHours))
		for id := range plan.ResidualHours {
			residualIDs[id] = true
		}
		actuals, err := s.actualHoursByTask(tx)
		if err != nil {
			return err
		}
		planned, err := s.plannedHoursByTask(tx)
		if err != nil {
			return err
		}

		cal := planner.NewCalendar(date, 7, capacity)
		if err := s.blockExistingEntries(tx, cal, date, date.AddDate(0, 0, 6)); err != nil {
			return err
		}
		planner.ApplyBlockedWindows(cal, date, windows, in.FullDay)

		result, err := planner.GenerateSchedule(planner.Input{
			Graph:        graph,
			Calendar:     cal,
			PlannedHours: planned,
			ActualHours:  actuals,
			OnlyTasks:    residualIDs,
			Prefs:        planner.Preferences{DailyHours: capacity, AvoidContextSwitch: true},
		})
		if err != nil {
			return err
		}

		created, err := s.persistEntries(tx, result.Entries)
		if err != nil {
			return err
		}
		views, _, err := s.buildViews(tx, created)
		if err != nil {
			return err
		}
		res.NewSchedules = views
		res.Warnings = result.Warnings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// defaultWeekdayCapacity is used when no weekly_capacity setting exists:
// six hours on weekdays, weekends off.
func defaultWeekdayCapacity() map[time.Weekday]float64 {
	return map[time.Weekday]float64{
		time.Monday:    6,
		time.Tuesday:   6,
		time.Wednesday: 6,
		time.Thursday:  6,
		time.Friday:    6,
	}
}

// weekdayCapacity loads the configured per-weekday hours map, cached
// briefly since settings change rarely but generation reads them often.
func (s *Service) weekdayCapacity() (map[time.Weekday]float64, error) {
	if cached, ok := s.capCache.Get(models.SettingWeeklyCapacity); ok {
		return cached, nil
	}

	var setting models.Setting
	err := s.db.Where("key = ?", models.SettingWeeklyCapacity).First(&setting).Error
	if err != nil {
		capacity := defaultWeekdayCapacity()
		s.capCache.Set(models.SettingWeeklyCapacity, capacity, 30*time.Second)
		return capacity, nil
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(setting.Value), &raw); err != nil {
		return nil, apperr.Validation("weekly_capacity setting holds invalid JSON: %v", err)
	}
	capacity := make(map[time.Weekday]float64, len(raw))
	for name, hours := range raw {
		wd, ok := weekdayNames[name]
		if !ok {
			return nil, apperr.Validation("weekly_capacity setting has unknown weekday %q", name)
		}
		if hours < 0 {
			return nil, apperr.Validation("weekly_capacity hours for %q must not be negative", name)
		}
		capacity[wd] = hours
	}
	s.capCache.Set(models.SettingWeeklyCapacity, capacity, 30*time.Second)
	return capacity, nil
}

// InvalidateCapacityCache drops the cached capacity configuration after
// a settings write.
func (s *Service) InvalidateCapacityCache() {
	s.capCache.Delete(models.SettingWeeklyCapacity)
}
