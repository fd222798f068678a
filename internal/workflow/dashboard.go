package workflow

import (
	"time"

	"research-planner-api/internal/models"
	"research-planner-api/internal/planner"
)

// WeekMonday returns the Monday of the week containing t.
func WeekMonday(t time.Time) time.Time {
	d := planner.Midnight(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// DayScheduleView is one schedule entry on a dashboard day, enriched
// with task, project and genre names for display.
type DayScheduleView struct {
	ID           uint                  `json:"id"`
	TaskID       uint                  `json:"task_id"`
	TaskName     string                `json:"task_name"`
	ProjectName  string                `json:"project_name,omitempty"`
	GenreName    string                `json:"genre_name,omitempty"`
	PlannedHours float64               `json:"planned_hours"`
	Status       models.ScheduleStatus `json:"status"`
}

// DaySummary totals one day's planned and logged work.
type DaySummary struct {
	PlannedHours   float64 `json:"planned_hours"`
	ActualHours    float64 `json:"actual_hours"`
	RemainingHours float64 `json:"remaining_hours"`
}

// TodayView is the day-focus dashboard payload: the day's schedule,
// its progress totals and the live timer.
type TodayView struct {
	Date      time.Time         `json:"date"`
	Timer     *TimerStatus      `json:"timer"`
	Schedules []DayScheduleView `json:"schedules"`
	Summary   DaySummary        `json:"summary"`
}

// TodayOverview builds the day-focus view for the given date.
func (s *Service) TodayOverview(day time.Time) (*TodayView, error) {
	day = planner.Midnight(day)

	timer, err := s.TimerState()
	if err != nil {
		return nil, err
	}

	var entries []models.Schedule
	if err := s.db.Where("scheduled_date = ?", day).Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	views, err := s.dayScheduleViews(entries)
	if err != nil {
		return nil, err
	}

	planned := 0.0
	for _, e := range entries {
		planned += e.PlannedHours
	}
	actual, err := s.loggedHoursBetween(day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	remaining := planned - actual
	if remaining < 0 {
		remaining = 0
	}

	return &TodayView{
		Date:      day,
		Timer:     timer,
		Schedules: views,
		Summary: DaySummary{
			PlannedHours:   planned,
			ActualHours:    actual,
			RemainingHours: remaining,
		},
	}, nil
}

// DailyHoursView is one day's planned versus logged hours in the
// weekly report.
type DailyHoursView struct {
	Date         time.Time `json:"date"`
	Day          string    `json:"day"`
	PlannedHours float64   `json:"planned_hours"`
	ActualHours  float64   `json:"actual_hours"`
}

// WeeklyTotals aggregates the week, with logged hours grouped by
// project and genre.
type WeeklyTotals struct {
	PlannedHours float64        `json:"planned_hours"`
	ActualHours  float64        `json:"actual_hours"`
	ByProject    []GroupSummary `json:"by_project"`
	ByGenre      []GroupSummary `json:"by_genre"`
}

// WeeklyReportView is the week-in-review dashboard payload.
type WeeklyReportView struct {
	WeekStart time.Time        `json:"week_start"`
	WeekEnd   time.Time        `json:"week_end"`
	Daily     []DailyHoursView `json:"daily"`
	Totals    WeeklyTotals     `json:"totals"`
}

// WeeklyReport builds the planned-versus-actual report for the week
// containing weekStart.
func (s *Service) WeeklyReport(weekStart time.Time) (*WeeklyReportView, error) {
	monday := WeekMonday(weekStart)
	sunday := monday.AddDate(0, 0, 6)

	var schedules []models.Schedule
	if err := s.db.Where("scheduled_date >= ? AND scheduled_date <= ?", monday, sunday).
		Find(&schedules).Error; err != nil {
		return nil, err
	}
	plannedByDay := make(map[string]float64)
	for _, e := range schedules {
		plannedByDay[planner.DateKey(e.ScheduledDate)] += e.PlannedHours
	}

	entries, err := s.closedEntriesBetween(monday, monday.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	actualByDay := make(map[string]float64)
	for _, e := range entries {
		actualByDay[planner.DateKey(e.StartTime)] += float64(e.DurationMinutes) / 60.0
	}

	report := &WeeklyReportView{WeekStart: monday, WeekEnd: sunday}
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		key := planner.DateKey(day)
		report.Daily = append(report.Daily, DailyHoursView{
			Date:         day,
			Day:          day.Format("Mon"),
			PlannedHours: plannedByDay[key],
			ActualHours:  actualByDay[key],
		})
		report.Totals.PlannedHours += plannedByDay[key]
		report.Totals.ActualHours += actualByDay[key]
	}

	byProject, byGenre, err := s.groupLoggedHours(entries)
	if err != nil {
		return nil, err
	}
	report.Totals.ByProject = byProject
	report.Totals.ByGenre = byGenre
	return report, nil
}

// TodayTotals is the dashboard header's today block.
type TodayTotals struct {
	PlannedHours   float64 `json:"planned_hours"`
	ActualHours    float64 `json:"actual_hours"`
	TasksScheduled int     `json:"tasks_scheduled"`
}

// WeekTotals is the dashboard header's week block. TargetHours is the
// configured weekly capacity.
type WeekTotals struct {
	PlannedHours float64 `json:"planned_hours"`
	ActualHours  float64 `json:"actual_hours"`
	TargetHours  float64 `json:"target_hours"`
}

// UrgentCounts flags work needing attention.
type UrgentCounts struct {
	OverdueTasks int `json:"overdue_tasks"`
	DueThisWeek  int `json:"due_this_week"`
	BlockedTasks int `json:"blocked_tasks"`
}

// OverviewView is the dashboard header payload.
type OverviewView struct {
	Today    TodayTotals  `json:"today"`
	ThisWeek WeekTotals   `json:"this_week"`
	Urgent   UrgentCounts `json:"urgent"`
	Timer    *TimerStatus `json:"timer"`
}

// Overview builds the dashboard header totals relative to now.
func (s *Service) Overview(now time.Time) (*OverviewView, error) {
	today := planner.Midnight(now)
	monday := WeekMonday(now)
	sunday := monday.AddDate(0, 0, 6)

	timer, err := s.TimerState()
	if err != nil {
		return nil, err
	}

	var todayEntries []models.Schedule
	if err := s.db.Where("scheduled_date = ?", today).Find(&todayEntries).Error; err != nil {
		return nil, err
	}
	todayPlanned := 0.0
	for _, e := range todayEntries {
		todayPlanned += e.PlannedHours
	}

	var weekSchedules []models.Schedule
	if err := s.db.Where("scheduled_date >= ? AND scheduled_date <= ?", monday, sunday).
		Find(&weekSchedules).Error; err != nil {
		return nil, err
	}
	weekPlanned := 0.0
	for _, e := range weekSchedules {
		weekPlanned += e.PlannedHours
	}

	todayActual, err := s.loggedHoursBetween(today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	weekActual, err := s.loggedHoursBetween(monday, monday.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}

	capacity, err := s.weekdayCapacity()
	if err != nil {
		return nil, err
	}
	target := 0.0
	for _, h := range capacity {
		target += h
	}

	urgent, err := s.urgentCounts(now, sunday)
	if err != nil {
		return nil, err
	}

	return &OverviewView{
		Today: TodayTotals{
			PlannedHours:   todayPlanned,
			ActualHours:    todayActual,
			TasksScheduled: len(todayEntries),
		},
		ThisWeek: WeekTotals{
			PlannedHours: weekPlanned,
			ActualHours:  weekActual,
			TargetHours:  target,
		},
		Urgent: urgent,
		Timer:  timer,
	}, nil
}

func (s *Service) urgentCounts(now, weekEnd time.Time) (UrgentCounts, error) {
	g, err := s.loadGraph(s.db)
	if err != nil {
		return UrgentCounts{}, err
	}
	var counts UrgentCounts
	var tasks []models.Task
	if err := s.db.Find(&tasks).Error; err != nil {
		return UrgentCounts{}, err
	}
	for _, t := range tasks {
		if !t.IsActive() {
			continue
		}
		if g.IsBlocked(t.ID) {
			counts.BlockedTasks++
		}
		if t.Deadline == nil {
			continue
		}
		switch {
		case t.Deadline.Before(now):
			counts.OverdueTasks++
		case !planner.Midnight(*t.Deadline).After(weekEnd):
			counts.DueThisWeek++
		}
	}
	return counts, nil
}

// closedEntriesBetween loads finished time entries started within
// [from, to). Running entries have no duration yet and are excluded.
func (s *Service) closedEntriesBetween(from, to time.Time) ([]models.TimeEntry, error) {
	var entries []models.TimeEntry
	err := s.db.Where("start_time >= ? AND start_time < ? AND end_time IS NOT NULL", from, to).
		Find(&entries).Error
	return entries, err
}

func (s *Service) loggedHoursBetween(from, to time.Time) (float64, error) {
	entries, err := s.closedEntriesBetween(from, to)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, e := range entries {
		total += float64(e.DurationMinutes) / 60.0
	}
	return total, nil
}

// groupLoggedHours buckets entry hours by the owning task's project and
// genre. Tasks without one land in a zero-id catch-all bucket.
func (s *Service) groupLoggedHours(entries []models.TimeEntry) (byProject, byGenre []GroupSummary, err error) {
	var tasks []models.Task
	if err := s.db.Find(&tasks).Error; err != nil {
		return nil, nil, err
	}
	taskByID := make(map[uint]*models.Task, len(tasks))
	for i := range tasks {
		taskByID[tasks[i].ID] = &tasks[i]
	}
	projectNames, err := nameMap[models.Project](s.db)
	if err != nil {
		return nil, nil, err
	}
	genreNames, err := nameMap[models.Genre](s.db)
	if err != nil {
		return nil, nil, err
	}

	projectHours := make(map[uint]float64)
	genreHours := make(map[uint]float64)
	for _, e := range entries {
		t, ok := taskByID[e.TaskID]
		if !ok {
			continue
		}
		hours := float64(e.DurationMinutes) / 60.0
		if t.ProjectID != nil {
			projectHours[*t.ProjectID] += hours
		} else {
			projectHours[0] += hours
		}
		if t.GenreID != nil {
			genreHours[*t.GenreID] += hours
		} else {
			genreHours[0] += hours
		}
	}

	for id, hours := range projectHours {
		name := projectNames[id]
		if id == 0 {
			name = "No Project"
		}
		byProject = append(byProject, GroupSummary{ID: id, Name: name, Hours: hours})
	}
	for id, hours := range genreHours {
		name := genreNames[id]
		if id == 0 {
			name = "No Genre"
		}
		byGenre = append(byGenre, GroupSummary{ID: id, Name: name, Hours: hours})
	}
	return byProject, byGenre, nil
}

func (s *Service) dayScheduleViews(entries []models.Schedule) ([]DayScheduleView, error) {
	var tasks []models.Task
	if err := s.db.Find(&tasks).Error; err != nil {
		return nil, err
	}
	taskByID := make(map[uint]*models.Task, len(tasks))
	for i := range tasks {
		taskByID[tasks[i].ID] = &tasks[i]
	}
	projectNames, err := nameMap[models.Project](s.db)
	if err != nil {
		return nil, err
	}
	genreNames, err := nameMap[models.Genre](s.db)
	if err != nil {
		return nil, err
	}

	views := make([]DayScheduleView, 0, len(entries))
	for _, e := range entries {
		v := DayScheduleView{
			ID:           e.ID,
			TaskID:       e.TaskID,
			PlannedHours: e.PlannedHours,
			Status:       e.Status,
		}
		if t, ok := taskByID[e.TaskID]; ok {
			v.TaskName = t.Name
			if t.ProjectID != nil {
				v.ProjectName = projectNames[*t.ProjectID]
			}
			if t.GenreID != nil {
				v.GenreName = genreNames[*t.GenreID]
			}
		}
		views = append(views, v)
	}
	return views, nil
}
