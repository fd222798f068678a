package planner

import (
	"strings"
	"testing"
	"time"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"

	"github.com/stretchr/testify/require"
)

func hoursPtr(h float64) *float64 { return &h }

func newInput(tasks []models.Task, edges []models.TaskDependency, days int) Input {
	return Input{
		Graph:        NewGraph(tasks, edges),
		Calendar:     NewCalendar(monday, days, weekdayHours),
		PlannedHours: map[uint]float64{},
		ActualHours:  map[uint]float64{},
		Prefs:        Preferences{DailyHours: weekdayHours},
	}
}

func totalHoursByTask(entries []Entry) map[uint]float64 {
	out := make(map[uint]float64)
	for _, e := range entries {
		out[e.TaskID] += e.Hours
	}
	return out
}

func TestGenerateSchedule_FitsWithoutWarnings(t *testing.T) {
	// 15h of work over 3 weekdays at 6h/day = 18h of capacity.
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.Name = "write draft"; x.EstimatedHours = hoursPtr(8) }),
		task(2, func(x *models.Task) { x.Name = "run experiments"; x.EstimatedHours = hoursPtr(7) }),
	}
	in := newInput(tasks, nil, 3)

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	require.Empty(t, res.Warnings)

	placed := totalHoursByTask(res.Entries)
	require.InDelta(t, 8.0, placed[1], hourEpsilon)
	require.InDelta(t, 7.0, placed[2], hourEpsilon)
}

func TestGenerateSchedule_NeverExceedsDailyCapacity(t *testing.T) {
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.EstimatedHours = hoursPtr(20) }),
		task(2, func(x *models.Task) { x.EstimatedHours = hoursPtr(20) }),
	}
	in := newInput(tasks, nil, 7)

	res, err := GenerateSchedule(in)
	require.NoError(t, err)

	perDay := make(map[string]float64)
	for _, e := range res.Entries {
		perDay[DateKey(e.Date)] += e.Hours
	}
	for day, hours := range perDay {
		require.LessOrEqual(t, hours, 6.0+hourEpsilon, "day %s overbooked", day)
	}
}

func TestGenerateSchedule_OnlyTasksNarrowsPlacement(t *testing.T) {
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.Name = "residual work"; x.EstimatedHours = hoursPtr(2) }),
		task(2, func(x *models.Task) { x.Name = "other work"; x.EstimatedHours = hoursPtr(2) }),
	}
	in := newInput(tasks, nil, 3)
	in.OnlyTasks = map[uint]bool{1: true}

	res, err := GenerateSchedule(in)
	require.NoError(t, err)

	placed := totalHoursByTask(res.Entries)
	require.InDelta(t, 2.0, placed[1], hourEpsilon)
	require.Zero(t, placed[2])
}

func TestGenerateSchedule_OnlyTasksStillHonorsBlocking(t *testing.T) {
	// Even when explicitly requested, a task whose dependency is not
	// done must not be placed. The blocking edge points outside the
	// requested set, so the full graph has to be consulted.
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.Name = "blocker"; x.Status = models.StatusDoing; x.EstimatedHours = hoursPtr(2) }),
		task(2, func(x *models.Task) { x.Name = "dependent"; x.EstimatedHours = hoursPtr(2) }),
	}
	in := newInput(tasks, []models.TaskDependency{edge(2, 1)}, 3)
	in.OnlyTasks = map[uint]bool{2: true}

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	require.Empty(t, res.Entries)
}

func TestGenerateSchedule_DeadlineWarningNamesTask(t *testing.T) {
	// 10h remaining, deadline tomorrow, 2h/day capacity: infeasible but
	// generation must still succeed with a warning naming the task.
	deadline := monday.AddDate(0, 0, 1)
	tasks := []models.Task{
		task(1, func(x *models.Task) {
			x.Name = "grant application"
			x.EstimatedHours = hoursPtr(10)
			x.Deadline = &deadline
		}),
	}
	in := newInput(tasks, nil, 7)
	in.Calendar = NewCalendar(monday, 7, map[time.Weekday]float64{
		time.Monday: 2, time.Tuesday: 2, time.Wednesday: 2,
		time.Thursday: 2, time.Friday: 2,
	})

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	require.NotEmpty(t, res.Entries)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "grant application") && strings.Contains(w, "deadline") {
			found = true
		}
	}
	require.True(t, found, "expected a deadline warning naming the task, got %v", res.Warnings)
}

func TestGenerateSchedule_BlockedTaskNotPlaced(t *testing.T) {
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.EstimatedHours = hoursPtr(2) }),
		task(2, func(x *models.Task) { x.EstimatedHours = hoursPtr(2) }),
	}
	in := newInput(tasks, []models.TaskDependency{edge(2, 1)}, 7)

	res, err := GenerateSchedule(in)
	require.NoError(t, err)

	placed := totalHoursByTask(res.Entries)
	require.InDelta(t, 2.0, placed[1], hourEpsilon)
	require.Zero(t, placed[2])
}

func TestGenerateSchedule_CyclicGraphFails(t *testing.T) {
	tasks := []models.Task{task(1), task(2)}
	in := newInput(tasks, []models.TaskDependency{edge(1, 2), edge(2, 1)}, 7)

	_, err := GenerateSchedule(in)
	require.Error(t, err)
	require.True(t, apperr.IsCode(err, apperr.CodeDependencyCycle))
}

func TestGenerateSchedule_NonSplittableStaysWhole(t *testing.T) {
	tasks := []models.Task{
		task(1, func(x *models.Task) {
			x.Name = "conference talk"
			x.EstimatedHours = hoursPtr(5)
			x.IsSplittable = false
		}),
	}
	in := newInput(tasks, nil, 7)

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.InDelta(t, 5.0, res.Entries[0].Hours, hourEpsilon)
}

func TestGenerateSchedule_NonSplittableTooLargeDeferred(t *testing.T) {
	tasks := []models.Task{
		task(1, func(x *models.Task) {
			x.Name = "marathon analysis"
			x.EstimatedHours = hoursPtr(9) // no 6h day can hold it
			x.IsSplittable = false
		}),
	}
	in := newInput(tasks, nil, 7)

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	require.Empty(t, res.Entries)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "marathon analysis") && strings.Contains(w, "not splittable") {
			found = true
		}
	}
	require.True(t, found, "expected a deferred warning, got %v", res.Warnings)
}

func TestGenerateSchedule_MinWorkUnitRespected(t *testing.T) {
	tasks := []models.Task{
		task(1, func(x *models.Task) {
			x.EstimatedHours = hoursPtr(10)
			x.MinWorkUnit = 2
		}),
	}
	in := newInput(tasks, nil, 7)
	in.Calendar = NewCalendar(monday, 7, map[time.Weekday]float64{
		time.Monday: 1.5, time.Tuesday: 6, time.Wednesday: 6,
	})

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	for _, e := range res.Entries {
		require.GreaterOrEqual(t, e.Hours, 2.0-hourEpsilon)
	}
	// The 1.5h Monday is below the minimum unit and must stay empty.
	for _, e := range res.Entries {
		require.False(t, e.Date.Equal(monday))
	}
}

func TestGenerateSchedule_MaxHoursPerTaskPerDay(t *testing.T) {
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.EstimatedHours = hoursPtr(12) }),
	}
	in := newInput(tasks, nil, 7)
	in.Prefs.MaxHoursPerTaskPerDay = 3

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	for _, e := range res.Entries {
		require.LessOrEqual(t, e.Hours, 3.0+hourEpsilon)
	}
	require.InDelta(t, 12.0, totalHoursByTask(res.Entries)[1], hourEpsilon)
}

func TestGenerateSchedule_ConsumedHoursReduceRemaining(t *testing.T) {
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.EstimatedHours = hoursPtr(10) }),
	}
	in := newInput(tasks, nil, 7)
	in.ActualHours[1] = 4
	in.PlannedHours[1] = 3

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	require.InDelta(t, 3.0, totalHoursByTask(res.Entries)[1], hourEpsilon)
}

func TestGenerateSchedule_DefaultEstimateApplies(t *testing.T) {
	tasks := []models.Task{task(1)} // no estimate
	in := newInput(tasks, nil, 7)

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	require.InDelta(t, defaultEstimate, totalHoursByTask(res.Entries)[1], hourEpsilon)
}

func TestGenerateSchedule_AvoidContextSwitchFinishesTasks(t *testing.T) {
	// Three 4h tasks over 2h days. With context switching avoided, a
	// started task keeps its slot until finished.
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.EstimatedHours = hoursPtr(4) }),
		task(2, func(x *models.Task) { x.EstimatedHours = hoursPtr(4) }),
		task(3, func(x *models.Task) { x.EstimatedHours = hoursPtr(4) }),
	}
	in := newInput(tasks, nil, 7)
	in.Prefs.AvoidContextSwitch = true
	in.Prefs.MaxHoursPerTaskPerDay = 2
	in.Calendar = NewCalendar(monday, 7, map[time.Weekday]float64{
		time.Monday: 2, time.Tuesday: 2, time.Wednesday: 2,
		time.Thursday: 2, time.Friday: 2,
	})

	res, err := GenerateSchedule(in)
	require.NoError(t, err)

	// Task 1 takes Monday and Tuesday in full before task 2 starts.
	first := res.Entries[0]
	require.Equal(t, uint(1), first.TaskID)
	second := res.Entries[1]
	require.Equal(t, uint(1), second.TaskID)
	require.True(t, second.Date.Equal(monday.AddDate(0, 0, 1)))
}

func TestGenerateSchedule_FocusProjectFirst(t *testing.T) {
	focus := uint(7)
	other := uint(8)
	tasks := []models.Task{
		task(1, func(x *models.Task) { x.EstimatedHours = hoursPtr(6); x.ProjectID = &other }),
		task(2, func(x *models.Task) { x.EstimatedHours = hoursPtr(6); x.ProjectID = &focus }),
	}
	in := newInput(tasks, nil, 1) // single 6h day, only one task fits
	in.Prefs.FocusProjectID = &focus

	res, err := GenerateSchedule(in)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.Equal(t, uint(2), res.Entries[0].TaskID)
}
