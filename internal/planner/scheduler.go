package planner

import (
	"fmt"
	"sort"
	"time"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"
)

// defaultEstimate substitutes for tasks with no estimated hours, so
// every ready task gets at least a small placement.
const defaultEstimate = 1.0

// Preferences control schedule generation.
type Preferences struct {
	DailyHours            map[time.Weekday]float64
	AvoidContextSwitch    bool
	MaxHoursPerTaskPerDay float64 // 0 = no per-day cap
	FocusProjectID        *uint
}

// Validate checks preference values before any placement happens.
func (p Preferences) Validate() error {
	for wd, h := range p.DailyHours {
		if h < 0 {
			return apperr.Validation("daily hours for %s must not be negative, got %.2f", wd, h)
		}
	}
	if p.MaxHoursPerTaskPerDay < 0 {
		return apperr.Validation("max hours per task per day must not be negative, got %.2f", p.MaxHoursPerTaskPerDay)
	}
	return nil
}

// Input is everything the scheduler needs, loaded up front: the task
// graph, a capacity calendar net of fixed commitments, and per-task
// hours already consumed. The placement loop itself does no I/O.
type Input struct {
	Graph        *Graph
	Calendar     *Calendar
	PlannedHours map[uint]float64 // non-skipped schedule hours already placed per task
	ActualHours  map[uint]float64 // logged time-entry hours per task
	OnlyTasks    map[uint]bool    // nil = place every ready task; otherwise restrict placement to these ids
	Prefs        Preferences
}

// Entry is one planned work block: a task, a day and an hour chunk.
type Entry struct {
	TaskID uint
	Date   time.Time
	Hours  float64
}

// Result is the scheduler output: placements plus non-fatal warnings.
// Infeasibility (not enough hours before a deadline) degrades to a
// warning, never an error.
type Result struct {
	Entries  []Entry
	Warnings []string
}

type allocation struct {
	task      *models.Task
	remaining float64
	placed    float64
	lastDate  time.Time
	deferred  bool // unsplittable task that fit no single day
}

// GenerateSchedule runs greedy deadline-aware bin-packing of the ready
// task set into the calendar. Tasks are consumed in resolver order
// (priority, deadline, want level, creation order), optionally with
// focus-project tasks first.
func GenerateSchedule(in Input) (*Result, error) {
	if err := in.Prefs.Validate(); err != nil {
		return nil, err
	}
	// A cyclic edge set means the ready ordering is meaningless; fail
	// before placing anything.
	if _, err := in.Graph.TopologicalOrder(); err != nil {
		return nil, err
	}

	// The ready set is always derived from the full graph so blocked
	// checks see every edge; OnlyTasks merely narrows who gets placed.
	ready := in.Graph.ReadyTasks()
	if in.OnlyTasks != nil {
		narrowed := make([]*models.Task, 0, len(in.OnlyTasks))
		for _, t := range ready {
			if in.OnlyTasks[t.ID] {
				narrowed = append(narrowed, t)
			}
		}
		ready = narrowed
	}
	if in.Prefs.FocusProjectID != nil {
		ready = focusFirst(ready, *in.Prefs.FocusProjectID)
	}

	var allocs []*allocation
	for _, t := range ready {
		est := defaultEstimate
		if t.EstimatedHours != nil {
			est = *t.EstimatedHours
		}
		remaining := est - in.ActualHours[t.ID] - in.PlannedHours[t.ID]
		if remaining <= hourEpsilon {
			continue
		}
		allocs = append(allocs, &allocation{task: t, remaining: remaining})
	}

	res := &Result{}
	if len(allocs) == 0 {
		res.Warnings = append(res.Warnings, "no schedulable tasks with remaining hours")
		return res, nil
	}

	chunks := placeAll(allocs, in.Calendar, in.Prefs)
	res.Entries = mergeChunks(chunks)
	res.Warnings = buildWarnings(allocs, in.Calendar)
	return res, nil
}

// placeAll walks the date range chronologically, filling each day from
// the allocation queue before moving on. With avoid-context-switch the
// queue is reordered each pick so partially placed tasks continue
// before new ones start.
func placeAll(allocs []*allocation, cal *Calendar, prefs Preferences) []Entry {
	var chunks []Entry
	for _, day := range cal.Days() {
		perTaskToday := make(map[uint]float64)
		for {
			dayRemaining := cal.RemainingHours(day)
			if dayRemaining <= hourEpsilon {
				break
			}
			a, chunk := pickNext(allocs, day, dayRemaining, perTaskToday, prefs)
			if a == nil {
				break
			}
			// Reserve must succeed: chunk is clamped to the day's
			// remaining hours above. A failure here is a bug, and
			// dropping the chunk keeps the invariant that no day is
			// ever overbooked.
			if err := cal.Reserve(day, chunk); err != nil {
				break
			}
			chunks = append(chunks, Entry{TaskID: a.task.ID, Date: day, Hours: chunk})
			perTaskToday[a.task.ID] += chunk
			a.remaining -= chunk
			a.placed += chunk
			a.lastDate = day
			if a.remaining < hourEpsilon {
				a.remaining = 0
			}
		}
	}
	return chunks
}

// pickNext selects the next allocation that can legally take a chunk on
// the given day, and the chunk size. Returns nil when no task fits.
func pickNext(allocs []*allocation, day time.Time, dayRemaining float64, perTaskToday map[uint]float64, prefs Preferences) (*allocation, float64) {
	ordered := allocs
	if prefs.AvoidContextSwitch {
		ordered = partialFirst(allocs)
	}
	for _, a := range ordered {
		if a.remaining <= 0 {
			continue
		}
		chunk, ok := chunkFor(a, dayRemaining, perTaskToday[a.task.ID], prefs)
		if !ok {
			continue
		}
		return a, chunk
	}
	return nil, 0
}

// chunkFor computes the hour chunk a task may take from a day, honoring
// is_splittable, min_work_unit and the optional per-day cap.
func chunkFor(a *allocation, dayRemaining, alreadyToday float64, prefs Preferences) (float64, bool) {
	t := a.task
	if !t.IsSplittable {
		// The entire remainder must fit in a single day, in one block.
		if alreadyToday > 0 || dayRemaining+hourEpsilon < a.remaining {
			return 0, false
		}
		return a.remaining, true
	}

	chunk := a.remaining
	if dayRemaining < chunk {
		chunk = dayRemaining
	}
	if prefs.MaxHoursPerTaskPerDay > 0 {
		capLeft := prefs.MaxHoursPerTaskPerDay - alreadyToday
		if capLeft <= hourEpsilon {
			return 0, false
		}
		if capLeft < chunk {
			chunk = capLeft
		}
	}

	minUnit := t.MinWorkUnit
	if minUnit <= 0 {
		minUnit = hourEpsilon
	}
	if chunk+hourEpsilon < minUnit {
		// Below the minimum work unit. Only allowed when the whole
		// remainder is smaller than the unit and fits in this chunk.
		if a.remaining >= minUnit || chunk+hourEpsilon < a.remaining {
			return 0, false
		}
	}
	return chunk, true
}

// partialFirst returns the allocations with work already placed (and
// still remaining) ahead of untouched ones, preserving relative order.
func partialFirst(allocs []*allocation) []*allocation {
	out := make([]*allocation, 0, len(allocs))
	for _, a := range allocs {
		if a.placed > 0 && a.remaining > 0 {
			out = append(out, a)
		}
	}
	for _, a := range allocs {
		if !(a.placed > 0 && a.remaining > 0) {
			out = append(out, a)
		}
	}
	return out
}

func focusFirst(tasks []*models.Task, projectID uint) []*models.Task {
	out := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ProjectID != nil && *t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	for _, t := range tasks {
		if t.ProjectID == nil || *t.ProjectID != projectID {
			out = append(out, t)
		}
	}
	return out
}

// mergeChunks collapses same-task-same-day chunks into one entry and
// orders entries by date, then task id.
func mergeChunks(chunks []Entry) []Entry {
	type key struct {
		taskID uint
		date   string
	}
	merged := make(map[key]*Entry)
	var keys []key
	for _, c := range chunks {
		k := key{c.TaskID, DateKey(c.Date)}
		if e, ok := merged[k]; ok {
			e.Hours += c.Hours
			continue
		}
		cc := c
		merged[k] = &cc
		keys = append(keys, k)
	}
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, *merged[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

// buildWarnings reports unplaced work and deadline risk after placement.
func buildWarnings(allocs []*allocation, cal *Calendar) []string {
	var warnings []string
	days := cal.Days()
	var rangeEnd time.Time
	if len(days) > 0 {
		rangeEnd = days[len(days)-1]
	}

	for _, a := range allocs {
		t := a.task
		if a.remaining > hourEpsilon {
			if !t.IsSplittable && a.placed == 0 {
				warnings = append(warnings, fmt.Sprintf(
					"task %q (%.1fh) is not splittable and no single day has enough capacity; deferred", t.Name, a.remaining))
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"task %q: %.1fh could not be scheduled within the date range", t.Name, a.remaining))
			}
		}
		if t.Deadline == nil {
			continue
		}
		deadline := Midnight(*t.Deadline)
		missed := a.remaining <= hourEpsilon && a.placed > 0 && a.lastDate.After(deadline)
		atRisk := a.remaining > hourEpsilon && !deadline.After(rangeEnd)
		if missed || atRisk {
			warnings = append(warnings, fmt.Sprintf(
				"task %q cannot meet its deadline (%s)", t.Name, deadline.Format(dateLayout)))
		}
	}
	return warnings
}
