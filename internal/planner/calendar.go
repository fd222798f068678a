package planner

import (
	"time"

	"research-planner-api/internal/apperr"
)

const dateLayout = "2006-01-02"

// DateKey normalizes a timestamp to its calendar-day key.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// Midnight truncates a timestamp to the start of its day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Calendar tracks the remaining available hours per day over a date
// range. Reservations and releases are local and synchronous so a single
// scheduling pass can never double-book the same capacity.
type Calendar struct {
	start     time.Time
	days      []time.Time
	remaining map[string]float64
}

// NewCalendar builds a calendar over [start, start+days) from a
// per-weekday available-hours map. Weekdays missing from the map get
// zero capacity.
func NewCalendar(start time.Time, days int, weekdayHours map[time.Weekday]float64) *Calendar {
	c := &Calendar{
		start:     Midnight(start),
		remaining: make(map[string]float64, days),
	}
	for i := 0; i < days; i++ {
		d := c.start.AddDate(0, 0, i)
		c.days = append(c.days, d)
		c.remaining[DateKey(d)] = weekdayHours[d.Weekday()]
	}
	return c
}

// Days returns the calendar's dates in chronological order.
func (c *Calendar) Days() []time.Time {
	return c.days
}

// RemainingHours returns the unreserved hours left on the given day.
// Days outside the range have zero capacity.
func (c *Calendar) RemainingHours(date time.Time) float64 {
	return c.remaining[DateKey(date)]
}

// Reserve decrements the day's remaining hours. Reserving past the
// remaining budget fails with CapacityExceeded; the scheduler must
// always clamp at RemainingHours first, so this surfacing anywhere is
// an algorithm bug.
func (c *Calendar) Reserve(date time.Time, hours float64) error {
	key := DateKey(date)
	rem, ok := c.remaining[key]
	if !ok || rem < hours-hourEpsilon {
		return apperr.CapacityExceeded(key, hours, rem)
	}
	c.remaining[key] = rem - hours
	return nil
}

// Release returns previously reserved hours to the day's budget.
func (c *Calendar) Release(date time.Time, hours float64) {
	key := DateKey(date)
	if _, ok := c.remaining[key]; ok {
		c.remaining[key] += hours
	}
}

// Block removes hours from a day's budget for a fixed commitment
// (existing schedule entry or externally blocked window), flooring at
// zero.
func (c *Calendar) Block(date time.Time, hours float64) {
	key := DateKey(date)
	rem, ok := c.remaining[key]
	if !ok {
		return
	}
	rem -= hours
	if rem < 0 {
		rem = 0
	}
	c.remaining[key] = rem
}

// BlockAll zeroes a day's budget entirely.
func (c *Calendar) BlockAll(date time.Time) {
	key := DateKey(date)
	if _, ok := c.remaining[key]; ok {
		c.remaining[key] = 0
	}
}

// hourEpsilon absorbs float accumulation noise in capacity arithmetic.
const hourEpsilon = 1e-9
