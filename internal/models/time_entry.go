package models

import (
	"time"
)

// TimeEntry represents a timer-based log of real work on a task.
// A nil EndTime means the timer is currently running; at most one
// entry system-wide may be running at a time.
type TimeEntry struct {
	ID              uint       `json:"id" gorm:"primarykey"`
	TaskID          uint       `json:"task_id" gorm:"column:task_id;not null;index"`
	StartTime       time.Time  `json:"start_time" gorm:"column:start_time;not null"`
	EndTime         *time.Time `json:"end_time" gorm:"column:end_time"`
	DurationMinutes int        `json:"duration_minutes" gorm:"column:duration_minutes;default:0"`
	Note            string     `json:"note"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for TimeEntry Model
func (TimeEntry) TableName() string {
	return "time_entries"
}
