package models

import (
	"time"
)

// ScheduleStatus represents the status of a schedule entry
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleSkipped   ScheduleStatus = "skipped"
)

// Schedule represents a planned time placement for a task on a specific date
type Schedule struct {
	ID             uint           `json:"id" gorm:"primarykey"`
	TaskID         uint           `json:"task_id" gorm:"column:task_id;not null;index"`
	ScheduledDate  time.Time      `json:"scheduled_date" gorm:"column:scheduled_date;not null;index"`
	StartTime      *time.Time     `json:"start_time" gorm:"column:start_time"`
	EndTime        *time.Time     `json:"end_time" gorm:"column:end_time"`
	PlannedHours   float64        `json:"planned_hours" gorm:"column:planned_hours;not null"`
	ActualHours    float64        `json:"actual_hours" gorm:"column:actual_hours;default:0"`
	Status         ScheduleStatus `json:"status" gorm:"not null;default:'scheduled'"`
	IsGenerated    bool           `json:"is_generated" gorm:"column:is_generated;default:false"`
	ExternalRef    string         `json:"external_ref" gorm:"column:external_ref"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName specifies the table name for Schedule Model
func (Schedule) TableName() string {
	return "schedules"
}
