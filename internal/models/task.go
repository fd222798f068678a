package models

import (
	"time"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	StatusTodo    TaskStatus = "todo"
	StatusDoing   TaskStatus = "doing"
	StatusWaiting TaskStatus = "waiting"
	StatusDone    TaskStatus = "done"
	StatusArchive TaskStatus = "archive"
)

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// WantLevel represents how much the user wants to work on a task
type WantLevel string

const (
	WantHigh   WantLevel = "high"
	WantMedium WantLevel = "medium"
	WantLow    WantLevel = "low"
)

// Recurrence represents how often a task repeats
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Task represents a unit of research work
type Task struct {
	ID                 uint         `json:"id" gorm:"primarykey"`
	Name               string       `json:"name" gorm:"not null"`
	ProjectID          *uint        `json:"project_id" gorm:"column:project_id;index"`
	GenreID            *uint        `json:"genre_id" gorm:"column:genre_id;index"`
	Status             TaskStatus   `json:"status" gorm:"not null;default:'todo'"`
	Deadline           *time.Time   `json:"deadline"`
	EstimatedHours     *float64     `json:"estimated_hours" gorm:"column:estimated_hours"`
	Priority           TaskPriority `json:"priority" gorm:"default:'medium'"`
	WantLevel          WantLevel    `json:"want_level" gorm:"column:want_level;default:'medium'"`
	Recurrence         Recurrence   `json:"recurrence" gorm:"default:'none'"`
	IsSplittable       bool         `json:"is_splittable" gorm:"column:is_splittable;default:true"`
	MinWorkUnit        float64      `json:"min_work_unit" gorm:"column:min_work_unit;default:0.5"`
	ParentTaskID       *uint        `json:"parent_task_id" gorm:"column:parent_task_id;index"`
	DecompositionLevel int          `json:"decomposition_level" gorm:"column:decomposition_level;default:0"`
	Note               string       `json:"note"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}

// IsActive reports whether the task is still schedulable work
// (todo, doing or waiting).
func (t Task) IsActive() bool {
	switch t.Status {
	case StatusTodo, StatusDoing, StatusWaiting:
		return true
	}
	return false
}
