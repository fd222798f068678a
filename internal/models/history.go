package models

import (
	"time"
)

// HistoryOperation represents the kind of change recorded in task history
type HistoryOperation string

const (
	HistoryCreated         HistoryOperation = "created"
	HistoryDecomposed      HistoryOperation = "decomposed"
	HistoryMerged          HistoryOperation = "merged"
	HistoryEstimateChanged HistoryOperation = "estimate-changed"
	HistoryStatusChanged   HistoryOperation = "status-changed"
)

// TaskHistory is an append-only audit record of a workflow operation.
// Details holds a JSON payload describing the change; records are never
// mutated after creation.
type TaskHistory struct {
	ID        uint             `json:"id" gorm:"primarykey"`
	TaskID    uint             `json:"task_id" gorm:"column:task_id;index"`
	Operation HistoryOperation `json:"operation" gorm:"not null"`
	Details   string           `json:"details"`
	Reason    string           `json:"reason"`
	CreatedAt time.Time        `json:"created_at"`
}

// TableName specifies the table name for TaskHistory Model
func (TaskHistory) TableName() string {
	return "task_history"
}
