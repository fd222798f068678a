package models

import (
	"time"
)

// Setting is a key/value configuration row. Value holds a JSON payload,
// e.g. the per-weekday capacity map under the "weekly_capacity" key.
type Setting struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	Key         string    `json:"key" gorm:"uniqueIndex;not null"`
	Value       string    `json:"value" gorm:"not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Setting Model
func (Setting) TableName() string {
	return "settings"
}

// Well-known setting keys.
const (
	SettingWeeklyCapacity        = "weekly_capacity"
	SettingBreakdownTransferMode = "breakdown_transfer_mode"
)
