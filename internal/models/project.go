package models

import (
	"time"
)

// Project represents a research project grouping tasks
type Project struct {
	ID          uint       `json:"id" gorm:"primarykey"`
	Name        string     `json:"name" gorm:"not null"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline"`
	IsActive    bool       `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Project Model
func (Project) TableName() string {
	return "projects"
}

// Genre represents a task category with a display color
type Genre struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"not null"`
	Color     string    `json:"color" gorm:"size:7"` // #RRGGBB
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Genre Model
func (Genre) TableName() string {
	return "genres"
}
