package models

// TaskDependency represents an ordered dependency edge: the task
// identified by TaskID cannot start until DependsOnTaskID is done.
type TaskDependency struct {
	TaskID          uint `json:"task_id" gorm:"column:task_id;primaryKey"`
	DependsOnTaskID uint `json:"depends_on_task_id" gorm:"column:depends_on_task_id;primaryKey"`
}

// TableName specifies the table name for TaskDependency Model
func (TaskDependency) TableName() string {
	return "task_dependencies"
}
