package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"research-planner-api/internal/database"
	"research-planner-api/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateTaskRequest represents the request payload for creating a task
type CreateTaskRequest struct {
	Name           string              `json:"name" binding:"required"`
	ProjectID      *uint               `json:"project_id"`
	GenreID        *uint               `json:"genre_id"`
	Status         models.TaskStatus   `json:"status"`
	Deadline       *time.Time          `json:"deadline"`
	EstimatedHours *float64            `json:"estimated_hours"`
	Priority       models.TaskPriority `json:"priority"`
	WantLevel      models.WantLevel    `json:"want_level"`
	Recurrence     models.Recurrence   `json:"recurrence"`
	IsSplittable   *bool               `json:"is_splittable"`
	MinWorkUnit    *float64            `json:"min_work_unit"`
	ParentTaskID   *uint               `json:"parent_task_id"`
	Note           string              `json:"note"`
}

// UpdateTaskRequest represents the request payload for updating a task
type UpdateTaskRequest struct {
	Name           *string              `json:"name"`
	ProjectID      *uint                `json:"project_id"`
	GenreID        *uint                `json:"genre_id"`
	Status         *models.TaskStatus   `json:"status"`
	Deadline       *time.Time           `json:"deadline"`
	EstimatedHours *float64             `json:"estimated_hours"`
	Priority       *models.TaskPriority `json:"priority"`
	WantLevel      *models.WantLevel    `json:"want_level"`
	Recurrence     *models.Recurrence   `json:"recurrence"`
	IsSplittable   *bool                `json:"is_splittable"`
	MinWorkUnit    *float64             `json:"min_work_unit"`
	Note           *string              `json:"note"`
}

// UpdateTaskStatusRequest represents a minimal request to change status
type UpdateTaskStatusRequest struct {
	Status models.TaskStatus `json:"status" binding:"required"`
}

var validStatuses = map[models.TaskStatus]bool{
	models.StatusTodo:    true,
	models.StatusDoing:   true,
	models.StatusWaiting: true,
	models.StatusDone:    true,
	models.StatusArchive: true,
}

var validPriorities = map[models.TaskPriority]bool{
	models.PriorityHigh:   true,
	models.PriorityMedium: true,
	models.PriorityLow:    true,
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id: " + raw})
		return 0, false
	}
	return uint(id), true
}

/*
*
GetTasks handles GET /api/tasks
Returns tasks with optional status/project/genre filters and pagination.
*/
func GetTasks(c *gin.Context) {
	pageStr := c.DefaultQuery("page", "1")
	limitStr := c.DefaultQuery("limit", "20")
	sortParam := strings.ToLower(c.DefaultQuery("sort", "desc"))

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	order := "created_at desc"
	if sortParam == "asc" {
		order = "created_at asc"
	}

	db := database.GetDB()
	query := db.Model(&models.Task{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	} else {
		// Archived tasks are hidden unless asked for explicitly.
		query = query.Where("status <> ?", models.StatusArchive)
	}
	if projectID := c.Query("project_id"); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if genreID := c.Query("genre_id"); genreID != "" {
		query = query.Where("genre_id = ?", genreID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count tasks"})
		return
	}

	var tasks []models.Task
	result := query.Session(&gorm.Session{}).Order(order).Limit(limit).Offset(offset).Find(&tasks)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
		"total": total,
		"page":  page,
		"limit": limit,
		"sort":  sortParam,
	})
}

/*
*
CreateTask handles POST /api/tasks
Creates a new task
*/
func CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := req.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !validStatuses[status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + string(status)})
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !validPriorities[priority] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority: " + string(priority)})
		return
	}
	wantLevel := req.WantLevel
	if wantLevel == "" {
		wantLevel = models.WantMedium
	}
	recurrence := req.Recurrence
	if recurrence == "" {
		recurrence = models.RecurrenceNone
	}
	if req.EstimatedHours != nil && *req.EstimatedHours < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "estimated_hours must not be negative"})
		return
	}
	isSplittable := true
	if req.IsSplittable != nil {
		isSplittable = *req.IsSplittable
	}
	minWorkUnit := 0.5
	if req.MinWorkUnit != nil {
		if *req.MinWorkUnit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_work_unit must be positive"})
			return
		}
		minWorkUnit = *req.MinWorkUnit
	}

	db := database.GetDB()
	task := models.Task{
		Name:           req.Name,
		ProjectID:      req.ProjectID,
		GenreID:        req.GenreID,
		Status:         status,
		Deadline:       req.Deadline,
		EstimatedHours: req.EstimatedHours,
		Priority:       priority,
		WantLevel:      wantLevel,
		Recurrence:     recurrence,
		IsSplittable:   isSplittable,
		MinWorkUnit:    minWorkUnit,
		Note:           req.Note,
	}

	if req.ParentTaskID != nil {
		var parent models.Task
		if err := db.First(&parent, *req.ParentTaskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parent_task_id: parent task not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate parent_task_id"})
			}
			return
		}
		task.ParentTaskID = req.ParentTaskID
		task.DecompositionLevel = parent.DecompositionLevel + 1
	}

	if err := db.Create(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	broadcast(c, "task_created", map[string]any{"task_id": task.ID})
	c.JSON(http.StatusCreated, task)
}

// GetTaskByID handles GET /api/tasks/:id
// Returns a single task with its derived actual hours.
func GetTaskByID(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var task models.Task
	result := database.GetDB().First(&task, taskID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch task"})
		}
		return
	}

	actualHours, err := svc().ActualHours(task.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute actual hours"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":         task,
		"actual_hours": actualHours,
	})
}

// UpdateTask handles PUT /api/tasks/:id
func UpdateTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db := database.GetDB()
	var existingTask models.Task
	result := db.First(&existingTask, taskID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch task"})
		}
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// All validation happens before any write so a bad field cannot
	// leave a half-applied update behind.
	oldEstimate := existingTask.EstimatedHours
	estimateChanged := false
	if req.EstimatedHours != nil {
		if *req.EstimatedHours < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "estimated_hours must not be negative"})
			return
		}
		existingTask.EstimatedHours = req.EstimatedHours
		estimateChanged = true
	}
	if req.Name != nil {
		existingTask.Name = *req.Name
	}
	if req.ProjectID != nil {
		existingTask.ProjectID = req.ProjectID
	}
	if req.GenreID != nil {
		existingTask.GenreID = req.GenreID
	}
	if req.Status != nil {
		if !validStatuses[*req.Status] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + string(*req.Status)})
			return
		}
		existingTask.Status = *req.Status
	}
	if req.Deadline != nil {
		existingTask.Deadline = req.Deadline
	}
	if req.Priority != nil {
		if !validPriorities[*req.Priority] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority: " + string(*req.Priority)})
			return
		}
		existingTask.Priority = *req.Priority
	}
	if req.WantLevel != nil {
		existingTask.WantLevel = *req.WantLevel
	}
	if req.Recurrence != nil {
		existingTask.Recurrence = *req.Recurrence
	}
	if req.IsSplittable != nil {
		existingTask.IsSplittable = *req.IsSplittable
	}
	if req.MinWorkUnit != nil {
		if *req.MinWorkUnit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_work_unit must be positive"})
			return
		}
		existingTask.MinWorkUnit = *req.MinWorkUnit
	}
	if req.Note != nil {
		existingTask.Note = *req.Note
	}

	// Field writes and the estimate-changed history record commit
	// together or not at all.
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&existingTask).Error; err != nil {
			return err
		}
		if estimateChanged {
			return svc().RecordEstimateChange(tx, existingTask.ID, oldEstimate, req.EstimatedHours, "")
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	broadcast(c, "task_updated", map[string]any{"task_id": existingTask.ID})
	c.JSON(http.StatusOK, existingTask)
}

// UpdateTaskStatus handles PATCH /api/tasks/:id/status
func UpdateTaskStatus(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + string(req.Status)})
		return
	}

	db := database.GetDB()
	var task models.Task
	result := db.First(&task, taskID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch task"})
		}
		return
	}

	task.Status = req.Status
	if err := db.Model(&task).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	broadcast(c, "task_status_changed", map[string]any{"task_id": task.ID, "status": task.Status})
	c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/:id
// Deletes a task and cascades its schedules, time entries and edges.
func DeleteTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := svc().DeleteTask(taskID); err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "task_deleted", map[string]any{"task_id": taskID})
	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
		"id":      taskID,
	})
}

// AddDependencyRequest represents the request to add a dependency edge
type AddDependencyRequest struct {
	DependsOnTaskID uint `json:"depends_on_task_id" binding:"required"`
}

// GetTaskDependencies handles GET /api/tasks/:id/dependencies
func GetTaskDependencies(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	dependsOn, blocking, err := svc().Dependencies(taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"depends_on": dependsOn,
		"blocking":   blocking,
	})
}

// AddTaskDependency handles POST /api/tasks/:id/dependencies
func AddTaskDependency(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AddDependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := svc().AddDependency(taskID, req.DependsOnTaskID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"task_id":            taskID,
		"depends_on_task_id": req.DependsOnTaskID,
	})
}

// RemoveTaskDependency handles DELETE /api/tasks/:id/dependencies/:depId
func RemoveTaskDependency(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	depID, ok := parseIDParam(c, "depId")
	if !ok {
		return
	}
	if err := svc().RemoveDependency(taskID, depID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dependency removed"})
}

// GetTaskHistory handles GET /api/tasks/:id/history
func GetTaskHistory(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var records []models.TaskHistory
	err := database.GetDB().Where("task_id = ?", taskID).Order("created_at desc").Find(&records).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"history": records,
		"count":   len(records),
	})
}
