package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"research-planner-api/internal/database"
	"research-planner-api/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateTimeEntryRequest logs a closed block of work manually. Open
// entries only ever come from the timer, which keeps the single-running-
// timer invariant intact.
type CreateTimeEntryRequest struct {
	TaskID    uint      `json:"task_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Note      string    `json:"note"`
}

// UpdateTimeEntryRequest adjusts a logged entry after the fact.
type UpdateTimeEntryRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Note      *string    `json:"note"`
}

/*
*
GetTimeEntries handles GET /api/time-entries
Returns logged entries, newest first, with an optional task filter and
pagination.
*/
func GetTimeEntries(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := (page - 1) * limit

	db := database.GetDB()
	query := db.Model(&models.TimeEntry{})
	if taskID := c.Query("task_id"); taskID != "" {
		query = query.Where("task_id = ?", taskID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count time entries"})
		return
	}

	var entries []models.TimeEntry
	result := query.Session(&gorm.Session{}).
		Order("start_time desc").Limit(limit).Offset(offset).Find(&entries)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch time entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"time_entries": entries,
		"count":        len(entries),
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}

// CreateTimeEntry handles POST /api/time-entries
func CreateTimeEntry(c *gin.Context) {
	var req CreateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.EndTime.After(req.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}

	db := database.GetDB()
	var task models.Task
	if err := db.First(&task, req.TaskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate task"})
		}
		return
	}

	end := req.EndTime
	entry := models.TimeEntry{
		TaskID:          req.TaskID,
		StartTime:       req.StartTime,
		EndTime:         &end,
		DurationMinutes: int(req.EndTime.Sub(req.StartTime).Minutes()),
		Note:            req.Note,
	}
	if err := db.Create(&entry).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create time entry"})
		return
	}

	broadcast(c, "time_entry_logged", map[string]any{"time_entry_id": entry.ID, "task_id": entry.TaskID})
	c.JSON(http.StatusCreated, entry)
}

// UpdateTimeEntry handles PATCH /api/time-entries/:id
// Running entries belong to the timer and cannot be edited here.
func UpdateTimeEntry(c *gin.Context) {
	entryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()
	var entry models.TimeEntry
	if err := db.First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Time entry not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch time entry"})
		}
		return
	}
	if entry.EndTime == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "The running entry is managed by the timer; stop it first"})
		return
	}

	if req.StartTime != nil {
		entry.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		entry.EndTime = req.EndTime
	}
	if req.Note != nil {
		entry.Note = *req.Note
	}
	if !entry.EndTime.After(entry.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}
	entry.DurationMinutes = int(entry.EndTime.Sub(entry.StartTime).Minutes())

	if err := db.Save(&entry).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update time entry"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteTimeEntry handles DELETE /api/time-entries/:id
func DeleteTimeEntry(c *gin.Context) {
	entryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db := database.GetDB()
	var entry models.TimeEntry
	if err := db.First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Time entry not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch time entry"})
		}
		return
	}
	if entry.EndTime == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "The running entry is managed by the timer; stop it first"})
		return
	}

	if err := db.Delete(&entry).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete time entry"})
		return
	}

	broadcast(c, "time_entry_deleted", map[string]any{"time_entry_id": entryID, "task_id": entry.TaskID})
	c.JSON(http.StatusOK, gin.H{"message": "Time entry deleted successfully", "id": entryID})
}
