package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartTimer handles POST /api/timer/start/:taskId
// Starts the single global timer on a task, stopping any running one.
func StartTimer(c *gin.Context) {
	taskID, ok := parseIDParam(c, "taskId")
	if !ok {
		return
	}

	entry, previous, err := svc().StartTimer(taskID)
	if err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "timer_started", map[string]any{"task_id": taskID})
	c.JSON(http.StatusOK, gin.H{
		"message":        "Timer started",
		"entry":          entry,
		"stopped_entry":  previous,
	})
}

// StopTimerRequest carries an optional note for the closed entry.
type StopTimerRequest struct {
	Note string `json:"note"`
}

// StopTimer handles POST /api/timer/stop
func StopTimer(c *gin.Context) {
	var req StopTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = StopTimerRequest{}
	}

	entry, err := svc().StopTimer(req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "timer_stopped", map[string]any{"task_id": entry.TaskID})
	c.JSON(http.StatusOK, gin.H{
		"message": "Timer stopped",
		"entry":   entry,
	})
}

// GetTimerStatus handles GET /api/timer/status
func GetTimerStatus(c *gin.Context) {
	status, err := svc().TimerState()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
