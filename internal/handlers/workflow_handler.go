package handlers

import (
	"net/http"

	"research-planner-api/internal/workflow"

	"github.com/gin-gonic/gin"
)

/*
*
BreakdownTask handles POST /api/tasks/breakdown
Replaces one task with N subtasks in a single transaction.
*/
func BreakdownTask(c *gin.Context) {
	var req workflow.BreakdownInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := svc().Breakdown(req)
	if err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "task_decomposed", map[string]any{
		"task_id":       req.TaskID,
		"created_count": len(result.CreatedTasks),
	})
	c.JSON(http.StatusOK, result)
}

/*
*
MergeTasks handles POST /api/tasks/merge
Consolidates N tasks into one in a single transaction.
*/
func MergeTasks(c *gin.Context) {
	var req workflow.MergeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := svc().Merge(req)
	if err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "tasks_merged", map[string]any{
		"merged_task_id": result.MergedTask.ID,
		"source_count":   len(result.ArchivedTasks),
	})
	c.JSON(http.StatusOK, result)
}

// BulkCreateTasks handles POST /api/tasks/bulk
// Creates several tasks with intra-list dependencies at once.
func BulkCreateTasks(c *gin.Context) {
	var req workflow.BulkCreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := svc().BulkCreate(req)
	if err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "tasks_created", map[string]any{"count": len(result.CreatedTasks)})
	c.JSON(http.StatusCreated, result)
}

// CompleteTask handles POST /api/tasks/:id/complete
func CompleteTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req workflow.CompleteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		// An empty body is fine, the path carries the task id.
		req = workflow.CompleteInput{}
	}
	req.TaskID = taskID

	summary, err := svc().Complete(req)
	if err != nil {
		respondError(c, err)
		return
	}

	broadcast(c, "task_completed", map[string]any{"task_id": taskID})
	c.JSON(http.StatusOK, gin.H{
		"message": "Task completed",
		"task":    summary,
	})
}
