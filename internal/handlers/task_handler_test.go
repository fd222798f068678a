package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"research-planner-api/internal/auth"
	"research-planner-api/internal/database"
	"research-planner-api/internal/middleware"
	"research-planner-api/internal/models"
	"research-planner-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// newTestRouter swaps in a fresh in-memory DB and returns a router with
// the full protected API mounted, plus a valid bearer token.
func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	r := gin.New()
	authed := r.Group("/api")
	authed.Use(middleware.JWTAuthMiddleware())
	authed.GET("/tasks", GetTasks)
	authed.GET("/tasks/:id", GetTaskByID)
	authed.POST("/tasks", CreateTask)
	authed.PUT("/tasks/:id", UpdateTask)
	authed.PATCH("/tasks/:id/status", UpdateTaskStatus)
	authed.DELETE("/tasks/:id", DeleteTask)
	authed.POST("/tasks/:id/complete", CompleteTask)
	authed.GET("/tasks/:id/history", GetTaskHistory)
	authed.GET("/tasks/:id/dependencies", GetTaskDependencies)
	authed.POST("/tasks/:id/dependencies", AddTaskDependency)
	authed.DELETE("/tasks/:id/dependencies/:depId", RemoveTaskDependency)
	authed.POST("/tasks/breakdown", BreakdownTask)
	authed.POST("/tasks/merge", MergeTasks)
	authed.POST("/tasks/bulk", BulkCreateTasks)
	authed.GET("/schedules", GetSchedules)
	authed.POST("/schedules/generate-weekly", GenerateWeeklySchedule)
	authed.POST("/schedules/reschedule", RescheduleDay)
	authed.POST("/timer/start/:taskId", StartTimer)
	authed.POST("/timer/stop", StopTimer)
	authed.GET("/timer/status", GetTimerStatus)
	authed.GET("/settings/:key", GetSetting)
	authed.PUT("/settings/:key", PutSetting)
	authed.GET("/time-entries", GetTimeEntries)
	authed.POST("/time-entries", CreateTimeEntry)
	authed.PATCH("/time-entries/:id", UpdateTimeEntry)
	authed.DELETE("/time-entries/:id", DeleteTimeEntry)
	authed.GET("/dashboard/summary", GetDashboardSummary)
	authed.GET("/dashboard/today", GetDashboardToday)
	authed.GET("/dashboard/weekly", GetDashboardWeekly)

	token, err := auth.GenerateToken("user-1", "researcher")
	require.NoError(t, err)
	return r, token
}

func doJSON(t *testing.T, r *gin.Engine, token, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTask_Defaults(t *testing.T) {
	r, token := newTestRouter(t)

	w := doJSON(t, r, token, http.MethodPost, "/api/tasks", map[string]any{
		"name":            "read related work",
		"estimated_hours": 3.5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, models.StatusTodo, created.Status)
	require.Equal(t, models.PriorityMedium, created.Priority)
	require.True(t, created.IsSplittable)
	require.InDelta(t, 0.5, created.MinWorkUnit, 1e-9)
	require.InDelta(t, 3.5, *created.EstimatedHours, 1e-9)
}

func TestCreateTask_InvalidInput(t *testing.T) {
	r, token := newTestRouter(t)

	w := doJSON(t, r, token, http.MethodPost, "/api/tasks", map[string]any{"name": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, token, http.MethodPost, "/api/tasks", map[string]any{
		"name": "x", "status": "bogus",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, token, http.MethodPost, "/api/tasks", map[string]any{
		"name": "x", "estimated_hours": -2,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTasks_FiltersArchivedByDefault(t *testing.T) {
	r, token := newTestRouter(t)
	db := database.GetDB()

	require.NoError(t, db.Create(&models.Task{Name: "live", Status: models.StatusTodo}).Error)
	require.NoError(t, db.Create(&models.Task{Name: "gone", Status: models.StatusArchive}).Error)

	w := doJSON(t, r, token, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tasks []models.Task `json:"tasks"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)
	require.Equal(t, "live", resp.Tasks[0].Name)

	w = doJSON(t, r, token, http.MethodGet, "/api/tasks?status=archive", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)
	require.Equal(t, "gone", resp.Tasks[0].Name)
}

func TestUpdateTaskStatus(t *testing.T) {
	r, token := newTestRouter(t)
	db := database.GetDB()
	task := models.Task{Name: "to move", Status: models.StatusTodo}
	require.NoError(t, db.Create(&task).Error)

	w := doJSON(t, r, token, http.MethodPatch, fmt.Sprintf("/api/tasks/%d/status", task.ID),
		map[string]string{"status": "doing"})
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Task
	require.NoError(t, db.First(&updated, task.ID).Error)
	require.Equal(t, models.StatusDoing, updated.Status)

	w = doJSON(t, r, token, http.MethodPatch, "/api/tasks/9999/status",
		map[string]string{"status": "doing"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTask_EstimateChangeRecordedInHistory(t *testing.T) {
	r, token := newTestRouter(t)
	db := database.GetDB()
	task := models.Task{Name: "scoped work", Status: models.StatusTodo}
	require.NoError(t, db.Create(&task).Error)

	w := doJSON(t, r, token, http.MethodPut, fmt.Sprintf("/api/tasks/%d", task.ID),
		map[string]any{"estimated_hours": 9, "note": "revised scope"})
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Task
	require.NoError(t, db.First(&updated, task.ID).Error)
	require.InDelta(t, 9.0, *updated.EstimatedHours, 1e-9)
	require.Equal(t, "revised scope", updated.Note)

	var n int64
	require.NoError(t, db.Model(&models.TaskHistory{}).
		Where("task_id = ? AND operation = ?", task.ID, models.HistoryEstimateChanged).
		Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestUpdateTask_InvalidFieldLeavesNothingBehind(t *testing.T) {
	r, token := newTestRouter(t)
	db := database.GetDB()
	estimate := 2.0
	task := models.Task{Name: "stable", Status: models.StatusTodo, EstimatedHours: &estimate}
	require.NoError(t, db.Create(&task).Error)

	// The estimate is valid but the status is not; the request must be
	// rejected without committing the estimate or its history record.
	w := doJSON(t, r, token, http.MethodPut, fmt.Sprintf("/api/tasks/%d", task.ID),
		map[string]any{"estimated_hours": 9, "status": "bogus"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var unchanged models.Task
	require.NoError(t, db.First(&unchanged, task.ID).Error)
	require.InDelta(t, 2.0, *unchanged.EstimatedHours, 1e-9)

	var n int64
	require.NoError(t, db.Model(&models.TaskHistory{}).
		Where("task_id = ? AND operation = ?", task.ID, models.HistoryEstimateChanged).
		Count(&n).Error)
	require.Zero(t, n)
}

func TestTaskDependencyEndpoints(t *testing.T) {
	r, token := newTestRouter(t)
	db := database.GetDB()
	a := models.Task{Name: "a", Status: models.StatusTodo}
	b := models.Task{Name: "b", Status: models.StatusTodo}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	w := doJSON(t, r, token, http.MethodPost, fmt.Sprintf("/api/tasks/%d/dependencies", b.ID),
		map[string]uint{"depends_on_task_id": a.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	// The reverse edge closes a cycle and must be rejected with the
	// structured error body.
	w = doJSON(t, r, token, http.MethodPost, fmt.Sprintf("/api/tasks/%d/dependencies", a.ID),
		map[string]uint{"depends_on_task_id": b.ID})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var errResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	require.Equal(t, "dependency_cycle", errResp.Code)

	w = doJSON(t, r, token, http.MethodGet, fmt.Sprintf("/api/tasks/%d/dependencies", b.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var deps struct {
		DependsOn []models.Task `json:"depends_on"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &deps))
	require.Len(t, deps.DependsOn, 1)

	w = doJSON(t, r, token, http.MethodDelete,
		fmt.Sprintf("/api/tasks/%d/dependencies/%d", b.ID, a.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, token, http.MethodDelete,
		fmt.Sprintf("/api/tasks/%d/dependencies/%d", b.ID, a.ID), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTask(t *testing.T) {
	r, token := newTestRouter(t)
	db := database.GetDB()
	task := models.Task{Name: "short-lived", Status: models.StatusTodo}
	require.NoError(t, db.Create(&task).Error)

	w := doJSON(t, r, token, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, token, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
