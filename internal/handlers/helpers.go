package handlers

import (
	"net/http"
	"sync"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/database"
	"research-planner-api/internal/realtime"
	"research-planner-api/internal/workflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	svcMu       sync.Mutex
	svcInstance *workflow.Service
	svcDB       *gorm.DB
)

// svc returns the workflow service bound to the current database
// handle. Tests swap database.DB for an in-memory instance, so the
// service is rebuilt whenever the handle changes.
func svc() *workflow.Service {
	svcMu.Lock()
	defer svcMu.Unlock()
	db := database.GetDB()
	if svcInstance == nil || svcDB != db {
		svcInstance = workflow.New(db)
		svcDB = db
	}
	return svcInstance
}

// respondError maps application errors to their HTTP status with a
// structured body; anything unclassified becomes a 500.
func respondError(c *gin.Context, err error) {
	if ae, ok := apperr.As(err); ok {
		c.JSON(apperr.HTTPStatus(err), gin.H{
			"error":   ae.Message,
			"code":    ae.Code,
			"details": ae.Details,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// broadcast sends an event to the authenticated user's websocket clients.
func broadcast(c *gin.Context, eventType string, payload map[string]any) {
	userID := c.GetString("user_id")
	if userID == "" {
		return
	}
	realtime.GetHub().Publish(userID, realtime.Event{Type: eventType, Data: payload})
}
