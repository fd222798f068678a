package routes

import (
	"research-planner-api/internal/handlers"
	"research-planner-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes() *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Research Planner API is running",
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		// Login endpoint
		api.POST("/login", handlers.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		// Task endpoints
		protectedRoutes.GET("/tasks", handlers.GetTasks)
		protectedRoutes.GET("/tasks/:id", handlers.GetTaskByID)
		protectedRoutes.POST("/tasks", handlers.CreateTask)
		protectedRoutes.PUT("/tasks/:id", handlers.UpdateTask)
		protectedRoutes.PATCH("/tasks/:id/status", handlers.UpdateTaskStatus)
		protectedRoutes.DELETE("/tasks/:id", handlers.DeleteTask)
		protectedRoutes.POST("/tasks/:id/complete", handlers.CompleteTask)
		protectedRoutes.GET("/tasks/:id/history", handlers.GetTaskHistory)

		// Task dependency endpoints
		protectedRoutes.GET("/tasks/:id/dependencies", handlers.GetTaskDependencies)
		protectedRoutes.POST("/tasks/:id/dependencies", handlers.AddTaskDependency)
		protectedRoutes.DELETE("/tasks/:id/dependencies/:depId", handlers.RemoveTaskDependency)

		// Task workflow endpoints (atomic multi-task operations)
		protectedRoutes.POST("/tasks/breakdown", handlers.BreakdownTask)
		protectedRoutes.POST("/tasks/merge", handlers.MergeTasks)
		protectedRoutes.POST("/tasks/bulk", handlers.BulkCreateTasks)

		// Schedule endpoints
		protectedRoutes.GET("/schedules", handlers.GetSchedules)
		protectedRoutes.POST("/schedules/generate-weekly", handlers.GenerateWeeklySchedule)
		protectedRoutes.POST("/schedules/reschedule", handlers.RescheduleDay)
		protectedRoutes.PATCH("/schedules/:id/status", handlers.UpdateScheduleStatus)

		// Time entry endpoints (manual log corrections; the running
		// entry is owned by the timer)
		protectedRoutes.GET("/time-entries", handlers.GetTimeEntries)
		protectedRoutes.POST("/time-entries", handlers.CreateTimeEntry)
		protectedRoutes.PATCH("/time-entries/:id", handlers.UpdateTimeEntry)
		protectedRoutes.DELETE("/time-entries/:id", handlers.DeleteTimeEntry)

		// Dashboard read models
		protectedRoutes.GET("/dashboard/summary", handlers.GetDashboardSummary)
		protectedRoutes.GET("/dashboard/today", handlers.GetDashboardToday)
		protectedRoutes.GET("/dashboard/weekly", handlers.GetDashboardWeekly)

		// Timer endpoints (single global timer)
		protectedRoutes.POST("/timer/start/:taskId", handlers.StartTimer)
		protectedRoutes.POST("/timer/stop", handlers.StopTimer)
		protectedRoutes.GET("/timer/status", handlers.GetTimerStatus)

		// Project and genre endpoints
		protectedRoutes.GET("/projects", handlers.GetProjects)
		protectedRoutes.POST("/projects", handlers.CreateProject)
		protectedRoutes.GET("/genres", handlers.GetGenres)
		protectedRoutes.POST("/genres", handlers.CreateGenre)

		// Settings endpoints
		protectedRoutes.GET("/settings", handlers.GetSettings)
		protectedRoutes.GET("/settings/:key", handlers.GetSetting)
		protectedRoutes.PUT("/settings/:key", handlers.PutSetting)

		// WebSocket endpoint for realtime task and schedule events
		protectedRoutes.GET("/ws", handlers.WebSocketHandler)
	}

	return ginRouter
}
