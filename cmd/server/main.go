package main

import (
	"log"
	"research-planner-api/internal/database"
	"research-planner-api/internal/routes"
)

func main() {
	// Init database
	database.InitDB()

	// Setup the routes (public and protected routes)
	ginRoutes := routes.SetupRoutes()

	// Start server
	port := ":8008" // This is customizable based on the environment
	log.Printf("Server starting on port %s", port)
	log.Println("API endpoints:")
	log.Println("  POST   /api/login")
	log.Println("  GET    /api/tasks")
	log.Println("  POST   /api/tasks")
	log.Println("  POST   /api/tasks/bulk")
	log.Println("  POST   /api/tasks/breakdown")
	log.Println("  POST   /api/tasks/merge")
	log.Println("  POST   /api/tasks/:id/complete")
	log.Println("  GET    /api/tasks/:id/dependencies")
	log.Println("  POST   /api/schedules/generate-weekly")
	log.Println("  POST   /api/schedules/reschedule")
	log.Println("  POST   /api/timer/start/:taskId")
	log.Println("  POST   /api/timer/stop")
	log.Println("  GET    /api/ws")
	log.Println("  GET    /health")

	if err := ginRoutes.Run(port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
