package database

import (
	"log"
	"os"

	"research-planner-api/internal/models"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection and runs migrations
func InitDB() {
	var err error

	// Open SQLite database file (will be created if it doesn't exist initially)
	// Using glebarez/sqlite which is a pure Go implementation (no CGO required)
	DB, err = gorm.Open(sqlite.Open("research-planner.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	if err := SeedDefaultUser(DB); err != nil {
		log.Fatal("Failed to seed default user:", err)
	}

	log.Println("Database connected and migrated successfully")
}

// Migrate runs schema auto-migration for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Genre{},
		&models.Task{},
		&models.TaskDependency{},
		&models.Schedule{},
		&models.TimeEntry{},
		&models.TaskHistory{},
		&models.Setting{},
	)
}

// SeedDefaultUser ensures a login user exists. Credentials come from
// PLANNER_USER / PLANNER_PASSWORD, defaulting to a development account.
func SeedDefaultUser(db *gorm.DB) error {
	username := getEnv("PLANNER_USER", "researcher")
	password := getEnv("PLANNER_PASSWORD", "development-password")

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := models.User{
		ID:           "user-1",
		Username:     username,
		PasswordHash: string(hash),
	}
	return db.Create(&user).Error
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
