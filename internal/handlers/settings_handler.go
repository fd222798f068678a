package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"research-planner-api/internal/database"
	"research-planner-api/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetSettings handles GET /api/settings
func GetSettings(c *gin.Context) {
	var settings []models.Setting
	if err := database.GetDB().Order("key asc").Find(&settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings": settings,
		"count":    len(settings),
	})
}

// GetSetting handles GET /api/settings/:key
func GetSetting(c *gin.Context) {
	key := c.Param("key")

	var setting models.Setting
	err := database.GetDB().Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Setting not found: " + key})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch setting"})
		}
		return
	}
	c.JSON(http.StatusOK, setting)
}

// PutSettingRequest carries the new JSON value for a setting key.
type PutSettingRequest struct {
	Value       json.RawMessage `json:"value" binding:"required"`
	Description string          `json:"description"`
}

// PutSetting handles PUT /api/settings/:key
// Creates or replaces the setting's value. Values are stored as JSON.
func PutSetting(c *gin.Context) {
	key := c.Param("key")

	var req PutSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !json.Valid(req.Value) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be valid JSON"})
		return
	}

	db := database.GetDB()
	var setting models.Setting
	err := db.Where("key = ?", key).First(&setting).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.Setting{
			Key:         key,
			Value:       string(req.Value),
			Description: req.Description,
		}
		err = db.Create(&setting).Error
	case err == nil:
		setting.Value = string(req.Value)
		if req.Description != "" {
			setting.Description = req.Description
		}
		err = db.Save(&setting).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save setting"})
		return
	}

	// Capacity changes must be visible to the next generation run.
	if key == models.SettingWeeklyCapacity {
		svc().InvalidateCapacityCache()
	}

	c.JSON(http.StatusOK, setting)
}
