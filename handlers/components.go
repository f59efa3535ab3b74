package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"compforge/database"
	"compforge/models"
	"compforge/services"
)

type ComponentsHandler struct {
	sessions  *services.SessionService
	generator *services.Generator
}

func NewComponentsHandler(sessions *services.SessionService, generator *services.Generator) *ComponentsHandler {
	return &ComponentsHandler{sessions: sessions, generator: generator}
}

type saveComponentRequest struct {
	SessionID uuid.UUID `json:"session_id" binding:"required"`
	Tags      []string  `json:"tags"`
}

// Save promotes a session's current component into the user's library.
func (h *ComponentsHandler) Save(c *gin.Context) {
	var req saveComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	userID := currentUserID(c)
	session, err := h.sessions.Get(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	current := session.Current()
	if current == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Session has no component to save"})
		return
	}

	var meta models.MessageMeta
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if m := session.Messages[i].Metadata; m != nil {
			meta = *m
			break
		}
	}

	saved := models.SavedComponent{
		UserID:      userID,
		SessionID:   session.ID,
		Name:        current.Name,
		Description: current.Description,
		JSX:         current.JSX,
		CSS:         current.CSS,
		Version:     current.Version,
		Tags:        datatypes.NewJSONSlice(req.Tags),
		Metadata:    datatypes.NewJSONType(meta),
	}
	if err := database.DB.Create(&saved).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save component"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Component saved successfully",
		"data":    gin.H{"component": saved},
	})
}

func (h *ComponentsHandler) List(c *gin.Context) {
	var components []models.SavedComponent
	database.DB.Where("user_id = ?", currentUserID(c)).
		Order("created_at DESC").
		Find(&components)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"components": components}})
}

func (h *ComponentsHandler) Get(c *gin.Context) {
	var component models.SavedComponent
	err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), currentUserID(c)).
		First(&component).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Component not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"component": component}})
}

func (h *ComponentsHandler) Delete(c *gin.Context) {
	result := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), currentUserID(c)).
		Delete(&models.SavedComponent{})
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Component not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Component deleted successfully"})
}

// Models lists the model ids reachable through the configured providers.
func (h *ComponentsHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"models": h.generator.AvailableModels()}})
}
