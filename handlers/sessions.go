package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"compforge/models"
	"compforge/services"
)

type SessionsHandler struct {
	sessions *services.SessionService
}

func NewSessionsHandler(sessions *services.SessionService) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

func currentUserID(c *gin.Context) uuid.UUID {
	userID, _ := c.Get("user_id")
	return userID.(uuid.UUID)
}

func sessionIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// State-machine failures carry their precise reason to the client.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Session not found"})
	case errors.Is(err, models.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Message not found"})
	case errors.Is(err, models.ErrEditNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Only user messages can be edited"})
	case errors.Is(err, models.ErrRegenerateNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Can only regenerate responses for user messages"})
	case errors.Is(err, models.ErrSessionNotMutable):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Session is deleted and cannot be modified"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
	}
}

type createSessionRequest struct {
	Name     string                 `json:"name" binding:"required,max=200"`
	Settings models.SessionSettings `json:"settings"`
}

type updateSessionRequest struct {
	Name     string                  `json:"name" binding:"omitempty,max=200"`
	Settings *models.SessionSettings `json:"settings"`
}

func validSettings(s *models.SessionSettings) bool {
	if s == nil {
		return true
	}
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
		return false
	}
	return s.MaxTokens >= 0
}

func (h *SessionsHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	if !validSettings(&req.Settings) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid settings"})
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), currentUserID(c), req.Name, req.Settings)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Session created successfully",
		"data":    gin.H{"session": session},
	})
}

func (h *SessionsHandler) List(c *gin.Context) {
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)
	status := c.DefaultQuery("status", models.SessionStatusActive)

	sessions, total, err := h.sessions.List(c.Request.Context(), currentUserID(c), status, page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"sessions": sessions,
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
				"pages": (total + int64(limit) - 1) / int64(limit),
			},
		},
	})
}

func (h *SessionsHandler) Get(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"session": session}})
}

func (h *SessionsHandler) Update(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	if !validSettings(req.Settings) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid settings"})
		return
	}

	session, err := h.sessions.Update(c.Request.Context(), currentUserID(c), id, req.Name, req.Settings)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session updated successfully",
		"data":    gin.H{"session": session},
	})
}

func (h *SessionsHandler) Delete(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session deleted successfully"})
}

func (h *SessionsHandler) Archive(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.sessions.Archive(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session archived successfully",
		"data":    gin.H{"session": session},
	})
}

func (h *SessionsHandler) Duplicate(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.sessions.Duplicate(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Session duplicated successfully",
		"data":    gin.H{"session": session},
	})
}

func (h *SessionsHandler) Stats(c *gin.Context) {
	stats, err := h.sessions.Stats(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}
