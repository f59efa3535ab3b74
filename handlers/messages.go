package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"compforge/services"
)

type MessagesHandler struct {
	sessions *services.SessionService
}

func NewMessagesHandler(sessions *services.SessionService) *MessagesHandler {
	return &MessagesHandler{sessions: sessions}
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Send records the user turn and answers it with a freshly generated or
// refined component. A generation failure still returns the recorded user
// message and the apology turn, so the client can render the exchange.
func (h *MessagesHandler) Send(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid content"})
		return
	}

	result, err := h.sessions.SendMessage(c.Request.Context(), currentUserID(c), id, req.Content)
	if err != nil {
		if errors.Is(err, services.ErrGeneration) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Failed to process AI request",
				"data": gin.H{
					"user_message":  result.UserMessage,
					"error_message": result.AssistantMessage,
				},
			})
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message sent and processed successfully",
		"data": gin.H{
			"user_message":      result.UserMessage,
			"assistant_message": result.AssistantMessage,
			"component":         result.Component,
			"session": gin.H{
				"id":                result.Session.ID,
				"current_component": result.Session.Current(),
				"metadata":          result.Session.Metadata.Data(),
			},
		},
	})
}

func (h *MessagesHandler) List(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 50)

	messages, total, err := h.sessions.ListMessages(c.Request.Context(), currentUserID(c), id, page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"messages": messages,
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
				"pages": (total + limit - 1) / limit,
			},
		},
	})
}

func (h *MessagesHandler) Edit(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid content"})
		return
	}

	msg, err := h.sessions.EditMessage(c.Request.Context(), currentUserID(c), id, c.Param("messageId"), req.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message updated successfully",
		"data":    gin.H{"message": msg},
	})
}

func (h *MessagesHandler) Delete(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	if err := h.sessions.DeleteMessage(c.Request.Context(), currentUserID(c), id, c.Param("messageId")); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted successfully"})
}

// Regenerate rewinds the session to the given user message and answers it
// again; everything after that message is discarded.
func (h *MessagesHandler) Regenerate(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	result, err := h.sessions.RegenerateResponse(c.Request.Context(), currentUserID(c), id, c.Param("messageId"))
	if err != nil {
		if errors.Is(err, services.ErrGeneration) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Failed to regenerate response",
				"data":    gin.H{"error_message": result.AssistantMessage},
			})
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Response regenerated successfully",
		"data": gin.H{
			"assistant_message": result.AssistantMessage,
			"component":         result.Component,
		},
	})
}
