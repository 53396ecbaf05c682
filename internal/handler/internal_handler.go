package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/service"
)

// InternalHandler serves endpoints called by other backend services
type InternalHandler struct {
	conversations service.ConversationService
	messages      service.MessageService
}

// NewInternalHandler creates a new InternalHandler
func NewInternalHandler(conversations service.ConversationService, messages service.MessageService) *InternalHandler {
	return &InternalHandler{conversations: conversations, messages: messages}
}

// CreateConversation handles POST /internal/conversations
func (h *InternalHandler) CreateConversation(c *gin.Context) {
	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conv, err := h.conversations.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":            conv.ID,
		"replacementId": conv.ReplacementID,
		"participants":  conv.Participants,
		"status":        conv.Status,
		"createdAt":     conv.CreatedAt,
		"updatedAt":     conv.UpdatedAt,
	})
}

// PostNotification handles POST /internal/conversations/:id/notifications
func (h *InternalHandler) PostNotification(c *gin.Context) {
	var req domain.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.messages.Notify(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}
