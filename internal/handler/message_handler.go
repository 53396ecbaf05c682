package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/middleware"
	"github.com/rempla/rempla-backend/internal/service"
)

// MessageHandler handles conversation message HTTP requests
type MessageHandler struct {
	service service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service service.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// SendMessage handles POST /send_message
// @Summary Append a message to a conversation
// @Tags messages
// @Accept json
// @Produce json
// @Param request body domain.SendMessageRequest true "message"
// @Success 200 {object} domain.MessageRecord
// @Router /send_message [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.service.Append(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// DeleteMessage handles DELETE /delete_message/:conversationId/:messageId
// @Summary Soft-delete one of the caller's messages
// @Tags messages
// @Success 204
// @Router /delete_message/{conversationId}/{messageId} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	err := h.service.SoftDelete(c.Request.Context(), userID, c.Param("conversationId"), c.Param("messageId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkRead handles POST /mark_read/:conversationId
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), userID, c.Param("conversationId")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetMessages handles GET /conversations/:id/messages
// @Summary Current message snapshot of a conversation
// @Tags messages
// @Produce json
// @Success 200 {object} domain.MessageSnapshotPayload
// @Router /conversations/{id}/messages [get]
func (h *MessageHandler) GetMessages(c *gin.Context) {
	snap, err := h.service.Snapshot(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap.Payload())
}

// GetMission handles GET /conversations/:id/mission
func (h *MessageHandler) GetMission(c *gin.Context) {
	state, err := h.service.MissionState(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// respondError maps business errors onto the error envelope
func respondError(c *gin.Context, err error) {
	if common.StatusFor(err) >= http.StatusInternalServerError {
		c.Error(err) //nolint:errcheck
	}
	common.AbortWithError(c, err)
}
