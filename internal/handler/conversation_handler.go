package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rempla/rempla-backend/internal/aggregator"
	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/middleware"
	"github.com/rempla/rempla-backend/internal/service"
)

// ConversationHandler handles conversation list HTTP requests
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// ListConversations handles GET /conversations
// @Summary The caller's conversations, most recent first
// @Tags conversations
// @Produce json
// @Param filter query string false "all | active | closed | cancelled"
// @Param q query string false "search in counterpart name and last message"
// @Success 200 {object} domain.ConversationSnapshot
// @Router /conversations [get]
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := middleware.GetUserID(c)

	filter, err := aggregator.ParseFilter(c.Query("filter"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	summaries, err := h.service.List(c.Request.Context(), userID, filter, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.ConversationSnapshot{UserID: userID, Conversations: summaries})
}
