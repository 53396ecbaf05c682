package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/rempla/rempla-backend/internal/config"
	"github.com/rempla/rempla-backend/internal/handler"
	"github.com/rempla/rempla-backend/internal/middleware"
	"github.com/rempla/rempla-backend/pkg/auth"
)

// Handlers groups every HTTP handler the router serves
type Handlers struct {
	Messages      *handler.MessageHandler
	Conversations *handler.ConversationHandler
	Internal      *handler.InternalHandler
	WS            *handler.WSHandler
}

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	h Handlers,
	verifier auth.Verifier,
	redisClient *redis.Client,
	cfg *config.Config,
) {
	authed := router.Group("", middleware.BearerAuth(verifier))

	// Mutations (rate limited per user)
	mutations := authed.Group("")
	if redisClient != nil && cfg.RateLimit.Enabled {
		mutations.Use(middleware.RateLimitPerUser(redisClient, cfg.RateLimit.RequestsPerMinute))
	}
	mutations.POST("/send_message", h.Messages.SendMessage)
	mutations.DELETE("/delete_message/:conversationId/:messageId", h.Messages.DeleteMessage)
	mutations.POST("/mark_read/:conversationId", h.Messages.MarkRead)

	// Reads
	conversations := authed.Group("/conversations")
	conversations.GET("", h.Conversations.ListConversations)
	conversations.GET("/:id/messages", h.Messages.GetMessages)
	conversations.GET("/:id/mission", h.Messages.GetMission)

	// Live feeds
	live := router.Group("/ws")
	if redisClient != nil && cfg.RateLimit.Enabled {
		live.Use(middleware.RateLimitPerIP(redisClient, cfg.RateLimit.RequestsPerMinute))
	}
	live.Use(middleware.BearerAuth(verifier))
	live.GET("/conversations", h.WS.Conversations)
	live.GET("/conversations/:id/messages", h.WS.Messages)

	// Service-to-service
	internal := router.Group("/internal", middleware.APIKeyAuth(cfg.InternalAPIKey))
	internal.POST("/conversations", h.Internal.CreateConversation)
	internal.POST("/conversations/:id/notifications", h.Internal.PostNotification)
}
