// Package server assembles the HTTP engine from its dependencies.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/rempla/rempla-backend/internal/config"
	"github.com/rempla/rempla-backend/internal/feed"
	"github.com/rempla/rempla-backend/internal/handler"
	"github.com/rempla/rempla-backend/internal/middleware"
	"github.com/rempla/rempla-backend/internal/repository"
	"github.com/rempla/rempla-backend/internal/routes"
	"github.com/rempla/rempla-backend/internal/service"
	"github.com/rempla/rempla-backend/pkg/auth"
	pkgcache "github.com/rempla/rempla-backend/pkg/cache"
)

// Deps are the external resources the server runs on
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client // optional
	Hub      *feed.Hub
	Verifier auth.Verifier
	Config   *config.Config
}

// New wires repositories, services and handlers into a gin engine
func New(d Deps) *gin.Engine {
	cfg := d.Config

	convRepo := repository.NewConversationRepository(d.DB)
	msgRepo := repository.NewMessageRepository(d.DB)
	var directory repository.DirectoryRepository = repository.NewDirectoryRepository(d.DB)
	var cacheService pkgcache.Service
	if d.Redis != nil {
		cacheService = pkgcache.NewService(d.Redis)
		directory = repository.NewCachedDirectory(directory, cacheService)
	}

	f := feed.New(d.Hub, convRepo, msgRepo, directory)
	messageService := service.NewMessageService(msgRepo, convRepo, f)
	conversationService := service.NewConversationService(convRepo, f)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     config.SplitList(cfg.CORS.AllowOrigins),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining"},
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health Check
	// Health Check; Redis is reported but never fails the check
	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "rempla-backend",
			"time":    time.Now().Unix(),
		}
		if cacheService != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cacheService.Ping(ctx); err != nil {
				body["redis"] = "unavailable"
			} else {
				body["redis"] = "ok"
			}
		}
		c.JSON(http.StatusOK, body)
	})

	routes.Setup(router, routes.Handlers{
		Messages:      handler.NewMessageHandler(messageService),
		Conversations: handler.NewConversationHandler(conversationService),
		Internal:      handler.NewInternalHandler(conversationService, messageService),
		WS:            handler.NewWSHandler(f, cfg.Feed.AllowedOrigins, cfg.Feed.MessagesPerSecond),
	}, d.Verifier, d.Redis, cfg)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "not found"}})
	})

	return router
}
