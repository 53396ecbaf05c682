package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rempla/rempla-backend/internal/config"
	"github.com/rempla/rempla-backend/internal/feed"
	"github.com/rempla/rempla-backend/internal/middleware"
	"github.com/rempla/rempla-backend/internal/migration"
	"github.com/rempla/rempla-backend/internal/server"
	"github.com/rempla/rempla-backend/pkg/auth"
	"github.com/rempla/rempla-backend/pkg/jwt"
	pkglogger "github.com/rempla/rempla-backend/pkg/logger"
	pkgredis "github.com/rempla/rempla-backend/pkg/redis"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

// @title           Rempla Backend API
// @version         1.0
// @description     Conversations and mission negotiation between professionals and facilities
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer credential. Example: "Bearer {token}"
func main() {
	dotenvFiles := config.LoadDotEnv()

	// Logger
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env, os.Getenv("LOG_LEVEL"))
	log := pkglogger.GetLogger()
	log.Info().Str("env", env).Strs("env_files", dotenvFiles).Msg("starting")

	// Config
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}
	config.LogResolved(cfg)

	// MySQL
	db, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := migration.Run(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.IsDevelopment() {
		if err := migration.SeedDemo(db); err != nil {
			log.Warn().Err(err).Msg("demo seed failed")
		}
	}

	// Redis (optional: single instance without it)
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		log.Warn().Err(err).Msg("continuing without Redis")
		redisClient = nil
	}

	// Change feed hub
	hub := feed.NewHub(redisClient)
	go hub.Run()
	defer hub.Stop()

	verifier, err := newVerifier(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.New(server.Deps{
		DB:       db,
		Redis:    redisClient,
		Hub:      hub,
		Verifier: verifier,
		Config:   cfg,
	})

	go reportDBStats(db)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// newVerifier builds the bearer credential verifier selected by auth.provider
func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	jwtVerifier := auth.NewJWTVerifier(jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.JWT.RefreshIn))
	switch cfg.Auth.Provider {
	case "jwt":
		return jwtVerifier, nil
	case "firebase", "both":
		fb, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		if cfg.Auth.Provider == "both" {
			return auth.Chain{fb, jwtVerifier}, nil
		}
		return fb, nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Auth.Provider)
	}
}

// initDB MySQL connection
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+00:00'"

	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}

// reportDBStats feeds the connection pool gauge
func reportDBStats(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		stats := sqlDB.Stats()
		middleware.SetDBConnections(stats.InUse, stats.Idle)
	}
}
