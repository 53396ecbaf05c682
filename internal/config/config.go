package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	pkglogger "github.com/rempla/rempla-backend/pkg/logger"
)

// Config is the full application configuration
type Config struct {
	Server         ServerConfig    `yaml:"server"`
	Database       DatabaseConfig  `yaml:"database"`
	Redis          RedisConfig     `yaml:"redis"`
	JWT            JWTConfig       `yaml:"jwt"`
	Auth           AuthConfig      `yaml:"auth"`
	Firebase       FirebaseConfig  `yaml:"firebase"`
	CORS           CORSConfig      `yaml:"cors"`
	Feed           FeedConfig      `yaml:"feed"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	InternalAPIKey string          `yaml:"internal_api_key"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Env  string `yaml:"env"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// GetDSN builds the MySQL data source name
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // seconds
	RefreshIn int    `yaml:"refresh_in"` // seconds
}

// AuthConfig selects the bearer credential verifier: "jwt", "firebase" or "both"
type AuthConfig struct {
	Provider string `yaml:"provider"`
}

type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

type FeedConfig struct {
	// AllowedOrigins for websocket upgrades, comma separated; empty allows all
	AllowedOrigins string `yaml:"allowed_origins"`
	// MessagesPerSecond throttles inbound websocket frames per connection
	MessagesPerSecond float64 `yaml:"messages_per_second"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// IsDevelopment reports whether the server runs in a local or development env
func (c *Config) IsDevelopment() bool {
	switch c.Server.Env {
	case "", "local", "dev", "development":
		return true
	}
	return false
}

// Load reads the yaml file at path, applies defaults and env overrides.
// A missing file is not an error; defaults and env still apply.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.JWT.Secret == "" && (cfg.Auth.Provider == "jwt" || cfg.Auth.Provider == "both") {
		return nil, fmt.Errorf("jwt.secret is required for auth provider %q", cfg.Auth.Provider)
	}
	if cfg.Auth.Provider != "jwt" && cfg.Firebase.ProjectID == "" {
		return nil, fmt.Errorf("firebase.project_id is required for auth provider %q", cfg.Auth.Provider)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080, Env: "local"},
		Database:  DatabaseConfig{Host: "localhost", Port: 3306, User: "rempla", DBName: "rempla", MaxIdleConns: 10, MaxOpenConns: 50, ConnMaxLifetime: 300},
		Redis:     RedisConfig{Host: "localhost", Port: 6379, PoolSize: 10},
		JWT:       JWTConfig{ExpiresIn: 3600, RefreshIn: 604800},
		Auth:      AuthConfig{Provider: "jwt"},
		CORS:      CORSConfig{AllowOrigins: "http://localhost:3000"},
		Feed:      FeedConfig{MessagesPerSecond: 5},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 30},
	}
}

// applyEnv overrides file values with environment variables
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Env, "APP_ENV")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")

	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Auth.Provider, "AUTH_PROVIDER")
	setString(&cfg.Firebase.ProjectID, "FIREBASE_PROJECT_ID")
	setString(&cfg.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS_FILE")
	setString(&cfg.InternalAPIKey, "INTERNAL_API_KEY")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setString(&cfg.Feed.AllowedOrigins, "WS_ALLOWED_ORIGINS")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// LogResolved prints the effective configuration without secrets
func LogResolved(cfg *Config) {
	pkglogger.GetLogger().Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("db", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)).
		Str("redis", fmt.Sprintf("%s:%d/%d", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB)).
		Str("auth_provider", cfg.Auth.Provider).
		Str("cors", cfg.CORS.AllowOrigins).
		Bool("jwt_secret_set", cfg.JWT.Secret != "").
		Bool("internal_api_key_set", cfg.InternalAPIKey != "").
		Bool("rate_limit", cfg.RateLimit.Enabled).
		Strs("ws_origins", SplitList(cfg.Feed.AllowedOrigins)).
		Msg("config resolved")
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
