package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL constants
const (
	TTLCounterpart = 10 * time.Minute // counterpart display names (rarely change)
)

// Cache key prefixes
const (
	PrefixCounterpart = "counterpart:"
)

// ErrMiss is returned when a key is absent
var ErrMiss = errors.New("cache miss")

// Service Redis cache service interface
type Service interface {
	// basic operations
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// counterpart display names
	GetCounterpartName(ctx context.Context, participantID string) (string, error)
	SetCounterpartName(ctx context.Context, participantID, name string) error

	// utilities
	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache Redis-backed cache
type redisCache struct {
	client *redis.Client
}

// NewService creates a cache service; a nil client yields a no-op cache
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsAvailable reports whether Redis is configured
func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

// Ping checks the Redis connection
func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

// Get reads a JSON value
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set stores a JSON value
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // no Redis, nothing to do
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// ========================================
// counterpart cache
// ========================================

func (c *redisCache) counterpartKey(participantID string) string {
	return PrefixCounterpart + participantID
}

func (c *redisCache) GetCounterpartName(ctx context.Context, participantID string) (string, error) {
	var name string
	if err := c.Get(ctx, c.counterpartKey(participantID), &name); err != nil {
		return "", err
	}
	return name, nil
}

func (c *redisCache) SetCounterpartName(ctx context.Context, participantID, name string) error {
	return c.Set(ctx, c.counterpartKey(participantID), name, TTLCounterpart)
}
