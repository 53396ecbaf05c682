package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/rempla/rempla-backend/internal/common"
	pkglogger "github.com/rempla/rempla-backend/pkg/logger"
)

const rateLimitWindow = time.Minute

// slidingWindow atomically trims, counts and records one hit in a sorted set.
// Returns {allowed, remaining, reset_at_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('PEXPIRE', key, window + 1000)
    return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset_at = now + window
if #oldest >= 2 then
    reset_at = tonumber(oldest[2]) + window
end
return {0, 0, reset_at}
`)

// RateLimitPerUser throttles mutations per authenticated user
func RateLimitPerUser(redisClient *redis.Client, perMinute int) gin.HandlerFunc {
	return slidingWindowLimit(redisClient, "rempla:ratelimit:user:", perMinute, func(c *gin.Context) string {
		if userID := GetUserID(c); userID != "" {
			return userID
		}
		return "ip:" + c.ClientIP()
	})
}

// RateLimitPerIP throttles by client address; used on websocket upgrades
// where reconnect storms come before any user context
func RateLimitPerIP(redisClient *redis.Client, perMinute int) gin.HandlerFunc {
	return slidingWindowLimit(redisClient, "rempla:ratelimit:ip:", perMinute, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

func slidingWindowLimit(redisClient *redis.Client, prefix string, perMinute int, keyFor func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || perMinute <= 0 {
			c.Next()
			return
		}

		now := time.Now().UnixMilli()
		result, err := slidingWindow.Run(c.Request.Context(), redisClient,
			[]string{prefix + keyFor(c)},
			perMinute, rateLimitWindow.Milliseconds(), now,
		).Int64Slice()
		if err != nil || len(result) != 3 {
			// fail open
			pkglogger.Component("ratelimit").Warn().Err(err).Msg("limiter unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result[1], 10))

		if result[0] != 1 {
			resetAt := result[2]
			retryAfter := max((resetAt-now)/1000, 1)
			c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt/1000, 10))
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			common.ErrorResponse(c, http.StatusTooManyRequests, "Too many requests, please retry shortly", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
