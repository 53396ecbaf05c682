package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rempla/rempla-backend/internal/common"
)

// APIKeyAuth guards internal endpoints with a shared key.
// Checks X-API-Key header; an empty configured key rejects everything.
func APIKeyAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "API key required", nil)
			c.Abort()
			return
		}

		if expected == "" || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
			common.ErrorResponse(c, http.StatusForbidden, "Invalid API key", nil)
			c.Abort()
			return
		}

		c.Set("api_key_auth", true)
		c.Next()
	}
}
