package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/pkg/auth"
)

// BearerAuth authenticates requests with the configured credential verifier
func BearerAuth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract token
		token, ok := bearerToken(c)
		if !ok {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing or malformed authorization header", common.ErrUnauthenticated)
			c.Abort()
			return
		}

		// 2. Verify token
		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			common.ErrorResponse(c, http.StatusUnauthorized, "Invalid token", common.ErrUnauthenticated)
			c.Abort()
			return
		}

		// 3. Store identity in context
		c.Set("userID", identity.UserID)
		c.Set("role", identity.Role)

		c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <token>". Websocket upgrades may
// pass the token as ?access_token= since some clients cannot set headers.
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		if token := c.Query("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}
	if str, ok := userID.(string); ok {
		return str
	}
	return ""
}

// GetRole extracts the identity role claim from context
func GetRole(c *gin.Context) string {
	role, exists := c.Get("role")
	if !exists {
		return ""
	}
	if str, ok := role.(string); ok {
		return str
	}
	return ""
}
