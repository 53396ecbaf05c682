package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rempla/rempla-backend/pkg/logger"
)

func TestRequestLogger_LogsIdentityAndRedactsToken(t *testing.T) {
	var buf bytes.Buffer
	prev := *logger.GetLogger()
	*logger.GetLogger() = zerolog.New(&buf)
	t.Cleanup(func() { *logger.GetLogger() = prev })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.Use(func(c *gin.Context) {
		c.Set("userID", "pro-1")
		c.Set("role", "professional")
	})
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?access_token=secret", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)
	require.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "pro-1", line["user_id"])
	assert.Equal(t, "professional", line["role"])
	assert.Equal(t, float64(http.StatusNoContent), line["status"])
	assert.NotContains(t, buf.String(), "secret")
}
