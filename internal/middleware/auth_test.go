package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/pkg/auth"
	"github.com/rempla/rempla-backend/pkg/jwt"
)

func newAuthRouter(m *jwt.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BearerAuth(auth.NewJWTVerifier(m)))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": GetUserID(c), "role": GetRole(c)})
	})
	return r
}

func TestBearerAuth_Rejects(t *testing.T) {
	r := newAuthRouter(jwt.NewManager("secret", 60, 60))

	for name, header := range map[string]string{
		"missing":   "",
		"no scheme": "token",
		"basic":     "Basic abc",
		"empty":     "Bearer ",
		"garbage":   "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			var body common.ErrorEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
		})
	}
}

func TestBearerAuth_Accepts(t *testing.T) {
	m := jwt.NewManager("secret", 60, 60)
	r := newAuthRouter(m)
	token, err := m.GenerateAccessToken("pro-1", "professional")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userID":"pro-1","role":"professional"}`, w.Body.String())
}

func TestBearerAuth_WebsocketQueryToken(t *testing.T) {
	m := jwt.NewManager("secret", 60, 60)
	r := newAuthRouter(m)
	token, err := m.GenerateAccessToken("pro-1", "")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test?access_token="+token, nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "query token only for upgrades")

	w = httptest.NewRecorder()
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyAuth("internal"))
	r.POST("/internal", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusForbidden},
		{"internal", http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/internal", nil)
		if tc.key != "" {
			req.Header.Set("X-API-Key", tc.key)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "key %q", tc.key)
	}
}

func TestRateLimit_WithoutRedisPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitPerUser(nil, 1))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRedactQuery(t *testing.T) {
	q, _ := url.ParseQuery("access_token=secret&filter=active")
	out := redactQuery(q)
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "filter=active")
}
