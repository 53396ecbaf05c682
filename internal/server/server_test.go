package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rempla/rempla-backend/internal/config"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/feed"
	"github.com/rempla/rempla-backend/internal/migration"
	"github.com/rempla/rempla-backend/pkg/auth"
	"github.com/rempla/rempla-backend/pkg/jwt"
)

const internalKey = "internal-test-key"

// APISuite exercises the HTTP surface against an in-memory database
type APISuite struct {
	suite.Suite
	db         *gorm.DB
	router     *gin.Engine
	jwtManager *jwt.Manager
	convID     string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(migration.Run(db))
	s.Require().NoError(db.Create(&domain.Establishment{ID: "est-1", Name: "Clinic A"}).Error)
	s.db = db

	s.jwtManager = jwt.NewManager("test-secret", 900, 86400)
	cfg := &config.Config{
		CORS:           config.CORSConfig{AllowOrigins: "http://localhost:3000"},
		Feed:           config.FeedConfig{MessagesPerSecond: 5},
		InternalAPIKey: internalKey,
	}
	s.router = New(Deps{
		DB:       db,
		Hub:      feed.NewHub(nil),
		Verifier: auth.NewJWTVerifier(s.jwtManager),
		Config:   cfg,
	})

	w := s.do(http.MethodPost, "/internal/conversations", "", map[string]string{
		"replacementId": "repl-1", "professionalId": "pro-1", "establishmentId": "est-1",
	}, map[string]string{"X-API-Key": internalKey})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &created))
	s.convID = created.ID
}

func (s *APISuite) token(userID string) string {
	token, err := s.jwtManager.GenerateAccessToken(userID, "")
	s.Require().NoError(err)
	return token
}

func (s *APISuite) do(method, path, userID string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(userID))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APISuite) send(userID string, body map[string]interface{}) *httptest.ResponseRecorder {
	body["conversationId"] = s.convID
	return s.do(http.MethodPost, "/send_message", userID, body, nil)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}

func missionBody(action, status string) map[string]interface{} {
	return map[string]interface{}{
		"type": "mission", "action": action, "missionId": "m-1", "status": status,
		"details": map[string]interface{}{
			"date": "2026-03-02", "startTime": "08:00", "endTime": "18:00",
			"establishmentId": "est-1", "establishmentName": "Clinic A", "hourlyRate": 45.5,
		},
	}
}

func (s *APISuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", nil, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestSwaggerUI() {
	w := s.do(http.MethodGet, "/swagger/index.html", "", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "swagger")
}

func (s *APISuite) TestSendMessage() {
	w := s.send("pro-1", map[string]interface{}{"type": "user", "content": "Bonjour"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var rec domain.MessageRecord
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &rec))
	s.NotEmpty(rec.ID)
	s.Equal("user", rec.Kind)
	s.Equal("pro-1", *rec.SenderID)
	s.Equal([]string{"pro-1"}, rec.ReadBy)
	s.Contains(w.Body.String(), `"type":"user"`)
}

func (s *APISuite) TestSendMessage_Errors() {
	cases := []struct {
		name   string
		userID string
		body   map[string]interface{}
		status int
		code   string
	}{
		{"unauthenticated", "", map[string]interface{}{"type": "user", "content": "hi"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"outsider", "pro-2", map[string]interface{}{"type": "user", "content": "hi"}, http.StatusForbidden, "FORBIDDEN"},
		{"blank", "pro-1", map[string]interface{}{"type": "user", "content": " "}, http.StatusBadRequest, "BAD_REQUEST"},
		{"role mismatch", "est-1", map[string]interface{}{"type": "user", "content": "hi"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing type", "pro-1", map[string]interface{}{"content": "hi"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"illegal transition", "est-1", missionBody("confirmation", "accepted"), http.StatusConflict, "INVALID_TRANSITION"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			w := s.send(tc.userID, tc.body)
			s.Equal(tc.status, w.Code, w.Body.String())
			s.Equal(tc.code, errorCode(s.T(), w))
		})
	}
}

func (s *APISuite) TestMissionFlow() {
	s.Require().Equal(http.StatusOK, s.send("est-1", missionBody("proposal", "pending")).Code)
	s.Require().Equal(http.StatusOK, s.send("pro-1", missionBody("confirmation", "accepted")).Code)

	w := s.do(http.MethodGet, "/conversations/"+s.convID+"/mission", "pro-1", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"state":"accepted"`)

	w = s.do(http.MethodGet, "/conversations?filter=active", "pro-1", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var list domain.ConversationSnapshot
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Require().Len(list.Conversations, 1)
	s.Equal("Clinic A", list.Conversations[0].CounterpartName)
	s.Equal("New mission update", list.Conversations[0].LastMessage.Content)

	s.Require().Equal(http.StatusOK, s.send("est-1", missionBody("confirmation", "accepted")).Code)
	w = s.do(http.MethodGet, "/conversations?filter=closed&q=clinic+a", "pro-1", nil, nil)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Len(list.Conversations, 1)

	w = s.do(http.MethodGet, "/conversations?filter=archived", "pro-1", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APISuite) TestDeleteMessage() {
	w := s.send("pro-1", map[string]interface{}{"type": "user", "content": "typo"})
	s.Require().Equal(http.StatusOK, w.Code)
	var rec domain.MessageRecord
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &rec))
	path := "/delete_message/" + s.convID + "/" + rec.ID

	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, path, "est-1", nil, nil).Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, path, "pro-1", nil, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, path, "pro-1", nil, nil).Code)

	w = s.do(http.MethodGet, "/conversations/"+s.convID+"/messages", "est-1", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var snap domain.MessageSnapshotPayload
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &snap))
	s.Require().Len(snap.Messages, 1)
	s.NotNil(snap.Messages[0].DeletedAt)
	s.Empty(snap.Messages[0].Content)
}

func (s *APISuite) TestMarkReadAndNotification() {
	w := s.do(http.MethodPost, "/internal/conversations/"+s.convID+"/notifications", "", map[string]string{
		"notificationType": "info", "title": "Reminder", "content": "Tomorrow 8am",
	}, map[string]string{"X-API-Key": internalKey})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Contains(w.Body.String(), `"senderId":null`)

	s.Equal(http.StatusNoContent, s.do(http.MethodPost, "/mark_read/"+s.convID, "est-1", nil, nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/mark_read/"+s.convID, "pro-9", nil, nil).Code)

	w = s.do(http.MethodPost, "/internal/conversations", "", map[string]string{}, map[string]string{"X-API-Key": "nope"})
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *APISuite) TestWebsocketMessages() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversations/" + s.convID + "/messages"
	header := http.Header{"Authorization": []string{"Bearer " + s.token("est-1")}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	s.Require().NoError(err)
	defer conn.Close()

	read := func() (string, domain.MessageSnapshotPayload) {
		var frame struct {
			Type    string                        `json:"type"`
			Payload domain.MessageSnapshotPayload `json:"payload"`
		}
		s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
		s.Require().NoError(conn.ReadJSON(&frame))
		return frame.Type, frame.Payload
	}

	kind, snap := read()
	s.Equal("snapshot", kind)
	s.Empty(snap.Messages)

	s.Require().Equal(http.StatusOK, s.send("pro-1", map[string]interface{}{"type": "user", "content": "live"}).Code)
	for len(snap.Messages) == 0 {
		_, snap = read()
	}
	s.Equal("live", snap.Messages[0].Content)

	// outsiders are refused before the upgrade
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer " + s.token("pro-9")}})
	s.Require().Error(err)
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestNoRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	router := New(Deps{DB: db, Hub: feed.NewHub(nil), Verifier: auth.Chain{}, Config: &config.Config{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth_ReportsRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.Run(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	router := New(Deps{
		DB:       db,
		Redis:    client,
		Hub:      feed.NewHub(client),
		Verifier: auth.NewJWTVerifier(jwt.NewManager("test-secret", 900, 86400)),
		Config:   &config.Config{InternalAPIKey: internalKey},
	})

	health := func() map[string]interface{} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	assert.Equal(t, "ok", health()["redis"])

	mr.Close()
	body := health()
	assert.Equal(t, "unavailable", body["redis"])
	assert.Equal(t, "ok", body["status"])
}
