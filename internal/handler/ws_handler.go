package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/config"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/feed"
	"github.com/rempla/rempla-backend/internal/middleware"
	"github.com/rempla/rempla-backend/internal/ws"
	pkglogger "github.com/rempla/rempla-backend/pkg/logger"
)

// WSHandler streams feed snapshots over WebSocket connections
type WSHandler struct {
	feed           *feed.Feed
	allowedOrigins []string
	perSecond      float64
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(f *feed.Feed, allowedOrigins string, perSecond float64) *WSHandler {
	h := &WSHandler{
		feed:           f,
		allowedOrigins: config.SplitList(allowedOrigins),
		perSecond:      perSecond,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin validates the request origin against allowed origins
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Native clients don't send an Origin header
	}

	// If no allowed origins configured, allow all (development mode)
	if len(h.allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// Conversations handles GET /ws/conversations
// @Summary Live conversation list snapshots
// @Tags conversations
// @Router /ws/conversations [get]
func (h *WSHandler) Conversations(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := ws.NewClient(conn, h.perSecond)
	done := middleware.TrackWebsocket("conversations")

	sub, err := h.feed.SubscribeConversations(c.Request.Context(), userID, func(snap domain.ConversationSnapshot, err error) {
		push(client, snap, err)
	})
	if err != nil {
		push(client, nil, err)
		client.Close()
	}
	h.serve(client, sub, done)
}

// Messages handles GET /ws/conversations/:id/messages
// @Summary Live message snapshots of one conversation
// @Tags messages
// @Router /ws/conversations/{id}/messages [get]
func (h *WSHandler) Messages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	// authorize before upgrading so a refusal is a plain HTTP error
	conversationID := c.Param("id")
	ctx := c.Request.Context()
	if err := h.feed.CanView(ctx, userID, conversationID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := ws.NewClient(conn, h.perSecond)
	done := middleware.TrackWebsocket("messages")

	sub, err := h.feed.SubscribeMessages(ctx, userID, conversationID, func(snap domain.MessageSnapshot, err error) {
		push(client, snap.Payload(), err)
	})
	if err != nil {
		push(client, nil, err)
		client.Close()
	}
	h.serve(client, sub, done)
}

// serve pumps frames until either side closes, then releases the subscription
func (h *WSHandler) serve(client *ws.Client, sub *feed.Subscription, done func()) {
	go client.WritePump()
	go func() {
		<-client.Done()
		if sub != nil {
			sub.Close()
		}
		done()
	}()
	client.ReadPump()
}

func push(client *ws.Client, payload interface{}, err error) {
	frame := ws.Frame{Type: ws.FrameSnapshot, Payload: payload}
	if err != nil {
		status := common.StatusFor(err)
		frame = ws.Frame{Type: ws.FrameError, Payload: ws.ErrorPayload{
			Code:    common.ErrorCode(status),
			Message: err.Error(),
		}}
		pkglogger.Component("ws").Warn().Err(err).Msg("snapshot failed")
	}
	if perr := client.Push(frame); perr != nil {
		pkglogger.Component("ws").Error().Err(perr).Msg("encode frame")
	}
}
