package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	pkglogger "github.com/rempla/rempla-backend/pkg/logger"
)

// wireFrame mirrors the server's websocket frame with a deferred payload
type wireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FeedClient opens live snapshot streams and keeps them alive across
// transport failures.
type FeedClient struct {
	wsURL  string
	creds  CredentialSource
	dialer *websocket.Dialer

	// InitialBackoff and MaxBackoff bound the reconnection delay
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// ReadTimeout is how long the stream may stay silent (no frame, no
	// server ping) before the connection is considered lost
	ReadTimeout time.Duration
}

const (
	controlWriteWait = 5 * time.Second
	// the server pings every 54s
	defaultReadTimeout = 70 * time.Second
)

// NewFeedClient creates a FeedClient for the API at baseURL (http or https)
func NewFeedClient(baseURL string, creds CredentialSource) *FeedClient {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &FeedClient{
		wsURL: u,
		creds: creds,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		ReadTimeout:    defaultReadTimeout,
	}
}

// SubscribeMessages streams complete ordered message snapshots of one
// conversation. Transport failures are reported through onUpdate and retried;
// authorization failures are reported once and end the subscription.
func (f *FeedClient) SubscribeMessages(ctx context.Context, conversationID string, onUpdate func(domain.MessageSnapshot, error)) *Subscription {
	path := "/ws/conversations/" + conversationID + "/messages"
	return f.subscribe(ctx, path, func(sub *Subscription, payload json.RawMessage, err error) {
		if err != nil {
			sub.deliver(func() { onUpdate(domain.MessageSnapshot{}, err) })
			return
		}
		var wire domain.MessageSnapshotPayload
		if err := json.Unmarshal(payload, &wire); err != nil {
			pkglogger.Component("chatclient").Warn().Err(err).Str("conversation_id", conversationID).Msg("undecodable message snapshot")
			return
		}
		snap := decodeMessages(wire)
		sub.deliver(func() { onUpdate(snap, nil) })
	})
}

// SubscribeConversations streams the signed-in user's conversation list,
// most recently updated first.
func (f *FeedClient) SubscribeConversations(ctx context.Context, onUpdate func(domain.ConversationSnapshot, error)) *Subscription {
	return f.subscribe(ctx, "/ws/conversations", func(sub *Subscription, payload json.RawMessage, err error) {
		if err != nil {
			sub.deliver(func() { onUpdate(domain.ConversationSnapshot{}, err) })
			return
		}
		var snap domain.ConversationSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			pkglogger.Component("chatclient").Warn().Err(err).Msg("undecodable conversation snapshot")
			return
		}
		sub.deliver(func() { onUpdate(snap, nil) })
	})
}

type frameHandler func(sub *Subscription, payload json.RawMessage, err error)

func (f *FeedClient) subscribe(ctx context.Context, path string, handle frameHandler) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	go f.run(ctx, sub, path, handle)
	return sub
}

func (f *FeedClient) run(ctx context.Context, sub *Subscription, path string, handle frameHandler) {
	defer close(sub.done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.InitialBackoff
	b.MaxInterval = f.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		err := f.stream(ctx, sub, path, handle, b.Reset)
		if ctx.Err() != nil {
			return
		}
		handle(sub, nil, err)
		if !retryable(err) {
			return
		}

		sub.reconnecting.Store(true)
		delay := b.NextBackOff()
		pkglogger.Component("chatclient").Debug().Err(err).Str("path", path).Dur("retry_in", delay).Msg("reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream runs one connection until it fails or ctx ends. connected is
// called after the first snapshot so the backoff restarts from its minimum.
func (f *FeedClient) stream(ctx context.Context, sub *Subscription, path string, handle frameHandler, connected func()) error {
	token, err := f.creds.Credential(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnauthenticated, err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := f.dialer.DialContext(ctx, f.wsURL+path, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return fmt.Errorf("%w: dial: %v", common.ErrTransport, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	timeout := f.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	extend := func() {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	extend()
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	first := true
	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("%w: read: %v", common.ErrTransport, err)
		}
		extend()
		switch frame.Type {
		case "snapshot":
			if first {
				first = false
				connected()
			}
			sub.reconnecting.Store(false)
			handle(sub, frame.Payload, nil)
		case "error":
			var p errorPayload
			_ = json.Unmarshal(frame.Payload, &p)
			return fmt.Errorf("%w: %s", errorFromCode(p.Code), p.Message)
		default:
			pkglogger.Component("chatclient").Debug().Str("type", frame.Type).Msg("ignoring frame")
		}
	}
}

// decodeMessages parses the wire records; malformed ones are logged and
// dropped, never delivered
func decodeMessages(wire domain.MessageSnapshotPayload) domain.MessageSnapshot {
	msgs, rejected := domain.ParseRecords(wire.Messages)
	for _, r := range rejected {
		pkglogger.Component("chatclient").Warn().Err(r.Err).
			Str("conversation_id", wire.ConversationID).
			Str("message_id", r.ID).
			Msg("discarding malformed record")
	}
	return domain.MessageSnapshot{ConversationID: wire.ConversationID, Messages: msgs}
}

// Subscription is a standing snapshot stream
type Subscription struct {
	cancel       context.CancelFunc
	done         chan struct{}
	once         sync.Once
	closed       atomic.Bool
	reconnecting atomic.Bool
}

// Close stops the stream. Deliveries that have not started yet are dropped.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
}

// Done is closed once the stream goroutine has exited
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Reconnecting reports whether the stream is between connections; the last
// delivered snapshot stays valid meanwhile
func (s *Subscription) Reconnecting() bool {
	return s.reconnecting.Load()
}

func (s *Subscription) deliver(fn func()) {
	if s.closed.Load() {
		return
	}
	fn()
}
