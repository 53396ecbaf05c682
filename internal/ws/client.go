package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Frame types
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Frame is one server-pushed websocket message
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ErrorPayload is the payload of an error frame
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client represents a single WebSocket connection.
// Only the latest pending frame is kept: snapshots are full state, so an
// older undelivered one is superseded by a newer one.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	pushMu  sync.Mutex
}

// NewClient creates a new WebSocket client; inbound frames beyond
// perSecond are treated as abuse and end the connection
func NewClient(conn *websocket.Conn, perSecond float64) *Client {
	if perSecond <= 0 {
		perSecond = 5
	}
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 1),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
	}
}

// Push queues a frame, replacing a frame not yet written
func (c *Client) Push(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	for {
		select {
		case <-c.done:
			return nil
		case c.send <- data:
			return nil
		default:
			select {
			case <-c.send:
			default:
			}
		}
	}
}

// Close ends both pumps; safe to call more than once
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// Done is closed when the connection is finished
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads messages from the WebSocket (handles pong/close)
func (c *Client) ReadPump() {
	defer func() {
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		// Client messages are ignored (server-push only), but throttled
		if !c.limiter.Allow() {
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many messages")
			c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)) //nolint:errcheck
			break
		}
	}
}

// WritePump sends messages to the WebSocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message) //nolint:errcheck
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return
		}
	}
}
