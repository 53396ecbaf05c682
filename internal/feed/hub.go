package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkglogger "github.com/rempla/rempla-backend/pkg/logger"
)

const redisPubSubChannel = "rempla:feed"

// ConversationTopic carries changes to the messages of one conversation
func ConversationTopic(conversationID string) string {
	return "conversation:" + conversationID
}

// UserTopic carries changes to any conversation a user takes part in
func UserTopic(userID string) string {
	return "user:" + userID
}

// Hub fans change notifications out to local listeners and, through Redis
// pub/sub, to the listeners of every other instance.
// A notification only says "topic changed"; listeners reload full state.
type Hub struct {
	// listeners grouped by topic
	topics map[string]map[*listener]struct{}
	mu     sync.RWMutex

	redisClient *redis.Client
	instanceID  string
	ctx         context.Context
	cancel      context.CancelFunc
}

// listener coalesces notifications: a pending signal absorbs later ones
type listener struct {
	signal chan struct{}
}

func newListener() *listener {
	return &listener{signal: make(chan struct{}, 1)}
}

func (l *listener) notify() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// NewHub creates a new Hub; redisClient may be nil for a single instance
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		topics:      make(map[string]map[*listener]struct{}),
		redisClient: redisClient,
		instanceID:  uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run relays notifications published by other instances until Stop
func (h *Hub) Run() {
	if h.redisClient == nil {
		<-h.ctx.Done()
		return
	}

	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				pkglogger.Component("feed").Warn().Err(err).Msg("malformed relay message")
				continue
			}
			if rm.Origin == h.instanceID {
				continue
			}
			// Only local delivery (don't re-publish to Redis)
			h.notifyLocal(rm.Topics)
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

// Publish notifies every listener of topics (local + Redis publish)
func (h *Hub) Publish(topics ...string) {
	h.notifyLocal(topics)

	if h.redisClient != nil {
		data, err := json.Marshal(&redisMessage{Origin: h.instanceID, Topics: topics})
		if err == nil {
			if err := h.redisClient.Publish(h.ctx, redisPubSubChannel, data).Err(); err != nil {
				pkglogger.Component("feed").Warn().Err(err).Strs("topics", topics).Msg("relay publish failed")
			}
		}
	}
}

type redisMessage struct {
	Origin string   `json:"origin"`
	Topics []string `json:"topics"`
}

func (h *Hub) notifyLocal(topics []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, topic := range topics {
		for l := range h.topics[topic] {
			l.notify()
		}
	}
}

func (h *Hub) listen(l *listener, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*listener]struct{})
	}
	h.topics[topic][l] = struct{}{}
}

func (h *Hub) unlisten(l *listener, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if listeners, ok := h.topics[topic]; ok {
		delete(listeners, l)
		if len(listeners) == 0 {
			delete(h.topics, topic)
		}
	}
}

// listenerCount returns how many listeners are registered on topic
func (h *Hub) listenerCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
