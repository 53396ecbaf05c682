package chatclient

import (
	"slices"
	"sync"

	"github.com/rempla/rempla-backend/internal/domain"
)

// Pending is the transient state a UI shows for an unconfirmed mutation
type Pending string

const (
	PendingNone     Pending = ""
	PendingSending  Pending = "sending"
	PendingDeleting Pending = "deleting"
)

// View is one renderable row: an authoritative message, or a local
// placeholder that is not durable yet
type View struct {
	Message     domain.Message
	Pending     Pending
	Placeholder bool
	// Current marks the newest mission message, the one that carries the
	// negotiation controls
	Current bool
}

type sendEntry struct {
	msg       domain.Message
	confirmed string // server id once the gateway accepted it
}

// Overlay holds optimistic placeholders keyed by correlation id (sends) or
// message id (deletes). It is merged over a snapshot at render time and
// never touches the snapshot itself.
type Overlay struct {
	mu       sync.Mutex
	sending  map[string]*sendEntry
	deleting map[string]struct{}
}

// NewOverlay creates an empty overlay
func NewOverlay() *Overlay {
	return &Overlay{
		sending:  make(map[string]*sendEntry),
		deleting: make(map[string]struct{}),
	}
}

// BeginSend shows msg as "sending" under correlationID
func (o *Overlay) BeginSend(correlationID string, msg domain.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sending[correlationID] = &sendEntry{msg: msg}
}

// ConfirmSend links a placeholder to the id the server assigned. The
// placeholder stays until a snapshot carries that id.
func (o *Overlay) ConfirmSend(correlationID, messageID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.sending[correlationID]; ok {
		e.confirmed = messageID
	}
}

// BeginDelete shows messageID as "deleting"
func (o *Overlay) BeginDelete(messageID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleting[messageID] = struct{}{}
}

// Rollback drops the placeholder under key, restoring what the snapshot shows
func (o *Overlay) Rollback(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sending, key)
	delete(o.deleting, key)
}

// Len is the number of live placeholders
func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sending) + len(o.deleting)
}

// Merge renders snap with the placeholders on top. Placeholders the
// snapshot already reflects (a confirmed send whose id is present, a delete
// whose message is marked deleted or gone) are retired.
func (o *Overlay) Merge(snap domain.MessageSnapshot) []View {
	o.mu.Lock()
	defer o.mu.Unlock()

	present := make(map[string]domain.Message, len(snap.Messages))
	for _, m := range snap.Messages {
		present[m.ID] = m
	}

	for key, e := range o.sending {
		if _, ok := present[e.confirmed]; ok && e.confirmed != "" {
			delete(o.sending, key)
		}
	}
	for id := range o.deleting {
		if m, ok := present[id]; !ok || m.IsDeleted() {
			delete(o.deleting, id)
		}
	}

	views := make([]View, 0, len(snap.Messages)+len(o.sending))
	for _, m := range snap.Messages {
		v := View{Message: m}
		if _, ok := o.deleting[m.ID]; ok {
			v.Pending = PendingDeleting
		}
		views = append(views, v)
	}

	local := make([]domain.Message, 0, len(o.sending))
	for _, e := range o.sending {
		local = append(local, e.msg)
	}
	slices.SortFunc(local, domain.CompareMessages)
	for _, m := range local {
		views = append(views, View{Message: m, Pending: PendingSending, Placeholder: true})
	}
	return views
}
