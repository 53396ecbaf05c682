// Package feed delivers live, full-state snapshots of conversations and
// their messages to subscribers.
package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rempla/rempla-backend/internal/aggregator"
	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/repository"
	pkglogger "github.com/rempla/rempla-backend/pkg/logger"
)

// Feed loads snapshots from the store and keeps subscribers current
type Feed struct {
	hub       *Hub
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	directory repository.DirectoryRepository
}

// New creates a Feed
func New(hub *Hub, convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, directory repository.DirectoryRepository) *Feed {
	return &Feed{hub: hub, convRepo: convRepo, msgRepo: msgRepo, directory: directory}
}

// Changed announces that conv and its messages changed
func (f *Feed) Changed(conv *domain.Conversation) {
	topics := []string{ConversationTopic(conv.ID)}
	for _, id := range conv.ParticipantIDs() {
		topics = append(topics, UserTopic(id))
	}
	f.hub.Publish(topics...)
}

// Messages loads the current ordered message set of a conversation.
// Records failing the schema are logged and left out.
func (f *Feed) Messages(ctx context.Context, conversationID string) (domain.MessageSnapshot, error) {
	recs, err := f.msgRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return domain.MessageSnapshot{}, fmt.Errorf("failed to load messages: %w", err)
	}
	msgs, rejected := domain.ParseRecords(recs)
	for _, r := range rejected {
		recordsDiscarded.Inc()
		pkglogger.Component("feed").Warn().
			Err(r.Err).
			Str("conversation_id", conversationID).
			Str("message_id", r.ID).
			Msg("discarding malformed record")
	}
	return domain.MessageSnapshot{ConversationID: conversationID, Messages: msgs}, nil
}

// Conversations loads the summaries of every conversation of userID,
// most recent first. names memoizes counterpart display names; a nil map
// disables memoization.
func (f *Feed) Conversations(ctx context.Context, userID string, names map[string]string) (domain.ConversationSnapshot, error) {
	convs, err := f.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return domain.ConversationSnapshot{}, fmt.Errorf("failed to load conversations: %w", err)
	}
	summaries := make([]domain.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		s := conv.Summarize(userID)
		if cp, ok := conv.Counterpart(userID); ok {
			s.CounterpartName = f.counterpartName(ctx, cp, names)
		}
		summaries = append(summaries, s)
	}
	aggregator.SortByRecency(summaries)
	return domain.ConversationSnapshot{UserID: userID, Conversations: summaries}, nil
}

// counterpartName falls back to the raw id when the lookup fails
func (f *Feed) counterpartName(ctx context.Context, p domain.Participant, names map[string]string) string {
	if name, ok := names[p.ParticipantID]; ok {
		return name
	}
	name, err := f.directory.DisplayName(ctx, p)
	if err != nil || name == "" {
		if err != nil {
			pkglogger.Component("feed").Debug().Err(err).Str("participant_id", p.ParticipantID).Msg("counterpart lookup failed")
		}
		name = p.ParticipantID
	}
	if names != nil {
		names[p.ParticipantID] = name
	}
	return name
}

// CanView reports whether viewerID may read the messages of conversationID
func (f *Feed) CanView(ctx context.Context, viewerID, conversationID string) error {
	if viewerID == "" {
		return common.ErrUnauthenticated
	}
	conv, err := f.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(viewerID) {
		return common.ErrForbidden
	}
	return nil
}

// SubscribeMessages delivers the message snapshot of conversationID now and
// after every change, until ctx ends or the subscription is closed.
// viewerID must be a participant.
func (f *Feed) SubscribeMessages(ctx context.Context, viewerID, conversationID string, onUpdate func(domain.MessageSnapshot, error)) (*Subscription, error) {
	if err := f.CanView(ctx, viewerID, conversationID); err != nil {
		return nil, err
	}
	load := func(ctx context.Context, sub *Subscription) {
		snap, err := f.Messages(ctx, conversationID)
		deliver(sub, kindMessages, snap, err, onUpdate)
	}
	return f.subscribe(ctx, kindMessages, ConversationTopic(conversationID), load), nil
}

// SubscribeConversations delivers the conversation list of userID now and
// after every change. Counterpart names are looked up once per subscription.
func (f *Feed) SubscribeConversations(ctx context.Context, userID string, onUpdate func(domain.ConversationSnapshot, error)) (*Subscription, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	names := make(map[string]string)
	load := func(ctx context.Context, sub *Subscription) {
		snap, err := f.Conversations(ctx, userID, names)
		deliver(sub, kindConversations, snap, err, onUpdate)
	}
	return f.subscribe(ctx, kindConversations, UserTopic(userID), load), nil
}

// deliver discards results that arrive after the subscription was closed
func deliver[T any](sub *Subscription, kind string, snap T, err error, onUpdate func(T, error)) {
	if sub.closed.Load() {
		return
	}
	if err != nil {
		snapshotErrors.WithLabelValues(kind).Inc()
		var zero T
		onUpdate(zero, err)
		return
	}
	snapshotsDelivered.WithLabelValues(kind).Inc()
	onUpdate(snap, nil)
}

func (f *Feed) subscribe(ctx context.Context, kind, topic string, load func(context.Context, *Subscription)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	l := newListener()
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	f.hub.listen(l, topic)
	activeSubscriptions.WithLabelValues(kind).Inc()

	go func() {
		defer close(sub.done)
		defer activeSubscriptions.WithLabelValues(kind).Dec()
		defer f.hub.unlisten(l, topic)

		// The initial snapshot counts as the first change
		l.notify()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.signal:
				if sub.closed.Load() {
					return
				}
				load(ctx, sub)
			}
		}
	}()
	return sub
}

// Subscription is a standing snapshot subscription
type Subscription struct {
	once   sync.Once
	closed atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops deliveries. It is idempotent and may be called from inside
// the update callback; a snapshot still loading when Close is called is dropped.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
}

// Done is closed once the subscription released its resources
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
