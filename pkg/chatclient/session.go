package chatclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/negotiation"
)

// Session is one participant's open conversation screen: the latest
// snapshot, the compose box, the optimistic overlay and the mission state.
type Session struct {
	conversationID string
	userID         string
	role           domain.ParticipantRole
	gateway        *Gateway
	overlay        *Overlay

	mu       sync.Mutex
	compose  string
	snapshot domain.MessageSnapshot
	mission  negotiation.Negotiation
	feedErr  error
}

// NewSession opens a session for userID, who holds role in conversationID
func NewSession(gateway *Gateway, conversationID, userID string, role domain.ParticipantRole) *Session {
	return &Session{
		conversationID: conversationID,
		userID:         userID,
		role:           role,
		gateway:        gateway,
		overlay:        NewOverlay(),
		snapshot:       domain.MessageSnapshot{ConversationID: conversationID},
		mission:        negotiation.Initial(),
	}
}

// Watch feeds the session from a live subscription
func (s *Session) Watch(ctx context.Context, feed *FeedClient) *Subscription {
	return feed.SubscribeMessages(ctx, s.conversationID, s.Apply)
}

// Apply is the subscription callback. Errors keep the last snapshot on
// screen; a fresh snapshot clears them.
func (s *Session) Apply(snap domain.MessageSnapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.feedErr = err
		return
	}
	s.feedErr = nil
	s.snapshot = snap
	s.mission = negotiation.Derive(snap.Messages)
}

// FeedError is the last subscription failure, nil once a snapshot arrived
func (s *Session) FeedError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedErr
}

// SetCompose replaces the compose box text
func (s *Session) SetCompose(text string) {
	s.mu.Lock()
	s.compose = text
	s.mu.Unlock()
}

// Compose is the compose box text
func (s *Session) Compose() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose
}

// Mission is the latest known negotiation state
func (s *Session) Mission() negotiation.Negotiation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mission
}

// Views is the snapshot with optimistic placeholders merged on top
func (s *Session) Views() []View {
	s.mu.Lock()
	snap := s.snapshot
	s.mu.Unlock()

	views := s.overlay.Merge(snap)
	if latest, ok := negotiation.Latest(snap.Messages); ok {
		for i := range views {
			if !views[i].Placeholder && views[i].Message.ID == latest.ID {
				views[i].Current = true
			}
		}
	}
	return views
}

// Send posts the compose text. The compose box is cleared and a "sending"
// placeholder shown right away; on failure both are rolled back.
func (s *Session) Send(ctx context.Context, attachments ...domain.Attachment) (domain.Message, error) {
	s.mu.Lock()
	text := s.compose
	s.compose = ""
	s.mu.Unlock()

	kind := s.role.TextKind()
	correlationID := uuid.New().String()
	local := domain.Message{
		ID:             correlationID,
		ConversationID: s.conversationID,
		CreatedAt:      time.Now().UTC(),
		SenderID:       s.userID,
		ReadBy:         []string{s.userID},
	}
	body := domain.Text{Content: text, Attachments: attachments}
	if kind == domain.KindEstablishmentText {
		local.Body = domain.EstablishmentText{Text: body}
	} else {
		local.Body = domain.UserText{Text: body}
	}
	s.overlay.BeginSend(correlationID, local)

	msg, err := s.gateway.Append(ctx, domain.SendMessageRequest{
		ConversationID: s.conversationID,
		Type:           kind,
		Content:        text,
		Attachments:    attachments,
	})
	if err != nil {
		s.overlay.Rollback(correlationID)
		s.restoreCompose(text)
		return domain.Message{}, err
	}
	s.overlay.ConfirmSend(correlationID, msg.ID)
	return msg, nil
}

func (s *Session) restoreCompose(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// keep whatever the user typed meanwhile
	if s.compose == "" {
		s.compose = text
	}
}

// Delete soft-deletes one of the caller's messages behind a "deleting"
// placeholder. NotFound means the message is already gone and is not an error.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	s.overlay.BeginDelete(messageID)
	err := s.gateway.SoftDelete(ctx, s.conversationID, messageID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound):
		s.overlay.Rollback(messageID)
		return nil
	default:
		s.overlay.Rollback(messageID)
		return err
	}
}

// SendMission posts a negotiation step. When the step is no longer
// available the mission state is re-fetched before the error is returned.
func (s *Session) SendMission(ctx context.Context, m domain.Mission) (domain.Message, error) {
	details := m.Details
	msg, err := s.gateway.Append(ctx, domain.SendMessageRequest{
		ConversationID: s.conversationID,
		Type:           domain.KindMission,
		Action:         m.Action,
		MissionID:      m.MissionID,
		Status:         m.Status,
		Details:        &details,
	})
	if err == nil {
		return msg, nil
	}
	if errors.Is(err, common.ErrInvalidTransition) {
		if state, ferr := s.gateway.MissionState(ctx, s.conversationID); ferr == nil {
			s.mu.Lock()
			s.mission = state
			s.mu.Unlock()
		}
	}
	return domain.Message{}, err
}
