package service

import (
	"context"
	"fmt"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/feed"
	"github.com/rempla/rempla-backend/internal/negotiation"
	"github.com/rempla/rempla-backend/internal/repository"
	pkglogger "github.com/rempla/rempla-backend/pkg/logger"
)

// MessageService is the only path through which messages are created or removed
type MessageService interface {
	Append(ctx context.Context, senderID string, req *domain.SendMessageRequest) (*domain.MessageRecord, error)
	Notify(ctx context.Context, conversationID string, req *domain.NotificationRequest) (*domain.MessageRecord, error)
	SoftDelete(ctx context.Context, userID, conversationID, messageID string) error
	MarkRead(ctx context.Context, userID, conversationID string) error
	Snapshot(ctx context.Context, userID, conversationID string) (domain.MessageSnapshot, error)
	MissionState(ctx context.Context, userID, conversationID string) (negotiation.Negotiation, error)
}

type messageService struct {
	repo     repository.MessageRepository
	convRepo repository.ConversationRepository
	feed     *feed.Feed
}

// NewMessageService creates a new MessageService
func NewMessageService(repo repository.MessageRepository, convRepo repository.ConversationRepository, f *feed.Feed) MessageService {
	return &messageService{
		repo:     repo,
		convRepo: convRepo,
		feed:     f,
	}
}

// Append validates and stores a participant's message. Mission messages run
// through the negotiation state machine inside the append transaction.
func (s *messageService) Append(ctx context.Context, senderID string, req *domain.SendMessageRequest) (*domain.MessageRecord, error) {
	if senderID == "" {
		return nil, common.ErrUnauthenticated
	}
	if req.ConversationID == "" {
		return nil, common.NewSchemaError("conversationId", "missing")
	}

	prepare := func(conv *domain.Conversation, missions []domain.MessageRecord) (*repository.AppendPlan, error) {
		p, ok := conv.Participant(senderID)
		if !ok {
			return nil, common.ErrForbidden
		}
		switch req.Type {
		case domain.KindUserText, domain.KindEstablishmentText:
			if req.Type != p.Role.TextKind() {
				return nil, fmt.Errorf("%w: a %s cannot send %s messages", common.ErrValidationFailed, p.Role, req.Type)
			}
		case domain.KindMission:
		case domain.KindNotification:
			return nil, fmt.Errorf("%w: notifications are system-authored", common.ErrValidationFailed)
		default:
			return nil, common.NewSchemaError("type", "unrecognized kind "+string(req.Type))
		}

		rec := req.Record(senderID)
		status, err := nextStatus(conv.ID, missions, rec)
		if err != nil {
			return nil, err
		}
		return &repository.AppendPlan{Record: &rec, Status: status}, nil
	}

	rec, conv, err := s.repo.Append(ctx, req.ConversationID, prepare)
	if err != nil {
		return nil, err
	}
	s.feed.Changed(conv)
	return rec, nil
}

// Notify appends a system notification to a conversation
func (s *messageService) Notify(ctx context.Context, conversationID string, req *domain.NotificationRequest) (*domain.MessageRecord, error) {
	prepare := func(conv *domain.Conversation, missions []domain.MessageRecord) (*repository.AppendPlan, error) {
		rec := req.Record(conv.ID)
		status, err := nextStatus(conv.ID, missions, rec)
		if err != nil {
			return nil, err
		}
		return &repository.AppendPlan{Record: &rec, Status: status}, nil
	}

	rec, conv, err := s.repo.Append(ctx, conversationID, prepare)
	if err != nil {
		return nil, err
	}
	s.feed.Changed(conv)
	return rec, nil
}

// nextStatus derives the conversation status once rec is appended after missions
func nextStatus(conversationID string, missions []domain.MessageRecord, rec domain.MessageRecord) (domain.ConversationStatus, error) {
	history, rejected := domain.ParseRecords(missions)
	for _, r := range rejected {
		pkglogger.Component("negotiation").Warn().Err(r.Err).
			Str("conversation_id", conversationID).
			Str("message_id", r.ID).
			Msg("skipping malformed mission record")
	}
	current := negotiation.Derive(history)
	if rec.Kind != string(domain.KindMission) {
		return current.ConversationStatus(), nil
	}

	body, err := domain.ParseBody(rec)
	if err != nil {
		return "", err
	}
	next, err := negotiation.Apply(current, domain.Message{Body: body})
	if err != nil {
		return "", err
	}
	return next.ConversationStatus(), nil
}

// SoftDelete marks the caller's own text message deleted
func (s *messageService) SoftDelete(ctx context.Context, userID, conversationID, messageID string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}

	authorize := func(conv *domain.Conversation, rec *domain.MessageRecord) error {
		if !conv.HasParticipant(userID) {
			return common.ErrForbidden
		}
		if rec == nil {
			return nil
		}
		msg, err := domain.Parse(*rec)
		if err != nil {
			// malformed records are invisible to clients
			return common.ErrMessageNotFound
		}
		if !domain.IsOwnedBy(msg, userID) {
			return common.ErrForbidden
		}
		switch msg.Body.(type) {
		case domain.UserText, domain.EstablishmentText:
			return nil
		case domain.Mission:
			return fmt.Errorf("%w: mission messages cannot be deleted", common.ErrForbidden)
		case domain.Notification:
			return fmt.Errorf("%w: notifications cannot be deleted", common.ErrForbidden)
		}
		return common.ErrForbidden
	}

	conv, err := s.repo.SoftDelete(ctx, conversationID, messageID, authorize)
	if err != nil {
		return err
	}
	s.feed.Changed(conv)
	return nil
}

// MarkRead adds the caller to readBy of every message of the conversation
func (s *messageService) MarkRead(ctx context.Context, userID, conversationID string) error {
	conv, err := s.authorizedConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	changed, err := s.repo.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if changed > 0 {
		s.feed.Changed(conv)
	}
	return nil
}

// Snapshot returns the current ordered message set
func (s *messageService) Snapshot(ctx context.Context, userID, conversationID string) (domain.MessageSnapshot, error) {
	if _, err := s.authorizedConversation(ctx, userID, conversationID); err != nil {
		return domain.MessageSnapshot{}, err
	}
	return s.feed.Messages(ctx, conversationID)
}

// MissionState derives the negotiation state from the message history
func (s *messageService) MissionState(ctx context.Context, userID, conversationID string) (negotiation.Negotiation, error) {
	snap, err := s.Snapshot(ctx, userID, conversationID)
	if err != nil {
		return negotiation.Negotiation{}, err
	}
	return negotiation.Derive(snap.Messages), nil
}

func (s *messageService) authorizedConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, common.ErrForbidden
	}
	return conv, nil
}
