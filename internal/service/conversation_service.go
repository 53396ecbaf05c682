package service

import (
	"context"
	"fmt"

	"github.com/rempla/rempla-backend/internal/aggregator"
	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/feed"
	"github.com/rempla/rempla-backend/internal/repository"
)

// ConversationService business logic for conversation lists
type ConversationService interface {
	Create(ctx context.Context, req *domain.CreateConversationRequest) (*domain.Conversation, error)
	List(ctx context.Context, userID string, filter aggregator.Filter, searchText string) ([]domain.ConversationSummary, error)
}

type conversationService struct {
	repo repository.ConversationRepository
	feed *feed.Feed
}

// NewConversationService creates a new ConversationService
func NewConversationService(repo repository.ConversationRepository, f *feed.Feed) ConversationService {
	return &conversationService{repo: repo, feed: f}
}

// Create opens a conversation between a professional and an establishment
func (s *conversationService) Create(ctx context.Context, req *domain.CreateConversationRequest) (*domain.Conversation, error) {
	if req.ProfessionalID == req.EstablishmentID {
		return nil, fmt.Errorf("%w: participants must differ", common.ErrValidationFailed)
	}
	conv := &domain.Conversation{
		ReplacementID: req.ReplacementID,
		Status:        domain.ConversationActive,
		Participants: []domain.Participant{
			{ParticipantID: req.ProfessionalID, Role: domain.RoleProfessional},
			{ParticipantID: req.EstablishmentID, Role: domain.RoleEstablishment},
		},
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	s.feed.Changed(conv)
	return conv, nil
}

// List returns the user's conversations filtered by status and search text
func (s *conversationService) List(ctx context.Context, userID string, filter aggregator.Filter, searchText string) ([]domain.ConversationSummary, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	snap, err := s.feed.Conversations(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	return aggregator.Collect(snap.Conversations, filter, searchText), nil
}
