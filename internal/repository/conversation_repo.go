package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"gorm.io/gorm"
)

// ConversationRepository conversation data access interface
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*domain.Conversation, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create inserts a conversation with its participants
func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	conv.CreatedAt, conv.UpdatedAt = now, now
	if conv.Status == "" {
		conv.Status = domain.ConversationActive
	}
	for i := range conv.Participants {
		conv.Participants[i].ConversationID = conv.ID
	}
	return r.db.WithContext(ctx).Create(conv).Error
}

// FindByID returns a conversation with its participants
func (r *conversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	return findConversation(r.db.WithContext(ctx), id)
}

// ListByParticipant returns every conversation userID takes part in, most recent first
func (r *conversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	db := r.db.WithContext(ctx)
	var convs []*domain.Conversation
	memberOf := db.Model(&domain.Participant{}).Select("conversation_id").Where("participant_id = ?", userID)
	err := db.Preload("Participants").
		Where("id IN (?)", memberOf).
		Order("updated_at DESC").Order("id ASC").
		Find(&convs).Error
	return convs, err
}

func findConversation(db *gorm.DB, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.Preload("Participants").Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
