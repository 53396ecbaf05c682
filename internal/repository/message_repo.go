package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendPlan is what a caller decides inside the append transaction
type AppendPlan struct {
	Record *domain.MessageRecord
	Status domain.ConversationStatus
}

// PrepareAppend validates a new message against the locked conversation and
// its mission history (ascending createdAt, id). Returning an error aborts the append.
type PrepareAppend func(conv *domain.Conversation, missions []domain.MessageRecord) (*AppendPlan, error)

// AuthorizeDelete decides whether the located message may be soft-deleted
type AuthorizeDelete func(conv *domain.Conversation, rec *domain.MessageRecord) error

// MessageRepository message data access interface
type MessageRepository interface {
	Append(ctx context.Context, conversationID string, prepare PrepareAppend) (*domain.MessageRecord, *domain.Conversation, error)
	ListByConversation(ctx context.Context, conversationID string) ([]domain.MessageRecord, error)
	SoftDelete(ctx context.Context, conversationID, messageID string, authorize AuthorizeDelete) (*domain.Conversation, error)
	MarkRead(ctx context.Context, conversationID, userID string) (int, error)
}

type messageRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, now: time.Now}
}

// Append inserts a message and bumps the conversation's updatedAt, lastMessage
// and status in one transaction. createdAt is strictly increasing per conversation.
func (r *messageRepository) Append(ctx context.Context, conversationID string, prepare PrepareAppend) (*domain.MessageRecord, *domain.Conversation, error) {
	var (
		rec  *domain.MessageRecord
		conv *domain.Conversation
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conv, err = findConversation(tx.Clauses(clause.Locking{Strength: "UPDATE"}), conversationID)
		if err != nil {
			return err
		}

		var missions []domain.MessageRecord
		if err := tx.Where("conversation_id = ? AND kind = ? AND deleted_at IS NULL", conversationID, string(domain.KindMission)).
			Order("created_at ASC").Order("id ASC").
			Find(&missions).Error; err != nil {
			return err
		}

		plan, err := prepare(conv, missions)
		if err != nil {
			return err
		}
		rec = plan.Record
		rec.ID = uuid.NewString()
		rec.ConversationID = conversationID
		rec.CreatedAt = r.nextTimestamp(conv.UpdatedAt)

		body, err := domain.ParseBody(*rec)
		if err != nil {
			return err
		}

		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		conv.UpdatedAt = rec.CreatedAt
		conv.Status = plan.Status
		conv.LastMessage = &domain.LastMessage{
			Content:   domain.Preview(body),
			SenderID:  deref(rec.SenderID),
			Timestamp: rec.CreatedAt,
		}
		return tx.Model(&domain.Conversation{ID: conv.ID}).
			Select("updated_at", "status", "last_message").
			UpdateColumns(&domain.Conversation{
				UpdatedAt:   conv.UpdatedAt,
				Status:      conv.Status,
				LastMessage: conv.LastMessage,
			}).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, conv, nil
}

// ListByConversation returns every record of a conversation in conversation order
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.MessageRecord, error) {
	var recs []domain.MessageRecord
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&recs).Error
	return recs, err
}

// SoftDelete marks a message deleted and recomputes the conversation's lastMessage.
// A missing or already deleted message yields common.ErrMessageNotFound.
func (r *messageRepository) SoftDelete(ctx context.Context, conversationID, messageID string, authorize AuthorizeDelete) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conv, err = findConversation(tx.Clauses(clause.Locking{Strength: "UPDATE"}), conversationID)
		if err != nil {
			return err
		}

		var rec domain.MessageRecord
		err = tx.Where("id = ? AND conversation_id = ?", messageID, conversationID).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if authErr := authorize(conv, nil); authErr != nil {
				return authErr
			}
			return common.ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		if err := authorize(conv, &rec); err != nil {
			return err
		}
		if rec.DeletedAt != nil {
			return common.ErrMessageNotFound
		}

		deletedAt := r.now().UTC().Truncate(time.Millisecond)
		if err := tx.Model(&domain.MessageRecord{ID: rec.ID}).
			UpdateColumn("deleted_at", deletedAt).Error; err != nil {
			return err
		}

		conv.LastMessage, err = latestSummary(tx, conversationID)
		if err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{ID: conv.ID}).
			Select("last_message").
			UpdateColumns(&domain.Conversation{LastMessage: conv.LastMessage}).Error
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// MarkRead adds userID to readBy of every live message; returns how many changed
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, userID string) (int, error) {
	changed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialize with appends and other readers: read_by is rewritten whole
		if _, err := findConversation(tx.Clauses(clause.Locking{Strength: "UPDATE"}), conversationID); err != nil {
			return err
		}

		var recs []domain.MessageRecord
		if err := tx.Where("conversation_id = ? AND deleted_at IS NULL", conversationID).Find(&recs).Error; err != nil {
			return err
		}
		for _, rec := range recs {
			if slices.Contains(rec.ReadBy, userID) {
				continue
			}
			readBy := append(slices.Clone(rec.ReadBy), userID)
			if err := tx.Model(&domain.MessageRecord{ID: rec.ID}).
				Select("read_by").
				UpdateColumns(&domain.MessageRecord{ReadBy: readBy}).Error; err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// nextTimestamp keeps createdAt strictly after the previous append
func (r *messageRepository) nextTimestamp(last time.Time) time.Time {
	ts := r.now().UTC().Truncate(time.Millisecond)
	if !ts.After(last) {
		ts = last.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return ts
}

// latestSummary previews the newest live record that parses; malformed rows
// are skipped so they never block a delete
func latestSummary(tx *gorm.DB, conversationID string) (*domain.LastMessage, error) {
	var recs []domain.MessageRecord
	if err := tx.Where("conversation_id = ? AND deleted_at IS NULL", conversationID).
		Order("created_at DESC").Order("id DESC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	for _, rec := range recs {
		body, err := domain.ParseBody(rec)
		if err != nil {
			continue
		}
		return &domain.LastMessage{
			Content:   domain.Preview(body),
			SenderID:  deref(rec.SenderID),
			Timestamp: rec.CreatedAt,
		}, nil
	}
	return nil, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
