package migration

import (
	"time"

	"github.com/rempla/rempla-backend/internal/domain"
	"gorm.io/gorm"
)

// Run executes AutoMigrate for the chat and directory tables
func Run(db *gorm.DB) error {
	// tables are created when missing, existing ones get new columns only
	return db.AutoMigrate(
		&domain.Conversation{},
		&domain.Participant{},
		&domain.MessageRecord{},
		&domain.Establishment{},
		&domain.Professional{},
	)
}

// SeedDemo inserts one establishment, one professional and an open
// conversation between them when the directory is empty. Local use only.
func SeedDemo(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.Establishment{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&domain.Establishment{ID: "est-demo", Name: "Clinique des Lilas", City: "Lyon"}).Error; err != nil {
			return err
		}
		if err := tx.Create(&domain.Professional{ID: "pro-demo", FirstName: "Camille", LastName: "Martin", Email: "camille@example.com"}).Error; err != nil {
			return err
		}
		return tx.Create(&domain.Conversation{
			ID:            "conv-demo",
			ReplacementID: "repl-demo",
			Status:        domain.ConversationActive,
			CreatedAt:     now,
			UpdatedAt:     now,
			Participants: []domain.Participant{
				{ConversationID: "conv-demo", ParticipantID: "pro-demo", Role: domain.RoleProfessional},
				{ConversationID: "conv-demo", ParticipantID: "est-demo", Role: domain.RoleEstablishment},
			},
		}).Error
	})
}
