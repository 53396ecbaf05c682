package repository

import (
	"context"
	"errors"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"gorm.io/gorm"
)

// DirectoryRepository reads counterpart display data from the
// establishments and users collections
type DirectoryRepository interface {
	GetEstablishment(ctx context.Context, id string) (*domain.Establishment, error)
	GetProfessional(ctx context.Context, id string) (*domain.Professional, error)
	DisplayName(ctx context.Context, p domain.Participant) (string, error)
}

type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository creates a new DirectoryRepository
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) GetEstablishment(ctx context.Context, id string) (*domain.Establishment, error) {
	var est domain.Establishment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&est).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound
	}
	return &est, err
}

func (r *directoryRepository) GetProfessional(ctx context.Context, id string) (*domain.Professional, error) {
	var pro domain.Professional
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&pro).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound
	}
	return &pro, err
}

// DisplayName resolves the name shown for a participant
func (r *directoryRepository) DisplayName(ctx context.Context, p domain.Participant) (string, error) {
	if p.Role == domain.RoleEstablishment {
		est, err := r.GetEstablishment(ctx, p.ParticipantID)
		if err != nil {
			return "", err
		}
		return est.Name, nil
	}
	pro, err := r.GetProfessional(ctx, p.ParticipantID)
	if err != nil {
		return "", err
	}
	return pro.DisplayName(), nil
}
