package repository

import (
	"context"

	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/pkg/cache"
)

// CachedDirectoryRepository caches display names in Redis
type CachedDirectoryRepository struct {
	repo  DirectoryRepository
	cache cache.Service
}

// NewCachedDirectory wraps repo with a display-name cache.
// A nil or unavailable cache returns repo unchanged.
func NewCachedDirectory(repo DirectoryRepository, c cache.Service) DirectoryRepository {
	if c == nil || !c.IsAvailable() {
		return repo
	}
	return &CachedDirectoryRepository{repo: repo, cache: c}
}

func (r *CachedDirectoryRepository) GetEstablishment(ctx context.Context, id string) (*domain.Establishment, error) {
	return r.repo.GetEstablishment(ctx, id)
}

func (r *CachedDirectoryRepository) GetProfessional(ctx context.Context, id string) (*domain.Professional, error) {
	return r.repo.GetProfessional(ctx, id)
}

// DisplayName reads through the cache; cache failures fall back to the store
func (r *CachedDirectoryRepository) DisplayName(ctx context.Context, p domain.Participant) (string, error) {
	if name, err := r.cache.GetCounterpartName(ctx, p.ParticipantID); err == nil && name != "" {
		return name, nil
	}
	name, err := r.repo.DisplayName(ctx, p)
	if err != nil {
		return "", err
	}
	r.cache.SetCounterpartName(ctx, p.ParticipantID, name) //nolint:errcheck
	return name, nil
}
