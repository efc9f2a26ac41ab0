package repository

import (
	"context"
	"sync"
	"time"

	"cermont-atg/authcore/internal/passwordreset/domain"
)

// MemoryRepository is an in-memory Repository implementation for tests and
// single-process deployments.
type MemoryRepository struct {
	mu     sync.Mutex
	byHash map[string]*domain.ResetToken
}

// NewMemoryRepository returns an empty in-memory reset token repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byHash: make(map[string]*domain.ResetToken)}
}

func (r *MemoryRepository) Create(ctx context.Context, t *domain.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.byHash[cp.TokenHash] = &cp
	return nil
}

func (r *MemoryRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[tokenHash]
	if !ok {
		return nil, ErrTokenUnknown
	}
	if t.UsedAt != nil {
		return nil, ErrTokenAlreadyUsed
	}
	if !now.Before(t.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	used := now
	t.UsedAt = &used
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) InvalidateAllForUser(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byHash {
		if t.UserID == userID && t.UsedAt == nil {
			at := at
			t.UsedAt = &at
		}
	}
	return nil
}

func (r *MemoryRepository) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, t := range r.byHash {
		if t.ExpiresAt.Before(olderThan) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}
