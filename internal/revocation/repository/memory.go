package repository

import (
	"context"
	"sync"
	"time"

	"cermont-atg/authcore/internal/revocation/domain"
)

// MemoryRepository is an in-memory Repository implementation for tests and
// single-process deployments.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]*domain.RevokedAccessToken
}

// NewMemoryRepository returns an empty in-memory revocation list.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.RevokedAccessToken)}
}

func (r *MemoryRepository) Revoke(ctx context.Context, t *domain.RevokedAccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[t.JTI]; ok {
		return nil
	}
	cp := *t
	r.m[cp.JTI] = &cp
	return nil
}

func (r *MemoryRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[jti]
	return ok, nil
}

func (r *MemoryRepository) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for jti, t := range r.m {
		if t.ExpiresAt.Before(olderThan) {
			delete(r.m, jti)
			n++
		}
	}
	return n, nil
}
