package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"cermont-atg/authcore/internal/refreshtoken/domain"
)

// MemoryRepository is an in-memory Repository implementation for tests and
// single-process deployments.
type MemoryRepository struct {
	mu     sync.Mutex
	byHash map[string]*domain.RefreshToken
	byID   map[string]*domain.RefreshToken
}

// NewMemoryRepository returns an empty in-memory refresh token repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byHash: make(map[string]*domain.RefreshToken),
		byID:   make(map[string]*domain.RefreshToken),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.byHash[cp.TokenHash] = &cp
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MemoryRepository) Redeem(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[tokenHash]
	if !ok {
		return nil, ErrTokenUnknown
	}
	if t.RevokedAt != nil {
		return nil, ErrTokenRevoked
	}
	if t.ConsumedAt != nil {
		r.revokeFamilyLocked(t.FamilyID, RevokeReasonReuse, now)
		return nil, ErrTokenReuseDetected
	}
	if !now.Before(t.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	consumed := now
	t.ConsumedAt = &consumed
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) LinkSuccessor(ctx context.Context, id, successorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok {
		s := successorID
		t.ReplacedByID = &s
	}
	return nil
}

func (r *MemoryRepository) RevokeFamily(ctx context.Context, familyID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revokeFamilyLocked(familyID, reason, at)
	return nil
}

func (r *MemoryRepository) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.UserID == userID && t.RevokedAt == nil {
			at := at
			t.RevokedAt = &at
			t.RevokeReason = reason
		}
	}
	return nil
}

func (r *MemoryRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[tokenHash]
	if !ok {
		return nil, ErrTokenUnknown
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) ListByFamily(ctx context.Context, familyID string) ([]*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RefreshToken
	for _, t := range r.byID {
		if t.FamilyID == familyID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, t := range r.byHash {
		if t.ExpiresAt.Before(olderThan) {
			delete(r.byHash, hash)
			delete(r.byID, t.ID)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) revokeFamilyLocked(familyID, reason string, at time.Time) {
	for _, t := range r.byID {
		if t.FamilyID == familyID && t.RevokedAt == nil {
			at := at
			t.RevokedAt = &at
			t.RevokeReason = reason
		}
	}
}
