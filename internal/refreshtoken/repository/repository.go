package repository

import (
	"context"
	"errors"
	"time"

	"cermont-atg/authcore/internal/refreshtoken/domain"
)

var (
	// ErrTokenUnknown is returned when no token matches the presented hash.
	ErrTokenUnknown = errors.New("refresh token unknown")
	// ErrTokenRevoked is returned when the token or its family has been revoked.
	ErrTokenRevoked = errors.New("refresh token revoked")
	// ErrTokenExpired is returned when the token is past its expiry.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrTokenReuseDetected is returned when an already-consumed token is
	// presented again. The store revokes the whole family before returning it.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
)

// RevokeReasonReuse is recorded on every token of a family revoked because a
// consumed member was presented again.
const RevokeReasonReuse = "reuse_detected"

// Repository defines persistence for refresh tokens.
//
// Redeem is the rotation primitive: it marks the token consumed if and only if
// it is still active, atomically with respect to concurrent redeemers. Exactly
// one of two concurrent calls for the same token succeeds; the loser observes
// the token as consumed and triggers family revocation.
type Repository interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	Redeem(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error)
	LinkSuccessor(ctx context.Context, id, successorID string) error
	RevokeFamily(ctx context.Context, familyID, reason string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	ListByFamily(ctx context.Context, familyID string) ([]*domain.RefreshToken, error)
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
}
