package repository

import (
	"context"
	"errors"
	"time"

	"cermont-atg/authcore/internal/passwordreset/domain"
)

var (
	// ErrTokenUnknown is returned when no reset token matches the presented hash.
	ErrTokenUnknown = errors.New("reset token unknown")
	// ErrTokenExpired is returned when the reset token is past its expiry.
	ErrTokenExpired = errors.New("reset token expired")
	// ErrTokenAlreadyUsed is returned when the reset token was consumed before.
	ErrTokenAlreadyUsed = errors.New("reset token already used")
)

// Repository defines persistence for password reset tokens.
//
// Consume marks the token used if and only if it is unused and unexpired,
// atomically with respect to concurrent consumers. Exactly one of two
// concurrent calls for the same token succeeds.
type Repository interface {
	Create(ctx context.Context, t *domain.ResetToken) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.ResetToken, error)
	InvalidateAllForUser(ctx context.Context, userID string, at time.Time) error
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
}
