// Package repository persists the access token revocation list. Revocation is
// checked by jti on every access token verification, so implementations favor
// cheap point lookups.
package repository

import (
	"context"
	"time"

	"cermont-atg/authcore/internal/revocation/domain"
)

// Repository defines persistence for revoked access tokens.
// Revoke is idempotent: revoking an already-revoked jti is not an error.
type Repository interface {
	Revoke(ctx context.Context, t *domain.RevokedAccessToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
}
