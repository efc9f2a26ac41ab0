package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cermont-atg/authcore/internal/revocation/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a revocation list backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Revoke records the jti. A duplicate jti is a no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, t *domain.RevokedAccessToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_access_tokens (jti, user_id, reason, revoked_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (jti) DO NOTHING`,
		t.JTI, t.UserID, t.Reason, t.RevokedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is on the revocation list.
func (r *PostgresRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM revoked_access_tokens WHERE jti = $1`, jti).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("is revoked: %w", err)
	}
	return true, nil
}

// PruneExpired removes entries for tokens that expired before olderThan.
func (r *PostgresRepository) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_access_tokens WHERE expires_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune expired: %w", err)
	}
	return res.RowsAffected()
}
