package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cermont-atg/authcore/internal/refreshtoken/domain"
)

const tokenColumns = `id, user_id, token_hash, family_id, created_at, expires_at, consumed_at, replaced_by_id, revoked_at, revoke_reason`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh token repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the token. The token must have ID, TokenHash and FamilyID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, family_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.TokenHash, t.FamilyID, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// Redeem consumes the token identified by tokenHash if it is still active.
// Presenting a consumed token revokes its whole family inside the same
// transaction and returns ErrTokenReuseDetected. Revoked and expired tokens
// return their sentinel without side effects.
func (r *PostgresRepository) Redeem(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("redeem: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`,
		tokenHash)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenUnknown
		}
		return nil, fmt.Errorf("redeem: %w", err)
	}

	if t.RevokedAt != nil {
		return nil, ErrTokenRevoked
	}
	if t.ConsumedAt != nil {
		if err := revokeFamilyTx(ctx, tx, t.FamilyID, RevokeReasonReuse, now); err != nil {
			return nil, fmt.Errorf("redeem: revoke family: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("redeem: commit: %w", err)
		}
		return nil, ErrTokenReuseDetected
	}
	if !now.Before(t.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET consumed_at = $1
		 WHERE id = $2 AND consumed_at IS NULL AND revoked_at IS NULL`,
		now, t.ID)
	if err != nil {
		return nil, fmt.Errorf("redeem: consume: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("redeem: rows affected: %w", err)
	}
	if n == 0 {
		// Lost the race after the row lock was released; treat as reuse.
		if err := revokeFamilyTx(ctx, tx, t.FamilyID, RevokeReasonReuse, now); err != nil {
			return nil, fmt.Errorf("redeem: revoke family: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("redeem: commit: %w", err)
		}
		return nil, ErrTokenReuseDetected
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("redeem: commit: %w", err)
	}
	consumed := now
	t.ConsumedAt = &consumed
	return t, nil
}

// LinkSuccessor records the ID of the token issued to replace id.
func (r *PostgresRepository) LinkSuccessor(ctx context.Context, id, successorID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET replaced_by_id = $1 WHERE id = $2`,
		successorID, id)
	if err != nil {
		return fmt.Errorf("link successor: %w", err)
	}
	return nil
}

// RevokeFamily revokes every not-yet-revoked token sharing familyID.
func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1, revoke_reason = $2
		 WHERE family_id = $3 AND revoked_at IS NULL`,
		at, reason, familyID)
	if err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every not-yet-revoked token belonging to userID.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1, revoke_reason = $2
		 WHERE user_id = $3 AND revoked_at IS NULL`,
		at, reason, userID)
	if err != nil {
		return fmt.Errorf("revoke all for user: %w", err)
	}
	return nil
}

// GetByHash returns the token for tokenHash, or ErrTokenUnknown if absent.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenUnknown
		}
		return nil, fmt.Errorf("get by hash: %w", err)
	}
	return t, nil
}

// ListByFamily returns all tokens sharing familyID, oldest first.
func (r *PostgresRepository) ListByFamily(ctx context.Context, familyID string) ([]*domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE family_id = $1 ORDER BY created_at`,
		familyID)
	if err != nil {
		return nil, fmt.Errorf("list by family: %w", err)
	}
	defer rows.Close()

	var out []*domain.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("list by family: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list by family: %w", err)
	}
	return out, nil
}

// PruneExpired deletes tokens whose expiry is before olderThan and returns the
// number of rows removed.
func (r *PostgresRepository) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune expired: %w", err)
	}
	return res.RowsAffected()
}

func revokeFamilyTx(ctx context.Context, tx *sql.Tx, familyID, reason string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1, revoke_reason = $2
		 WHERE family_id = $3 AND revoked_at IS NULL`,
		at, reason, familyID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	var consumedAt, revokedAt sql.NullTime
	var replacedByID, revokeReason sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.FamilyID, &t.CreatedAt,
		&t.ExpiresAt, &consumedAt, &replacedByID, &revokedAt, &revokeReason)
	if err != nil {
		return nil, err
	}
	if consumedAt.Valid {
		t.ConsumedAt = &consumedAt.Time
	}
	if replacedByID.Valid {
		t.ReplacedByID = &replacedByID.String
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	if revokeReason.Valid {
		t.RevokeReason = revokeReason.String
	}
	return &t, nil
}
