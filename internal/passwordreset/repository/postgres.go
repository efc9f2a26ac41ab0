package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cermont-atg/authcore/internal/passwordreset/domain"
)

const resetColumns = `id, user_id, email, token_hash, created_at, expires_at, used_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a reset token repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the token. The token must have ID and TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.ResetToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, email, token_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.Email, t.TokenHash, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

// Consume marks the token used if it is unused and unexpired. The conditional
// UPDATE is the atomicity point: of two concurrent consumers exactly one sees
// a row updated, the other falls through to classification.
func (r *PostgresRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.ResetToken, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE password_reset_tokens SET used_at = $1
		 WHERE token_hash = $2 AND used_at IS NULL AND expires_at > $1
		 RETURNING `+resetColumns,
		now, tokenHash)
	t, err := scanResetToken(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	// The CAS failed; read the row to say why.
	row = r.db.QueryRowContext(ctx,
		`SELECT `+resetColumns+` FROM password_reset_tokens WHERE token_hash = $1`,
		tokenHash)
	t, err = scanResetToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenUnknown
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	if t.UsedAt != nil {
		return nil, ErrTokenAlreadyUsed
	}
	return nil, ErrTokenExpired
}

// InvalidateAllForUser marks every outstanding token for userID as used, so a
// newly issued token is the only live one.
func (r *PostgresRepository) InvalidateAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used_at = $1
		 WHERE user_id = $2 AND used_at IS NULL`,
		at, userID)
	if err != nil {
		return fmt.Errorf("invalidate reset tokens: %w", err)
	}
	return nil
}

// PruneExpired deletes tokens whose expiry is before olderThan.
func (r *PostgresRepository) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune expired: %w", err)
	}
	return res.RowsAffected()
}

func scanResetToken(row *sql.Row) (*domain.ResetToken, error) {
	var t domain.ResetToken
	var usedAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Email, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &usedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	return &t, nil
}
