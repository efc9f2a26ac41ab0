package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cermont-atg/authcore/internal/passwordreset/domain"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func resetRows(t *domain.ResetToken) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "email", "token_hash", "created_at", "expires_at", "used_at"})
	var used any
	if t.UsedAt != nil {
		used = *t.UsedAt
	}
	rows.AddRow(t.ID, t.UserID, t.Email, t.TokenHash, t.CreatedAt, t.ExpiresAt, used)
	return rows
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	tok := &domain.ResetToken{
		ID: "rt-1", UserID: "user-1", Email: "a@example.com",
		TokenHash: "hash-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	mock.ExpectExec(`INSERT INTO password_reset_tokens`).
		WithArgs(tok.ID, tok.UserID, tok.Email, tok.TokenHash, tok.CreatedAt, tok.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestConsume_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	used := now
	tok := &domain.ResetToken{
		ID: "rt-1", UserID: "user-1", Email: "a@example.com",
		TokenHash: "hash-1", CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(time.Hour), UsedAt: &used,
	}
	mock.ExpectQuery(`UPDATE password_reset_tokens SET used_at = \$1\s+WHERE token_hash = \$2 AND used_at IS NULL AND expires_at > \$1\s+RETURNING`).
		WithArgs(now, "hash-1").
		WillReturnRows(resetRows(tok))

	got, err := repo.Consume(context.Background(), "hash-1", now)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got.UsedAt == nil {
		t.Error("UsedAt should be set")
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", got.UserID)
	}
}

func TestConsume_Unknown(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`UPDATE password_reset_tokens SET used_at`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT .+ FROM password_reset_tokens WHERE token_hash = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "nope", now)
	if !errors.Is(err, ErrTokenUnknown) {
		t.Fatalf("err = %v, want ErrTokenUnknown", err)
	}
}

func TestConsume_AlreadyUsed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	used := now.Add(-time.Minute)
	tok := &domain.ResetToken{
		ID: "rt-1", UserID: "user-1", TokenHash: "hash-1",
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour), UsedAt: &used,
	}
	mock.ExpectQuery(`UPDATE password_reset_tokens SET used_at`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT .+ FROM password_reset_tokens WHERE token_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(resetRows(tok))

	_, err := repo.Consume(context.Background(), "hash-1", now)
	if !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Fatalf("err = %v, want ErrTokenAlreadyUsed", err)
	}
}

func TestConsume_Expired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	tok := &domain.ResetToken{
		ID: "rt-1", UserID: "user-1", TokenHash: "hash-1",
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	mock.ExpectQuery(`UPDATE password_reset_tokens SET used_at`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT .+ FROM password_reset_tokens WHERE token_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(resetRows(tok))

	_, err := repo.Consume(context.Background(), "hash-1", now)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestInvalidateAllForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE password_reset_tokens SET used_at = \$1\s+WHERE user_id = \$2 AND used_at IS NULL`).
		WithArgs(at, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.InvalidateAllForUser(context.Background(), "user-1", at); err != nil {
		t.Fatalf("InvalidateAllForUser: %v", err)
	}
}

func TestPruneExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Now()
	mock.ExpectExec(`DELETE FROM password_reset_tokens WHERE expires_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.PruneExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4", n)
	}
}
