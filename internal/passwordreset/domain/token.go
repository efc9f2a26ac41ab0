package domain

import "time"

// ResetToken is a single-use password reset grant. Only the SHA-256 hash of the
// opaque token is stored; the plaintext exists once, in the email sent to the user.
type ResetToken struct {
	ID        string
	UserID    string
	Email     string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil until consumed
}
