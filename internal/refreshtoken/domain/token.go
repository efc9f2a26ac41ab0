package domain

import "time"

// RefreshToken is one link in a rotation family. Each redemption consumes the
// current link and issues a successor carrying the same FamilyID, so a consumed
// token presented a second time identifies the whole family for revocation.
type RefreshToken struct {
	ID           string
	UserID       string
	TokenHash    string // SHA-256 hash of the opaque token; plaintext is never stored
	FamilyID     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time // nil until redeemed
	ReplacedByID *string    // ID of the successor token, set after rotation
	RevokedAt    *time.Time // nil when not revoked
	RevokeReason string
}

// Active reports whether the token can still be redeemed at the given time.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.ConsumedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
