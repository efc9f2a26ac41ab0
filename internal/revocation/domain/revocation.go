package domain

import "time"

// RevokedAccessToken records a revoked access token by jti. The entry only
// needs to live until the token's own expiry, after which verification fails
// on the exp claim anyway.
type RevokedAccessToken struct {
	JTI       string
	UserID    string
	Reason    string
	RevokedAt time.Time
	ExpiresAt time.Time
}
