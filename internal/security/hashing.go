package security

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the capability the suite's login/registration paths
// consume. The token core itself never hashes passwords; Hasher is the
// default implementation provided for injection.
type PasswordHasher interface {
	Hash(plain []byte) (string, error)
	Verify(plain []byte, hash string) bool
}

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of plain, as a string suitable for storage.
func (h *Hasher) Hash(plain []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(plain, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches the stored bcrypt hash, using
// constant-time comparison.
func (h *Hasher) Verify(plain []byte, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), plain) == nil
}
