package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	// ErrKeyRingEmpty is returned when no signing key is configured. Fatal at
	// startup; never recoverable per request.
	ErrKeyRingEmpty = errors.New("key ring has no active signing key")
	// ErrKeyNotFound is returned when no key matches the requested kid.
	ErrKeyNotFound = errors.New("signing key not found")
)

// SigningKey is one RSA key pair tagged with a key identifier. Owned by the
// KeyRing; callers must not mutate it after handing it over.
type SigningKey struct {
	KID        string
	Algorithm  string // always "RS256"
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	NotBefore  time.Time
	// NotAfter bounds verification; zero means no expiry. Rotation keeps old
	// keys verification-only until this passes.
	NotAfter time.Time
}

// NewSigningKey wraps key with the given kid, valid from now with no expiry.
func NewSigningKey(kid string, key *rsa.PrivateKey) SigningKey {
	return SigningKey{
		KID:        kid,
		Algorithm:  "RS256",
		PrivateKey: key,
		PublicKey:  &key.PublicKey,
		NotBefore:  time.Now().UTC(),
	}
}

// JWK is the public half of a signing key in RFC 7517 form, ready for an
// external JWKS endpoint to serve.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeyRing holds the current and previously valid signing keys. Exactly one
// key is active (used for new signatures); the rest are retained read-only
// for verification until they pass NotAfter. Construction is explicit;
// there is no package-level ring.
type KeyRing struct {
	mu        sync.RWMutex
	keys      []SigningKey // oldest first
	activeKID string
}

// NewKeyRing returns a ring holding keys with activeKID marked active.
// keys may be empty; ActiveKey then fails with ErrKeyRingEmpty until Rotate
// is called.
func NewKeyRing(keys []SigningKey, activeKID string) (*KeyRing, error) {
	r := &KeyRing{keys: append([]SigningKey(nil), keys...), activeKID: activeKID}
	if activeKID != "" {
		if _, err := r.Resolve(activeKID); err != nil {
			return nil, fmt.Errorf("active kid %q: %w", activeKID, err)
		}
	}
	return r, nil
}

// LoadKeyRing reads <kid>.pem / <kid>.pub.pem pairs from dir for each kid in
// kids (comma-separated or slice order = oldest first) and marks activeKID
// active. Used at startup with JWT_KEYS_DIR and JWT_ACTIVE_KID.
func LoadKeyRing(dir string, kids []string, activeKID string) (*KeyRing, error) {
	keys := make([]SigningKey, 0, len(kids))
	for _, kid := range kids {
		kid = strings.TrimSpace(kid)
		if kid == "" {
			continue
		}
		priv, err := ParseRSAPrivateKey(filepath.Join(dir, kid+".pem"))
		if err != nil {
			return nil, fmt.Errorf("load key %q: %w", kid, err)
		}
		keys = append(keys, NewSigningKey(kid, priv))
	}
	return NewKeyRing(keys, activeKID)
}

// ActiveKey returns the current signing key. Fails with ErrKeyRingEmpty when
// none is configured.
func (r *KeyRing) ActiveKey() (SigningKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeKID == "" {
		return SigningKey{}, ErrKeyRingEmpty
	}
	for _, k := range r.keys {
		if k.KID == r.activeKID {
			return k, nil
		}
	}
	return SigningKey{}, ErrKeyRingEmpty
}

// Resolve returns the key with the given kid, for verification. Fails with
// ErrKeyNotFound when absent. Expired keys (past NotAfter) are not resolved.
func (r *KeyRing) Resolve(kid string) (SigningKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.KID != kid {
			continue
		}
		if !k.NotAfter.IsZero() && !k.NotAfter.After(time.Now()) {
			return SigningKey{}, ErrKeyNotFound
		}
		return k, nil
	}
	return SigningKey{}, ErrKeyNotFound
}

// Rotate appends newKey and marks it active. The previous active key stays in
// the ring verification-only; if it had no NotAfter it is given overlap as a
// bound so outstanding tokens signed with it keep verifying until then.
// Rotation never deletes a key; Remove is the explicit maintenance operation.
func (r *KeyRing) Rotate(newKey SigningKey, overlap time.Duration) error {
	if newKey.KID == "" || newKey.PrivateKey == nil {
		return ErrInvalidKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.KID == newKey.KID {
			return fmt.Errorf("rotate: kid %q already present: %w", newKey.KID, ErrInvalidKey)
		}
	}
	if overlap > 0 {
		for i := range r.keys {
			if r.keys[i].KID == r.activeKID && r.keys[i].NotAfter.IsZero() {
				r.keys[i].NotAfter = time.Now().UTC().Add(overlap)
			}
		}
	}
	r.keys = append(r.keys, newKey)
	r.activeKID = newKey.KID
	return nil
}

// Remove deletes the key with the given kid from the ring. The active key
// cannot be removed.
func (r *KeyRing) Remove(kid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kid == r.activeKID {
		return fmt.Errorf("remove: kid %q is active: %w", kid, ErrInvalidKey)
	}
	for i, k := range r.keys {
		if k.KID == kid {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			return nil
		}
	}
	return ErrKeyNotFound
}

// PruneExpired removes keys whose NotAfter has passed and returns how many
// were removed. The active key is never pruned.
func (r *KeyRing) PruneExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.keys[:0]
	removed := 0
	for _, k := range r.keys {
		if k.KID != r.activeKID && !k.NotAfter.IsZero() && !k.NotAfter.After(now) {
			removed++
			continue
		}
		kept = append(kept, k)
	}
	r.keys = kept
	return removed
}

// PublicSet returns the verification keys as a JWK set. Expired keys are
// excluded.
func (r *KeyRing) PublicSet() []JWK {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now()
	out := make([]JWK, 0, len(r.keys))
	for _, k := range r.keys {
		if !k.NotAfter.IsZero() && !k.NotAfter.After(now) {
			continue
		}
		out = append(out, JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: k.Algorithm,
			Kid: k.KID,
			N:   base64.RawURLEncoding.EncodeToString(k.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(bigIntExponent(k.PublicKey.E)),
		})
	}
	return out
}

func bigIntExponent(e int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(e))
	return new(big.Int).SetBytes(buf).Bytes()
}

// WriteKeyPair writes the key pair as <kid>.pem and <kid>.pub.pem under dir.
// The private key file is created with mode 0600. Used by cmd/keygen.
func WriteKeyPair(dir string, key SigningKey) error {
	privPEM, err := EncodePrivateKeyPEM(key.PrivateKey)
	if err != nil {
		return err
	}
	pubPEM, err := EncodePublicKeyPEM(key.PublicKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, key.KID+".pem"), privPEM, 0o600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, key.KID+".pub.pem"), pubPEM, 0o644)
}
