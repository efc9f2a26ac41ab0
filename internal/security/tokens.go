package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures, kept distinct so callers can branch on them.
var (
	// ErrTokenMalformed is returned when the token is not a parseable JWT.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired is returned when the token's exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalidSignature is returned when the signature does not verify,
	// the kid is unknown, or the algorithm is not RS256.
	ErrTokenInvalidSignature = errors.New("token signature invalid")
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// verifyLeeway absorbs clock skew between the suite's services.
const verifyLeeway = 30 * time.Second

// Claims are the JWT claims for both access and refresh tokens. Immutable
// once issued; identity is the jti (RegisteredClaims.ID).
type Claims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type"`
	// FamilyID groups all refresh tokens descended from one login. Set only
	// on refresh tokens.
	FamilyID string `json:"family_id,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access and refresh tokens over a KeyRing.
// Stateless: every operation reads the ring's current state and has no other
// side effects.
type Codec struct {
	ring     *KeyRing
	issuer   string
	audience string
}

// NewCodec returns a Codec that signs with ring's active key and verifies
// with any key in the ring matched by the token's kid header.
func NewCodec(ring *KeyRing, issuer, audience string) *Codec {
	return &Codec{ring: ring, issuer: issuer, audience: audience}
}

// SignAccess issues a short-lived access token for the given user.
// Returns the signed token, its fresh jti, and the expiry time.
func (c *Codec) SignAccess(userID, email, role string, ttl time.Duration) (token, jti string, expiresAt time.Time, err error) {
	return c.sign(userID, email, role, "", TokenTypeAccess, ttl)
}

// SignRefresh issues a refresh token bound to familyID.
func (c *Codec) SignRefresh(userID, email, role, familyID string, ttl time.Duration) (token, jti string, expiresAt time.Time, err error) {
	return c.sign(userID, email, role, familyID, TokenTypeRefresh, ttl)
}

func (c *Codec) sign(userID, email, role, familyID, tokenType string, ttl time.Duration) (string, string, time.Time, error) {
	key, err := c.ring.ActiveKey()
	if err != nil {
		return "", "", time.Time{}, err
	}
	jti := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		FamilyID:  familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = key.KID
	signed, err := t.SignedString(key.PrivateKey)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, expiresAt, nil
}

// Verify parses and validates raw: signature via the ring key matching the
// kid header, exp with leeway, issuer and audience. Fails distinctly with
// ErrTokenMalformed, ErrTokenExpired, or ErrTokenInvalidSignature.
func (c *Codec) Verify(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(verifyLeeway),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid: %w", ErrTokenInvalidSignature)
		}
		key, err := c.ring.Resolve(kid)
		if err != nil {
			return nil, fmt.Errorf("kid %q: %w", kid, ErrTokenInvalidSignature)
		}
		return key.PublicKey, nil
	})
	if err != nil {
		return nil, classifyVerifyError(err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalidSignature
	}
	return claims, nil
}

// classifyVerifyError collapses golang-jwt errors into the three verification
// failure kinds. Expiry wins over signature problems so callers do not treat
// a merely stale token as tampering.
func classifyVerifyError(err error) error {
	switch {
	case errors.Is(err, ErrTokenInvalidSignature):
		return ErrTokenInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenInvalidSignature
	}
}
