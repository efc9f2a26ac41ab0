package security

import (
	"errors"
	"testing"
	"time"
)

func TestCodec_SignAccessAndVerify(t *testing.T) {
	c, err := NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}

	token, jti, exp, err := c.SignAccess("u1", "tech@example.com", "technician", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("access token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	claims, err := c.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "tech@example.com" || claims.Role != "technician" {
		t.Errorf("claims: got sub=%q email=%q role=%q", claims.Subject, claims.Email, claims.Role)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("token_type: want %q, got %q", TokenTypeAccess, claims.TokenType)
	}
	if claims.ID != jti {
		t.Errorf("jti: want %q, got %q", jti, claims.ID)
	}
	if claims.FamilyID != "" {
		t.Errorf("access token should carry no family_id, got %q", claims.FamilyID)
	}
}

func TestCodec_SignRefresh(t *testing.T) {
	c, err := NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}
	token, jti, _, err := c.SignRefresh("u1", "tech@example.com", "technician", "fam-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}
	claims, err := c.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.TokenType != TokenTypeRefresh {
		t.Errorf("token_type: want %q, got %q", TokenTypeRefresh, claims.TokenType)
	}
	if claims.FamilyID != "fam-1" {
		t.Errorf("family_id: want fam-1, got %q", claims.FamilyID)
	}
	if claims.ID != jti {
		t.Errorf("jti: want %q, got %q", jti, claims.ID)
	}
}

func TestCodec_FreshJTIPerToken(t *testing.T) {
	c, err := NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}
	_, jti1, _, err := c.SignAccess("u1", "", "", time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	_, jti2, _, err := c.SignAccess("u1", "", "", time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if jti1 == jti2 {
		t.Error("two tokens share a jti")
	}
}

func TestCodec_VerifyMalformed(t *testing.T) {
	c, err := NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}
	for _, raw := range []string{"", "not-a-jwt", "a.b"} {
		if _, err := c.Verify(raw); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Verify(%q): want ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestCodec_VerifyExpired(t *testing.T) {
	c, err := NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}
	token, _, _, err := c.sign("u1", "", "", "", TokenTypeAccess, -2*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify expired: want ErrTokenExpired, got %v", err)
	}
}

func TestCodec_VerifyUnknownKid(t *testing.T) {
	c, err := NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}
	token, _, _, err := c.SignAccess("u1", "", "", time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	// A verifier whose ring lacks the signing kid must reject the signature.
	otherKey, err := GenerateTestSigningKey("other-kid")
	if err != nil {
		t.Fatalf("GenerateTestSigningKey: %v", err)
	}
	otherRing, err := NewKeyRing([]SigningKey{otherKey}, "other-kid")
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	verifier := NewCodec(otherRing, TestIssuer, TestAudience)
	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Errorf("Verify with unknown kid: want ErrTokenInvalidSignature, got %v", err)
	}
}

func TestCodec_VerifyTamperedSignature(t *testing.T) {
	c, err := NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}
	token, _, _, err := c.SignAccess("u1", "", "", time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	tampered := token[:len(token)-4] + "AAAA"
	if _, err := c.Verify(tampered); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Errorf("Verify tampered: want ErrTokenInvalidSignature, got %v", err)
	}
}

func TestCodec_VerifyWrongIssuer(t *testing.T) {
	ring, err := NewTestKeyRing()
	if err != nil {
		t.Fatalf("NewTestKeyRing: %v", err)
	}
	signer := NewCodec(ring, "other-issuer", TestAudience)
	token, _, _, err := signer.SignAccess("u1", "", "", time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	verifier := NewCodec(ring, TestIssuer, TestAudience)
	if _, err := verifier.Verify(token); err == nil {
		t.Error("Verify with wrong issuer: want error, got nil")
	}
}

func TestCodec_SignFailsOnEmptyRing(t *testing.T) {
	ring, err := NewKeyRing(nil, "")
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	c := NewCodec(ring, TestIssuer, TestAudience)
	if _, _, _, err := c.SignAccess("u1", "", "", time.Minute); !errors.Is(err, ErrKeyRingEmpty) {
		t.Errorf("SignAccess on empty ring: want ErrKeyRingEmpty, got %v", err)
	}
}

func TestCodec_RotationPreservesVerification(t *testing.T) {
	ring, err := NewTestKeyRing()
	if err != nil {
		t.Fatalf("NewTestKeyRing: %v", err)
	}
	c := NewCodec(ring, TestIssuer, TestAudience)

	oldToken, _, _, err := c.SignAccess("u1", "", "", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	next, err := GenerateTestSigningKey("test-key-2")
	if err != nil {
		t.Fatalf("GenerateTestSigningKey: %v", err)
	}
	if err := ring.Rotate(next, time.Hour); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	// Token signed before rotation still verifies during the overlap window.
	if _, err := c.Verify(oldToken); err != nil {
		t.Errorf("Verify old-kid token after rotation: %v", err)
	}

	// And new tokens are signed with the new key.
	newToken, _, _, err := c.SignAccess("u1", "", "", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignAccess after rotate: %v", err)
	}
	if _, err := c.Verify(newToken); err != nil {
		t.Errorf("Verify new-kid token: %v", err)
	}
}
