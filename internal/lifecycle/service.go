// Package lifecycle orchestrates token issuance, rotation, revocation and
// password reset over the token stores. It is invoked in-process by the HTTP
// layer of the suite; no transport lives here.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cermont-atg/authcore/internal/alert"
	"cermont-atg/authcore/internal/audit"
	resetdomain "cermont-atg/authcore/internal/passwordreset/domain"
	resetrepo "cermont-atg/authcore/internal/passwordreset/repository"
	refreshdomain "cermont-atg/authcore/internal/refreshtoken/domain"
	refreshrepo "cermont-atg/authcore/internal/refreshtoken/repository"
	revocationdomain "cermont-atg/authcore/internal/revocation/domain"
	"cermont-atg/authcore/internal/security"
)

// Sentinel errors for the lifecycle service; the HTTP layer maps them to
// status codes. Per-request store and crypto failures are folded into these
// so no implementation detail leaks through error messages.
var (
	// ErrInvalidToken covers malformed, tampered, expired, unknown and
	// revoked tokens alike: the caller is told to re-authenticate, not why.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrReuseDetected is surfaced distinctly so the caller can force full
	// re-authentication and alert the user. The family is already revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected; session family revoked")
	// ErrInvalidResetToken covers unknown, expired and already-used reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrUnknownEmail is returned by RequestPasswordReset when no user matches.
	// The HTTP layer decides whether to hide this from the end caller.
	ErrUnknownEmail = errors.New("no user with that email")
)

// Revoke reasons recorded on refresh token records.
const (
	revokeReasonLogout        = "logout"
	revokeReasonPasswordReset = "password_reset"
)

// TokenPair is the outcome of Login and Refresh.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// User is the directory view the lifecycle needs: identity plus the claims
// that go into tokens.
type User struct {
	ID    string
	Email string
	Role  string
}

// UserDirectory resolves emails to users. Backed by the suite's user service.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// PasswordUpdater persists a new password hash. Backed by the suite's user service.
type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// RefreshTokenRepo is the minimal refresh token store needed by the service.
type RefreshTokenRepo interface {
	Create(ctx context.Context, t *refreshdomain.RefreshToken) error
	Redeem(ctx context.Context, tokenHash string, now time.Time) (*refreshdomain.RefreshToken, error)
	LinkSuccessor(ctx context.Context, id, successorID string) error
	RevokeFamily(ctx context.Context, familyID, reason string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) error
}

// RevocationRepo is the minimal revocation list needed by the service.
type RevocationRepo interface {
	Revoke(ctx context.Context, t *revocationdomain.RevokedAccessToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// ResetTokenRepo is the minimal reset token store needed by the service.
type ResetTokenRepo interface {
	Create(ctx context.Context, t *resetdomain.ResetToken) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (*resetdomain.ResetToken, error)
	InvalidateAllForUser(ctx context.Context, userID string, at time.Time) error
}

// Service implements login, refresh with rotation, logout and password reset.
type Service struct {
	codec      *security.Codec
	refresh    RefreshTokenRepo
	revocation RevocationRepo
	resets     ResetTokenRepo
	users      UserDirectory
	passwords  PasswordUpdater
	hasher     security.PasswordHasher
	auditLog   audit.AuditLogger
	alerts     alert.Emitter
	metrics    *metrics

	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration

	nowF func() time.Time
}

// NewService returns a Service with the given dependencies.
// auditLog and alerts may be nil; those events are then dropped.
func NewService(
	codec *security.Codec,
	refresh RefreshTokenRepo,
	revocation RevocationRepo,
	resets ResetTokenRepo,
	users UserDirectory,
	passwords PasswordUpdater,
	hasher security.PasswordHasher,
	auditLog audit.AuditLogger,
	alerts alert.Emitter,
	accessTTL, refreshTTL, resetTTL time.Duration,
) *Service {
	return &Service{
		codec:      codec,
		refresh:    refresh,
		revocation: revocation,
		resets:     resets,
		users:      users,
		passwords:  passwords,
		hasher:     hasher,
		auditLog:   auditLog,
		alerts:     alerts,
		metrics:    newMetrics(),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   resetTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// Login mints a fresh token family for an already-authenticated user and
// returns the signed pair. Credential checking happens upstream; this core
// only issues tokens.
func (s *Service) Login(ctx context.Context, userID, email, role string) (*TokenPair, error) {
	now := s.nowF()
	familyID := uuid.New().String()

	accessToken, _, accessExp, err := s.codec.SignAccess(userID, email, role, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	refreshToken, refreshJTI, refreshExp, err := s.codec.SignRefresh(userID, email, role, familyID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	rec := &refreshdomain.RefreshToken{
		ID:        refreshJTI,
		UserID:    userID,
		TokenHash: security.HashToken(refreshToken),
		FamilyID:  familyID,
		CreatedAt: now,
		ExpiresAt: refreshExp,
	}
	if err := s.refresh.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.logEvent(ctx, userID, audit.ActionLoginSuccess, audit.SeverityInfo, "family="+familyID)
	s.metrics.logins.inc(ctx)
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, AccessExpiresAt: accessExp}, nil
}

// Refresh redeems the presented refresh token and rotates it: the old record
// is consumed, a new pair is signed under the same family, and the records are
// linked. A consumed token presented again revokes the whole family and fails
// with ErrReuseDetected.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Verify(rawRefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != security.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}

	now := s.nowF()
	rec, err := s.refresh.Redeem(ctx, security.HashToken(rawRefreshToken), now)
	if err != nil {
		switch {
		case errors.Is(err, refreshrepo.ErrTokenReuseDetected):
			s.logEvent(ctx, claims.Subject, audit.ActionTokenReuseDetected, audit.SeverityWarning, "family="+claims.FamilyID)
			alert.EmitAsync(s.alerts, ctx, &alert.SecurityEvent{
				EventType: alert.EventTokenReuseDetected,
				UserID:    claims.Subject,
				FamilyID:  claims.FamilyID,
				Detail:    "consumed refresh token presented again; family revoked",
				CreatedAt: now,
			})
			s.metrics.reuseDetections.inc(ctx)
			return nil, ErrReuseDetected
		case errors.Is(err, refreshrepo.ErrTokenUnknown),
			errors.Is(err, refreshrepo.ErrTokenRevoked),
			errors.Is(err, refreshrepo.ErrTokenExpired):
			return nil, ErrInvalidToken
		default:
			return nil, fmt.Errorf("refresh: %w", err)
		}
	}

	accessToken, _, accessExp, err := s.codec.SignAccess(claims.Subject, claims.Email, claims.Role, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	newRefresh, newJTI, refreshExp, err := s.codec.SignRefresh(claims.Subject, claims.Email, claims.Role, rec.FamilyID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	successor := &refreshdomain.RefreshToken{
		ID:        newJTI,
		UserID:    rec.UserID,
		TokenHash: security.HashToken(newRefresh),
		FamilyID:  rec.FamilyID,
		CreatedAt: now,
		ExpiresAt: refreshExp,
	}
	if err := s.refresh.Create(ctx, successor); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if err := s.refresh.LinkSuccessor(ctx, rec.ID, newJTI); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	s.logEvent(ctx, rec.UserID, audit.ActionTokenRefreshed, audit.SeverityInfo, "family="+rec.FamilyID)
	s.metrics.refreshes.inc(ctx)
	return &TokenPair{AccessToken: accessToken, RefreshToken: newRefresh, AccessExpiresAt: accessExp}, nil
}

// Logout revokes the access token's jti and the refresh token's family.
// Either token may be empty or invalid; logout of a dead session is a no-op,
// not an error.
func (s *Service) Logout(ctx context.Context, rawAccessToken, rawRefreshToken string) error {
	now := s.nowF()
	var userID string

	if rawAccessToken != "" {
		if claims, err := s.codec.Verify(rawAccessToken); err == nil && claims.TokenType == security.TokenTypeAccess {
			userID = claims.Subject
			entry := &revocationdomain.RevokedAccessToken{
				JTI:       claims.ID,
				UserID:    claims.Subject,
				Reason:    revokeReasonLogout,
				RevokedAt: now,
				ExpiresAt: claims.ExpiresAt.Time,
			}
			if err := s.revocation.Revoke(ctx, entry); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
		}
	}

	if rawRefreshToken != "" {
		if claims, err := s.codec.Verify(rawRefreshToken); err == nil && claims.TokenType == security.TokenTypeRefresh {
			if userID == "" {
				userID = claims.Subject
			}
			if err := s.refresh.RevokeFamily(ctx, claims.FamilyID, revokeReasonLogout, now); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
		}
	}

	if userID != "" {
		s.logEvent(ctx, userID, audit.ActionLogout, audit.SeverityInfo, "")
		s.metrics.revocations.inc(ctx)
	}
	return nil
}

// VerifyAccess validates an access token for request authentication: signature
// and claims via the codec, then the revocation list. Exposed to the HTTP
// layer's auth middleware.
func (s *Service) VerifyAccess(ctx context.Context, rawAccessToken string) (*security.Claims, error) {
	claims, err := s.codec.Verify(rawAccessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != security.TokenTypeAccess {
		return nil, ErrInvalidToken
	}
	revoked, err := s.revocation.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("verify access: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RequestPasswordReset issues a single-use opaque reset token for the user
// behind email, invalidating any prior outstanding token first. Returns the
// raw token; delivery (email) is the suite's concern.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("request password reset: %w", err)
	}
	if user == nil {
		return "", ErrUnknownEmail
	}

	now := s.nowF()
	if err := s.resets.InvalidateAllForUser(ctx, user.ID, now); err != nil {
		return "", fmt.Errorf("request password reset: %w", err)
	}

	raw, err := security.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("request password reset: %w", err)
	}
	rec := &resetdomain.ResetToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: security.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("request password reset: %w", err)
	}

	s.logEvent(ctx, user.ID, audit.ActionPasswordResetRequested, audit.SeverityInfo, "")
	return raw, nil
}

// ResetPassword consumes the reset token, stores the new password hash and
// kills every existing session for the user: all refresh families are revoked
// and any other outstanding reset token is invalidated.
func (s *Service) ResetPassword(ctx context.Context, rawResetToken, newPassword string) error {
	now := s.nowF()
	rec, err := s.resets.Consume(ctx, security.HashToken(rawResetToken), now)
	if err != nil {
		switch {
		case errors.Is(err, resetrepo.ErrTokenUnknown),
			errors.Is(err, resetrepo.ErrTokenExpired),
			errors.Is(err, resetrepo.ErrTokenAlreadyUsed):
			return ErrInvalidResetToken
		default:
			return fmt.Errorf("reset password: %w", err)
		}
	}

	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if err := s.passwords.UpdatePassword(ctx, rec.UserID, hash); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	if err := s.resets.InvalidateAllForUser(ctx, rec.UserID, now); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if err := s.refresh.RevokeAllForUser(ctx, rec.UserID, revokeReasonPasswordReset, now); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.logEvent(ctx, rec.UserID, audit.ActionPasswordResetCompleted, audit.SeverityInfo, "")
	alert.EmitAsync(s.alerts, ctx, &alert.SecurityEvent{
		EventType: alert.EventAllSessionsRevoked,
		UserID:    rec.UserID,
		Detail:    "password reset completed; all refresh families revoked",
		CreatedAt: now,
	})
	s.metrics.resets.inc(ctx)
	return nil
}

func (s *Service) logEvent(ctx context.Context, userID, action, severity, detail string) {
	if s.auditLog == nil {
		return
	}
	s.auditLog.LogEvent(ctx, userID, action, severity, detail)
}
