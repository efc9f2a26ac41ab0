// Package audit records auth lifecycle events. Every login, rotation,
// revocation and reset attempt leaves a row; reuse detection is the one event
// recorded at warning severity.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"cermont-atg/authcore/internal/audit/domain"
	auditrepo "cermont-atg/authcore/internal/audit/repository"
)

// Actions recorded by the token lifecycle service.
const (
	ActionLoginSuccess           = "login_success"
	ActionLogout                 = "logout"
	ActionTokenRefreshed         = "token_refreshed"
	ActionTokenRevoked           = "token_revoked"
	ActionTokenReuseDetected     = "token_reuse_detected"
	ActionPasswordResetRequested = "password_reset_requested"
	ActionPasswordResetCompleted = "password_reset_completed"
)

// Severities for audit entries.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// AuditLogger writes a single audit event. Used by the lifecycle service.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, severity, detail string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns an AuditLogger that persists to repo.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, severity, detail string) {
	if l.repo == nil {
		return
	}
	if severity == "" {
		severity = SeverityInfo
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Severity:  severity,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s: %v", action, err)
	}
}
