// Package alert emits security events raised by the token lifecycle, most
// importantly refresh token reuse detection. Events are best-effort; callers
// log and ignore errors.
package alert

import (
	"context"
	"time"
)

// Event types emitted by the lifecycle service.
const (
	EventTokenReuseDetected = "token_reuse_detected"
	EventFamilyRevoked      = "token_family_revoked"
	EventAllSessionsRevoked = "all_sessions_revoked"
)

// SecurityEvent describes one security-relevant occurrence.
type SecurityEvent struct {
	EventType string
	UserID    string
	FamilyID  string
	Detail    string
	CreatedAt time.Time
}

// Emitter emits security events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type Emitter interface {
	Emit(ctx context.Context, event *SecurityEvent) error
}
