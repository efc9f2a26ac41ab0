package domain

import "time"

// AuditLog represents one auth lifecycle event.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Severity  string
	Detail    string
	CreatedAt time.Time
}
