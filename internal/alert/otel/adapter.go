package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"cermont-atg/authcore/internal/alert"
)

// NewEmitter returns an Emitter that sends security events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEmitter(provider *sdklog.LoggerProvider) alert.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("authcore.alert")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *alert.SecurityEvent) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the security event to an OTel log record and emits it. Best-effort; errors are logged.
func (e *otelEmitter) Emit(ctx context.Context, event *alert.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetSeverity(otellog.SeverityWarn)
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	}
	if event.Detail != "" {
		rec.SetBody(otellog.StringValue(event.Detail))
	}
	if event.EventType != "" {
		rec.AddAttributes(otellog.String("event_type", event.EventType))
	}
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.FamilyID != "" {
		rec.AddAttributes(otellog.String("family_id", event.FamilyID))
	}
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	e.logger.Emit(ctx, rec)
	return nil
}

// newEmitterWithLogger is a test hook for injecting a capture logger.
func newEmitterWithLogger(logger otellog.Logger) alert.Emitter {
	return &otelEmitter{logger: logger}
}
