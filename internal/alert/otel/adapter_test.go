package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"cermont-atg/authcore/internal/alert"
)

func TestNewEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEmitter(nil)
	if em == nil {
		t.Fatal("NewEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &alert.SecurityEvent{UserID: "user-1"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	embedded.Logger
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func (r *recordCapture) Enabled(ctx context.Context, param otellog.EnabledParameters) bool {
	return true
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	em := newEmitterWithLogger(capture)
	created := time.Now().UTC().Add(-time.Minute)
	event := &alert.SecurityEvent{
		EventType: alert.EventTokenReuseDetected,
		UserID:    "user-1",
		FamilyID:  "fam-1",
		Detail:    "consumed token presented again",
		CreatedAt: created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := capture.rec

	if rec.Body().AsString() != "consumed token presented again" {
		t.Errorf("body = %q, want detail", rec.Body().AsString())
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn", rec.Severity())
	}
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}

	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{
		"event_type": alert.EventTokenReuseDetected,
		"user_id":    "user-1",
		"family_id":  "fam-1",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	capture := &recordCapture{}
	em := newEmitterWithLogger(capture)
	event := &alert.SecurityEvent{EventType: alert.EventFamilyRevoked, UserID: "user-1"}

	before := time.Now().UTC()
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()

	ts := capture.rec.Timestamp()
	if ts.IsZero() {
		t.Error("timestamp should be set when CreatedAt is zero")
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
}

func TestEmit_PartialFields(t *testing.T) {
	capture := &recordCapture{}
	em := newEmitterWithLogger(capture)
	event := &alert.SecurityEvent{EventType: alert.EventAllSessionsRevoked}

	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	attrs := make(map[string]string)
	capture.rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	if attrs["event_type"] != alert.EventAllSessionsRevoked {
		t.Errorf("event_type = %q", attrs["event_type"])
	}
	if _, ok := attrs["user_id"]; ok {
		t.Error("user_id should not be set for empty field")
	}
	if _, ok := attrs["family_id"]; ok {
		t.Error("family_id should not be set for empty field")
	}
}
