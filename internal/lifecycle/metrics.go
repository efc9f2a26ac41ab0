package lifecycle

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the service's counters, recorded through the global
// MeterProvider. When no provider is configured the global no-op is used.
type metrics struct {
	logins          counter
	refreshes       counter
	reuseDetections counter
	revocations     counter
	resets          counter
}

type counter struct {
	c metric.Int64Counter
}

func (c counter) inc(ctx context.Context) {
	if c.c != nil {
		c.c.Add(ctx, 1)
	}
}

func newMetrics() *metrics {
	meter := otel.Meter("authcore.lifecycle")
	m := &metrics{}
	m.logins.c = mustCounter(meter, "auth.logins", "Token pairs issued at login")
	m.refreshes.c = mustCounter(meter, "auth.refreshes", "Successful refresh rotations")
	m.reuseDetections.c = mustCounter(meter, "auth.reuse_detections", "Refresh token reuse detections")
	m.revocations.c = mustCounter(meter, "auth.revocations", "Logout revocations")
	m.resets.c = mustCounter(meter, "auth.password_resets", "Completed password resets")
	return m
}

func mustCounter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		log.Printf("lifecycle: counter %s: %v", name, err)
		return nil
	}
	return c
}
