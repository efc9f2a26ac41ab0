// Package pruner sweeps expired auth rows on a timer. Deletions are
// delete-only and condition on timestamps already past, so the pruner is safe
// to run alongside any number of serving processes.
package pruner

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"cermont-atg/authcore/internal/security"
)

// Store is one prunable store. All three token repositories implement it.
type Store interface {
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// Pruner periodically deletes rows whose expiry is older than the grace
// period and drops signing keys past their NotAfter.
type Pruner struct {
	stores map[string]Store
	ring   *security.KeyRing // optional

	interval time.Duration
	grace    time.Duration

	pruned metric.Int64Counter
	nowF   func() time.Time
}

// New returns a Pruner over the named stores. Rows are deleted once their
// expiry is more than grace in the past, keeping recently dead rows around
// for reuse detection and forensics. ring may be nil.
func New(stores map[string]Store, ring *security.KeyRing, interval, grace time.Duration) *Pruner {
	counter, err := otel.Meter("authcore.pruner").Int64Counter(
		"auth.pruned_records",
		metric.WithDescription("Rows removed by the background pruner."),
	)
	if err != nil {
		log.Printf("pruner: counter init failed: %v", err)
	}
	return &Pruner{
		stores:   stores,
		ring:     ring,
		interval: interval,
		grace:    grace,
		pruned:   counter,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	p.Sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over every store. A failing store is logged and skipped;
// the pass continues so one bad store cannot starve the others.
func (p *Pruner) Sweep(ctx context.Context) int64 {
	now := p.nowF()
	cutoff := now.Add(-p.grace)

	var total int64
	for name, store := range p.stores {
		n, err := store.PruneExpired(ctx, cutoff)
		if err != nil {
			log.Printf("pruner: %s: %v", name, err)
			continue
		}
		total += n
		if n > 0 {
			log.Printf("pruner: %s: removed %d rows", name, n)
		}
	}

	if p.ring != nil {
		if n := p.ring.PruneExpired(now); n > 0 {
			total += int64(n)
			log.Printf("pruner: keyring: removed %d expired keys", n)
		}
	}

	if p.pruned != nil && total > 0 {
		p.pruned.Add(ctx, total)
	}
	return total
}
