package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counters track migration progress: confirmed import batches, task status
// polls and keys resolved to target ids.
type Counters struct {
	batches  metric.Int64Counter
	polls    metric.Int64Counter
	resolved metric.Int64Counter
}

// NewCounters creates the progress counters on m.
func NewCounters(m metric.Meter) *Counters {
	c := &Counters{}
	c.batches, _ = m.Int64Counter("ifj.import.batches",
		metric.WithDescription("Import batches confirmed complete"),
	)
	c.polls, _ = m.Int64Counter("ifj.import.task_polls",
		metric.WithDescription("Async task status checks"),
	)
	c.resolved, _ = m.Int64Counter("ifj.reconcile.keys_resolved",
		metric.WithDescription("Keys resolved to target ids"),
	)
	return c
}

var (
	defaultCountersOnce sync.Once
	defaultCounters     *Counters
)

// DefaultCounters returns counters on the global meter provider.
func DefaultCounters() *Counters {
	defaultCountersOnce.Do(func() {
		defaultCounters = NewCounters(Meter(phaseScopeName))
	})
	return defaultCounters
}

func (c *Counters) orDefault() *Counters {
	if c == nil {
		return DefaultCounters()
	}
	return c
}

// BatchImported records one confirmed batch of kind entities.
func (c *Counters) BatchImported(ctx context.Context, kind string) {
	c = c.orDefault()
	c.batches.Add(ctx, 1, metric.WithAttributes(attribute.String("ifj.kind", kind)))
}

// TasksPolled records n task status checks.
func (c *Counters) TasksPolled(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	c = c.orDefault()
	c.polls.Add(ctx, int64(n))
}

// KeysResolved records n keys of kind entities resolved by one lookup.
func (c *Counters) KeysResolved(ctx context.Context, kind string, n int) {
	c = c.orDefault()
	c.resolved.Add(ctx, int64(n), metric.WithAttributes(attribute.String("ifj.kind", kind)))
}
