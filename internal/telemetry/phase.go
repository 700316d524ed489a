package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const phaseScopeName = "github.com/toolsplus/ifj-migrate/migration"

// Phase is one traced unit of migration work: a run step, a key resolution
// chunk or an import batch. Every phase gets a span and is counted in the
// ifj.phase.* metrics.
type Phase struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

var (
	phaseOnce        sync.Once
	phaseInstruments struct {
		ops  metric.Int64Counter
		dur  metric.Float64Histogram
		errs metric.Int64Counter
	}
)

func phaseMetrics() {
	phaseOnce.Do(initPhaseMetrics)
}

func initPhaseMetrics() {
	m := Meter(phaseScopeName)
	phaseInstruments.ops, _ = m.Int64Counter("ifj.phase.operations",
		metric.WithDescription("Migration phases started"),
	)
	phaseInstruments.dur, _ = m.Float64Histogram("ifj.phase.duration",
		metric.WithDescription("Migration phase duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	phaseInstruments.errs, _ = m.Int64Counter("ifj.phase.errors",
		metric.WithDescription("Migration phases that failed"),
	)
}

// StartPhase starts a span named name and records the phase start.
func StartPhase(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Phase) {
	phaseMetrics()
	all := append([]attribute.KeyValue{attribute.String("ifj.phase", name)}, attrs...)
	ctx, span := Tracer(phaseScopeName).Start(ctx, name, trace.WithAttributes(all...))
	phaseInstruments.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, &Phase{ctx: ctx, span: span, start: time.Now(), attrs: all}
}

// SetAttributes adds attributes to the phase span.
func (p *Phase) SetAttributes(attrs ...attribute.KeyValue) {
	p.span.SetAttributes(attrs...)
}

// End finishes the phase, recording its duration and err if non-nil.
func (p *Phase) End(err error) {
	ms := float64(time.Since(p.start).Milliseconds())
	phaseInstruments.dur.Record(p.ctx, ms, metric.WithAttributes(p.attrs...))
	if err != nil {
		p.span.RecordError(err)
		p.span.SetStatus(codes.Error, err.Error())
		phaseInstruments.errs.Add(p.ctx, 1, metric.WithAttributes(p.attrs...))
	}
	p.span.End()
}
