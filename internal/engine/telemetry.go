package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/txn"
)

const instrumentationName = "github.com/roach88/pop/engine"

// telemetry holds the engine's metric instruments and tracer.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type telemetry struct {
	tracer  trace.Tracer
	enabled bool

	commitTotal     metric.Int64Counter
	rollbackTotal   metric.Int64Counter
	conflictTotal   metric.Int64Counter
	violationTotal  metric.Int64Counter
	txDuration      metric.Float64Histogram
	entriesRecorded metric.Int64Histogram
}

func newTelemetry(mp metric.MeterProvider, tp trace.TracerProvider, enabled bool) (*telemetry, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(instrumentationName)
	t := &telemetry{tracer: tp.Tracer(instrumentationName), enabled: enabled}

	var err error
	if t.commitTotal, err = meter.Int64Counter(
		"pop_transaction_commit_total",
		metric.WithDescription("Total number of committed transactions"),
	); err != nil {
		return nil, err
	}
	if t.rollbackTotal, err = meter.Int64Counter(
		"pop_transaction_rollback_total",
		metric.WithDescription("Total number of rolled back transactions"),
	); err != nil {
		return nil, err
	}
	if t.conflictTotal, err = meter.Int64Counter(
		"pop_transaction_conflict_total",
		metric.WithDescription("Total number of commits rejected by the conflict check"),
	); err != nil {
		return nil, err
	}
	if t.violationTotal, err = meter.Int64Counter(
		"pop_transaction_access_violation_total",
		metric.WithDescription("Total number of transactions poisoned by an access violation"),
	); err != nil {
		return nil, err
	}
	if t.txDuration, err = meter.Float64Histogram(
		"pop_transaction_duration_seconds",
		metric.WithDescription("Duration of transactions in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if t.entriesRecorded, err = meter.Int64Histogram(
		"pop_transaction_entries",
		metric.WithDescription("Number of delta entries per transaction"),
	); err != nil {
		return nil, err
	}
	return t, nil
}

// startRun starts the span covering one process invocation.
func (t *telemetry) startRun(ctx context.Context, process, txID string, epoch int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pop.run_process",
		trace.WithAttributes(
			attribute.String("pop.process", process),
			attribute.String("pop.tx_id", txID),
			attribute.Int64("pop.epoch", epoch),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// finish records o on span and in the metric instruments. It does not end
// the span.
func (t *telemetry) finish(ctx context.Context, span trace.Span, o Outcome) {
	span.SetAttributes(
		attribute.String("pop.status", o.Status.String()),
		attribute.Int("pop.entries", len(o.Entries)),
	)
	if o.Err != nil {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, o.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if !t.enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("process", o.Process))
	switch o.Status {
	case txn.Committed:
		t.commitTotal.Add(ctx, 1, attrs)
	default:
		t.rollbackTotal.Add(ctx, 1, attrs)
		if poperr.IsConflict(o.Err) {
			t.conflictTotal.Add(ctx, 1, attrs)
		}
		if poperr.IsAccessViolation(o.Err) {
			t.violationTotal.Add(ctx, 1, attrs)
		}
	}
	t.txDuration.Record(ctx, o.Duration.Seconds(), attrs)
	t.entriesRecorded.Record(ctx, int64(len(o.Entries)), attrs)
}
