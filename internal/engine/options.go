package engine

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxDepth is the default limit on nested Run calls.
// It stops a process that (directly or not) runs itself from recursing
// without bound.
const DefaultMaxDepth = 32

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithStrictMode makes reads require coverage by a contract's inputs, and
// reports body errors whose code the contract does not declare.
func WithStrictMode(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver adds an observer notified after every transaction.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithIDGenerator sets the transaction ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.ids = gen
		}
	}
}

// WithClock sets the epoch clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithMaxDepth sets the nested Run limit.
//
// Default: 32 (DefaultMaxDepth).
// Use WithMaxDepth(1) to forbid nested runs entirely.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
// Default: the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		e.meterProvider = mp
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
// Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracerProvider = tp
	}
}

// WithMetrics enables or disables metric recording. Default: enabled.
func WithMetrics(enabled bool) Option {
	return func(e *Engine) {
		e.metricsEnabled = enabled
	}
}
