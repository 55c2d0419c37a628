package engine

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/pop/internal/contract"
	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/state"
	"github.com/roach88/pop/internal/value"
)

// EditProcess is the process name recorded for Edit transactions.
const EditProcess = "<edit>"

// Engine owns one State Record, one process registry and the machinery to
// run processes against them.
//
// Thread-safety: all methods are safe for concurrent use once New returns.
type Engine struct {
	record   *state.Record
	registry *Registry
	clock    *Clock
	ids      IDGenerator
	logger   *slog.Logger

	strict    bool
	maxDepth  int
	observers []Observer

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsEnabled bool
	tel            *telemetry
}

// New creates an Engine over record.
//
// Options can be passed to configure the engine (e.g., WithStrictMode,
// WithObserver, WithIDGenerator).
func New(record *state.Record, opts ...Option) (*Engine, error) {
	if record == nil {
		return nil, fmt.Errorf("engine: nil state record")
	}
	e := &Engine{
		record:         record,
		registry:       newRegistry(),
		clock:          NewClock(),
		ids:            UUIDv7Generator{},
		logger:         slog.Default(),
		maxDepth:       DefaultMaxDepth,
		metricsEnabled: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	tel, err := newTelemetry(e.meterProvider, e.tracerProvider, e.metricsEnabled)
	if err != nil {
		return nil, fmt.Errorf("engine: init telemetry: %w", err)
	}
	e.tel = tel
	return e, nil
}

// Record returns the State Record the engine runs against.
func (e *Engine) Record() *state.Record { return e.record }

// Schema returns the State Record schema.
func (e *Engine) Schema() *path.Schema { return e.record.Schema() }

// Strict reports whether strict mode is on.
func (e *Engine) Strict() bool { return e.strict }

// Register adds a process. The contract paths are resolved now; a bad path
// or a duplicate name rejects the registration.
func (e *Engine) Register(name string, inputs, outputs []string, fn Func, opts ...ProcessOption) error {
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}
	c, err := contract.Compile(name, e.record.Schema(), inputs, outputs, reg.errors)
	if err != nil {
		return err
	}
	if err := e.registry.add(Process{Name: name, Description: reg.description, Contract: c, Func: fn}); err != nil {
		return err
	}
	e.logger.Debug("process registered", "process", name, "inputs", len(inputs), "outputs", len(outputs))
	return nil
}

// Lookup returns the process registered under name.
func (e *Engine) Lookup(name string) (Process, bool) {
	return e.registry.Lookup(name)
}

// Processes returns registered process names in sorted order.
func (e *Engine) Processes() []string {
	return e.registry.Names()
}

// Snapshot returns a detached copy of committed state.
func (e *Engine) Snapshot() value.Map {
	return e.record.Snapshot()
}

// Get returns a detached copy of the committed value at raw.
func (e *Engine) Get(raw string) (value.Value, error) {
	p, err := e.record.Schema().Resolve(raw)
	if err != nil {
		return nil, err
	}
	v, ok, err := e.record.Get(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: no value", raw)
	}
	return value.Clone(v), nil
}
