package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pop/internal/compiler"
	"github.com/roach88/pop/internal/engine"
	"github.com/roach88/pop/internal/journal"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/testutil"
	"github.com/roach88/pop/internal/value"
)

// Harness drives one scenario against a fresh engine.
type Harness struct {
	engine  *engine.Engine
	journal *journal.Journal
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes engine and harness logs to logger. Logs are discarded
// by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each run compiles the spec into a fresh engine journaling into an
// in-memory database, so scenarios are isolated and deterministic.
// An error is returned only when the scenario could not be executed
// (bad spec, failed setup); unmet expectations are reported in Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}

	spec, err := compiler.Load(scenario.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to compile spec: %w", err)
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()
	h.journal = j

	h.engine, err = spec.NewEngine(
		engine.WithLogger(h.logger),
		engine.WithStrictMode(scenario.Strict),
		engine.WithIDGenerator(testutil.NewSequentialIDs("tx")),
		engine.WithObserver(j),
		engine.WithMetrics(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	if result.Trace, err = h.trace(ctx); err != nil {
		return nil, err
	}
	result.State = h.engine.Snapshot()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, h.engine) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSetup runs setup steps in order; the first failure aborts the run.
func (h *Harness) executeSetup(ctx context.Context, setup []Step) error {
	for i, step := range setup {
		args, err := toArgs(step.Args)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		if _, err := h.engine.Run(ctx, step.Process, args); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Process, err)
		}
		h.logger.Debug("setup step completed", "step", i, "process", step.Process)
	}
	return nil
}

// executeFlow runs every flow step and checks it against its expect clause.
// A mismatch is recorded and the flow continues.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		outcome := StepOutcome{Index: i, Process: step.Process}

		args, err := toArgs(step.Args)
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d]: %v", i, err))
			result.Steps = append(result.Steps, outcome)
			continue
		}

		out, err := h.engine.Run(ctx, step.Process, args)
		if err != nil {
			outcome.Code = Code(err)
		} else if out != nil {
			if outcome.Result, err = value.FromAny(out); err != nil {
				result.AddError(fmt.Sprintf("flow[%d]: result: %v", i, err))
			}
		}
		result.Steps = append(result.Steps, outcome)

		if msg := checkExpect(step.Expect, outcome); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] (%s): %s", i, step.Process, msg))
		}
		h.logger.Debug("flow step completed", "step", i, "process", step.Process, "code", outcome.Code)
	}
}

func checkExpect(expect *ExpectClause, got StepOutcome) string {
	wantCode := ""
	if expect != nil {
		wantCode = expect.Code
	}
	if got.Code != wantCode {
		if wantCode == "" {
			return fmt.Sprintf("expected success, got %s", got.Code)
		}
		if got.Code == "" {
			return fmt.Sprintf("expected %s, process succeeded", wantCode)
		}
		return fmt.Sprintf("expected %s, got %s", wantCode, got.Code)
	}
	if expect == nil || expect.Result == nil || got.Code != "" {
		return ""
	}

	want, err := value.FromAny(expect.Result)
	if err != nil {
		return fmt.Sprintf("expected result: %v", err)
	}
	if !value.Equal(want, got.Result) {
		return fmt.Sprintf("expected result %s, got %s", value.MustCanonical(want), render(got.Result))
	}
	return ""
}

// trace reads the journal back as trace events.
func (h *Harness) trace(ctx context.Context) ([]TraceEvent, error) {
	records, err := h.journal.List(ctx, journal.Filter{})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	events := make([]TraceEvent, 0, len(records))
	for _, r := range records {
		entries, err := h.journal.Entries(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		ev := TraceEvent{Epoch: r.Epoch, TxID: r.ID, Process: r.Process, Status: r.Status, Code: r.ErrorCode}
		for _, e := range entries {
			ev.Entries = append(ev.Entries, describeEntry(e))
		}
		events = append(events, ev)
	}
	return events, nil
}

func describeEntry(e journal.EntryRecord) string {
	switch e.Op {
	case "append":
		return fmt.Sprintf("append %s <- %s", e.Path, render(e.Elem))
	case "insert":
		return fmt.Sprintf("insert %s[%d] <- %s", e.Path, *e.Index, render(e.Elem))
	case "remove":
		return fmt.Sprintf("remove %s[%d]", e.Path, *e.Index)
	case "delete", "clear":
		return fmt.Sprintf("%s %s", e.Op, e.Path)
	default:
		return fmt.Sprintf("%s %s = %s", e.Op, e.Path, render(e.New))
	}
}

// Code returns the error code a failed step is matched against. It is the
// same code the journal records for the transaction.
func Code(err error) string {
	return poperr.ReportCode(err)
}

func toArgs(raw map[string]any) (value.Map, error) {
	if raw == nil {
		return value.Map{}, nil
	}
	v, err := value.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	return v.(value.Map), nil
}

func render(v value.Value) string {
	if v == nil {
		return "<none>"
	}
	return value.MustCanonical(v)
}
