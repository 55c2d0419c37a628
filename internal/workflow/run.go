package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/value"
)

// Engine is what a workflow needs from the process engine.
type Engine interface {
	Run(ctx context.Context, name string, args value.Map) (any, error)
	Get(raw string) (value.Value, error)
}

// StepResult records one executed step.
type StepResult struct {
	Index     int          `json:"index"`
	Process   string       `json:"process,omitempty"`
	Output    value.Value  `json:"output,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"`
	Error     string       `json:"error,omitempty"`
	Attempts  int          `json:"attempts,omitempty"`
	Parallel  []StepResult `json:"parallel,omitempty"`
}

// Result is the outcome of Execute.
type Result struct {
	Name  string       `json:"name"`
	Steps []StepResult `json:"steps"`
}

// StepError reports the step a workflow stopped at.
type StepError struct {
	Index int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Label, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ExpectationError reports a final-state expectation that did not hold.
type ExpectationError struct {
	Path     string
	Expected value.Value
	Actual   value.Value
	Err      error
}

func (e *ExpectationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("expect %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("expect %s: want %s, got %s", e.Path, value.MustCanonical(e.Expected), value.MustCanonical(e.Actual))
}

func (e *ExpectationError) Unwrap() error { return e.Err }

// Option configures Execute.
type Option func(*runner)

// WithLogger sets the logger for step progress.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStepTimeout bounds each step. Zero means no timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(r *runner) {
		r.timeout = d
	}
}

type runner struct {
	engine  Engine
	wf      *Workflow
	logger  *slog.Logger
	timeout time.Duration
}

// Execute runs wf against e. The returned Result covers every step that
// ran, including the failing one.
func Execute(ctx context.Context, e Engine, wf *Workflow, opts ...Option) (*Result, error) {
	r := &runner{engine: e, wf: wf, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	log := r.logger.With(slog.String("workflow", wf.Name))

	res := &Result{Name: wf.Name, Steps: []StepResult{}}
	for i, s := range wf.Steps {
		var (
			sr  StepResult
			err error
		)
		if s.IsParallel() {
			sr, err = r.parallel(ctx, i, s)
		} else {
			sr, err = r.single(ctx, i, s)
		}
		res.Steps = append(res.Steps, sr)
		if err != nil {
			log.Warn("workflow step failed", "step", i, "label", s.Label(), "error", err)
			return res, &StepError{Index: i, Label: s.Label(), Err: err}
		}
		log.Debug("workflow step done", "step", i, "label", s.Label())
	}

	if err := r.checkExpect(); err != nil {
		return res, err
	}
	log.Info("workflow finished", "steps", len(wf.Steps))
	return res, nil
}

func (r *runner) single(ctx context.Context, index int, s Step) (StepResult, error) {
	sr := StepResult{Index: index, Process: s.Process}

	args, err := value.FromAny(s.Args)
	if err != nil {
		return sr, fmt.Errorf("args: %w", err)
	}
	argMap, _ := args.(value.Map)

	var out any
	for sr.Attempts = 1; ; sr.Attempts++ {
		out, err = r.run(ctx, s.Process, argMap)
		if err == nil || !poperr.IsConflict(err) || sr.Attempts > r.wf.ConflictRetries {
			break
		}
		r.logger.Debug("retrying after conflict", "process", s.Process, "attempt", sr.Attempts)
	}

	if err != nil {
		sr.Error = err.Error()
		sr.ErrorCode = poperr.ReportCode(err)
		if s.ExpectError != "" && sr.ErrorCode == s.ExpectError {
			return sr, nil
		}
		return sr, err
	}
	if s.ExpectError != "" {
		return sr, fmt.Errorf("expected error %s, process succeeded", s.ExpectError)
	}
	if out != nil {
		if sr.Output, err = value.FromAny(out); err != nil {
			return sr, fmt.Errorf("output: %w", err)
		}
	}
	return sr, nil
}

func (r *runner) run(ctx context.Context, name string, args value.Map) (any, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.engine.Run(ctx, name, args)
}

// parallel runs every member concurrently. Members commit independently;
// a failed member does not undo the others.
func (r *runner) parallel(ctx context.Context, index int, s Step) (StepResult, error) {
	sr := StepResult{Index: index, Parallel: make([]StepResult, len(s.Parallel))}

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range s.Parallel {
		g.Go(func() error {
			res, err := r.single(gctx, i, m)
			sr.Parallel[i] = res
			if err != nil {
				return fmt.Errorf("parallel[%d] (%s): %w", i, m.Label(), err)
			}
			return nil
		})
	}
	return sr, g.Wait()
}

func (r *runner) checkExpect() error {
	for _, raw := range slices.Sorted(maps.Keys(r.wf.Expect)) {
		want, err := value.FromAny(r.wf.Expect[raw])
		if err != nil {
			return &ExpectationError{Path: raw, Err: err}
		}
		got, err := r.engine.Get(raw)
		if err != nil {
			return &ExpectationError{Path: raw, Expected: want, Err: err}
		}
		if !value.Equal(want, got) {
			return &ExpectationError{Path: raw, Expected: want, Actual: got}
		}
	}
	return nil
}

