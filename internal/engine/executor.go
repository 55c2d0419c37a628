package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/pop/internal/contract"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/txn"
	"github.com/roach88/pop/internal/value"
)

type depthKey struct{}

func depthOf(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

type body func(ctx context.Context, g *txn.Guard) (any, error)

// Run executes the named process in a fresh transaction.
//
// On success the process's result is returned unchanged, except that any
// proxies in it are replaced by plain snapshots. Body errors, panics and
// contract violations roll back and come back as ProcessExecutionError, as
// does a commit refused for any reason other than a conflict (a canceled
// context, say); a commit conflict comes back as ConflictError. Either way real state is
// exactly what it was before the call.
func (e *Engine) Run(ctx context.Context, name string, args value.Map) (any, error) {
	proc, ok := e.registry.Lookup(name)
	if !ok {
		return nil, &poperr.UnknownProcessError{Process: name}
	}
	if args == nil {
		args = value.Map{}
	} else {
		args = value.Clone(args).(value.Map)
	}
	return e.execute(ctx, proc.Name, proc.Contract, e.strict, func(ctx context.Context, g *txn.Guard) (any, error) {
		return proc.Func(ctx, g, args)
	})
}

// Edit runs fn in a transaction whose contract covers every field. It is
// how the host program changes state outside any registered process; the
// changes still commit atomically and are conflict-checked.
func (e *Engine) Edit(ctx context.Context, fn func(ctx context.Context, g *txn.Guard) error) error {
	full := contract.Full(e.record.Schema())
	_, err := e.execute(ctx, EditProcess, full, false, func(ctx context.Context, g *txn.Guard) (any, error) {
		return nil, fn(ctx, g)
	})
	return err
}

func (e *Engine) execute(ctx context.Context, name string, c contract.Contract, strict bool, fn body) (any, error) {
	depth := depthOf(ctx) + 1
	if e.maxDepth > 0 && depth > e.maxDepth {
		return nil, &poperr.ProcessExecutionError{Process: name, Cause: NewDepthError(name, depth, e.maxDepth)}
	}
	ctx = context.WithValue(ctx, depthKey{}, depth)

	started := time.Now()
	epoch := e.clock.Next()
	tx := txn.Begin(e.record, e.ids.Generate(), epoch, name)

	ctx, span := e.tel.startRun(ctx, name, tx.ID(), epoch)
	defer span.End()

	log := e.logger.With(slog.String("tx", tx.ID()), slog.String("process", name))
	log.Debug("transaction opened", "epoch", epoch, "depth", depth)

	g := txn.NewGuard(tx, c, strict)
	result, err := invoke(ctx, name, g, fn)
	if err == nil {
		err = tx.Poisoned()
	}
	if err == nil {
		result, err = txn.Detach(result)
	}
	if err != nil {
		_ = tx.Rollback(err.Error())
		perr := &poperr.ProcessExecutionError{
			Process:    name,
			TxID:       tx.ID(),
			Cause:      err,
			Undeclared: strict && undeclared(c, err),
		}
		e.finish(ctx, span, log, tx, started, perr)
		return nil, perr
	}

	if err := tx.Commit(ctx); err != nil {
		if !poperr.IsConflict(err) {
			err = &poperr.ProcessExecutionError{Process: name, TxID: tx.ID(), Cause: err}
		}
		e.finish(ctx, span, log, tx, started, err)
		return nil, err
	}
	e.finish(ctx, span, log, tx, started, nil)
	return result, nil
}

// invoke calls fn and turns a panic into a RuntimeError.
func invoke(ctx context.Context, name string, g *txn.Guard, fn body) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = NewPanicError(name, r)
		}
	}()
	return fn(ctx, g)
}

// undeclared reports whether err is a body error whose code the contract
// does not list. Errors raised by the engine itself are never undeclared.
func undeclared(c contract.Contract, err error) bool {
	if poperr.CodeOf(err) != poperr.CodeUnknown {
		return false
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return false
	}
	code, ok := poperr.RaisedCode(err)
	return !ok || !c.Declares(code)
}

func (e *Engine) finish(ctx context.Context, span trace.Span, log *slog.Logger, tx *txn.Transaction, started time.Time, err error) {
	o := Outcome{
		TxID:     tx.ID(),
		Epoch:    tx.Epoch(),
		Process:  tx.Process(),
		Status:   tx.Status(),
		Err:      err,
		Entries:  tx.Entries(),
		Started:  started,
		Duration: time.Since(started),
	}
	if len(e.observers) > 0 {
		if hash, herr := value.StateHash(e.record.Snapshot()); herr == nil {
			o.StateHash = hash
		}
	}
	e.tel.finish(ctx, span, o)

	switch {
	case o.Status == txn.Committed:
		log.Info("transaction committed", "entries", len(o.Entries), "duration", o.Duration)
	case poperr.IsConflict(err):
		log.Warn("commit conflict", "entries", len(o.Entries), "error", err)
	default:
		log.Warn("transaction rolled back", "entries", len(o.Entries), "error", err)
	}

	octx := context.WithoutCancel(ctx)
	for _, obs := range e.observers {
		if oerr := obs.TransactionFinished(octx, o); oerr != nil {
			log.Warn("observer failed", "error", oerr)
		}
	}
}
