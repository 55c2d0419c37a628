package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/txn"
	"github.com/roach88/pop/internal/value"
)

func TestExecutor_PanicIsRecovered(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("panics", nil, []string{"global.counter"},
		func(_ context.Context, g *txn.Guard, _ value.Map) (any, error) {
			_ = g.Write("global.counter", 3)
			panic("kaboom")
		}))

	_, err := e.Run(context.Background(), "panics", nil)
	require.True(t, poperr.IsProcessExecution(err))
	assert.True(t, IsPanicError(err))
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, value.Int(0), counter(t, e))
}

func TestExecutor_ResultProxiesAreDetached(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("leak", nil, []string{"domain.data"},
		func(_ context.Context, g *txn.Guard, _ value.Map) (any, error) {
			list, err := g.List("domain.data")
			if err != nil {
				return nil, err
			}
			if err := list.Append("kept"); err != nil {
				return nil, err
			}
			return map[string]any{"list": list}, nil
		}))

	result, err := e.Run(context.Background(), "leak", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"list": value.List{value.String("kept")}}, result)
}

func TestExecutor_StashedProxyIsStale(t *testing.T) {
	e := newTestEngine(t)
	var stash *txn.ListProxy
	require.NoError(t, e.Register("stash", nil, []string{"domain.data"},
		func(_ context.Context, g *txn.Guard, _ value.Map) (any, error) {
			list, err := g.List("domain.data")
			stash = list
			return nil, err
		}))

	_, err := e.Run(context.Background(), "stash", nil)
	require.NoError(t, err)

	require.True(t, poperr.IsStale(stash.Append("zombie")))
	assert.Equal(t, value.List{}, data(t, e))
}

func TestExecutor_NestedRunIsIndependent(t *testing.T) {
	e := newTestEngine(t)
	registerIncrement(t, e)
	require.NoError(t, e.Register("outer", nil, []string{"domain.data"},
		func(ctx context.Context, g *txn.Guard, _ value.Map) (any, error) {
			if _, err := e.Run(ctx, "increment", nil); err != nil {
				return nil, err
			}
			list, err := g.List("domain.data")
			if err != nil {
				return nil, err
			}
			_ = list.Append("outer")
			return nil, errors.New("outer fails")
		}))

	_, err := e.Run(context.Background(), "outer", nil)
	require.True(t, poperr.IsProcessExecution(err))

	assert.Equal(t, value.Int(1), counter(t, e), "inner run committed on its own")
	assert.Equal(t, value.List{}, data(t, e), "outer rolled back")
}

func TestExecutor_DepthLimit(t *testing.T) {
	e := newTestEngine(t, WithMaxDepth(3))
	calls := 0
	require.NoError(t, e.Register("recurse", nil, nil,
		func(ctx context.Context, _ *txn.Guard, _ value.Map) (any, error) {
			calls++
			return e.Run(ctx, "recurse", nil)
		}))

	_, err := e.Run(context.Background(), "recurse", nil)
	require.Error(t, err)
	assert.True(t, IsDepthError(err))
	assert.Equal(t, 3, calls)
}

func TestExecutor_StrictMode(t *testing.T) {
	e := newTestEngine(t, WithStrictMode(true))
	assert.True(t, e.Strict())

	require.NoError(t, e.Register("blind-write", nil, []string{"global.counter"},
		func(_ context.Context, g *txn.Guard, _ value.Map) (any, error) {
			n, err := g.Int("global.counter")
			if err != nil {
				return nil, err
			}
			return nil, g.Write("global.counter", n+1)
		}))

	_, err := e.Run(context.Background(), "blind-write", nil)
	var av *poperr.AccessViolationError
	require.ErrorAs(t, err, &av)
	assert.Equal(t, poperr.AccessRead, av.Mode)

	var pe *poperr.ProcessExecutionError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pe.Undeclared, "engine errors are never undeclared")
}

func TestExecutor_UndeclaredErrors(t *testing.T) {
	raise := func(code string) Func {
		return func(context.Context, *txn.Guard, value.Map) (any, error) {
			return nil, poperr.Raise(code, "raised")
		}
	}

	tests := []struct {
		name       string
		strict     bool
		code       string
		undeclared bool
	}{
		{"declared code", true, "E_LIMIT", false},
		{"undeclared code", true, "E_OTHER", true},
		{"not strict", false, "E_OTHER", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, WithStrictMode(tt.strict))
			require.NoError(t, e.Register("p", nil, nil, raise(tt.code), WithErrors("E_LIMIT")))

			_, err := e.Run(context.Background(), "p", nil)
			var pe *poperr.ProcessExecutionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.undeclared, pe.Undeclared)

			code, ok := poperr.RaisedCode(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestExecutor_CanceledContextRollsBack(t *testing.T) {
	e := newTestEngine(t)
	registerIncrement(t, e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, "increment", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, poperr.IsProcessExecution(err))
	assert.False(t, poperr.IsConflict(err))
	assert.Equal(t, value.Int(0), counter(t, e))
}

func TestExecutor_ExpiredDeadlineIsProcessExecution(t *testing.T) {
	e := newTestEngine(t)
	registerIncrement(t, e)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := e.Run(ctx, "increment", nil)
	var pe *poperr.ProcessExecutionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "increment", pe.Process)
	assert.NotEmpty(t, pe.TxID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, poperr.ReportTimeout, poperr.ReportCode(err))
	assert.Equal(t, value.Int(0), counter(t, e))
}

func TestExecutor_ArgsAreCopied(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("mutate-args", nil, nil,
		func(_ context.Context, _ *txn.Guard, args value.Map) (any, error) {
			args["k"] = value.String("changed")
			return nil, nil
		}))

	args := value.Map{"k": value.String("orig")}
	_, err := e.Run(context.Background(), "mutate-args", args)
	require.NoError(t, err)
	assert.Equal(t, value.String("orig"), args["k"])
}

func TestExecutor_ObserverSeesOutcomes(t *testing.T) {
	var outcomes []Outcome
	e := newTestEngine(t,
		WithIDGenerator(NewFixedGenerator("tx-1", "tx-2")),
		WithObserver(ObserverFunc(func(_ context.Context, o Outcome) error {
			outcomes = append(outcomes, o)
			return errors.New("observer errors are only logged")
		})),
	)
	registerIncrement(t, e)
	require.NoError(t, e.Register("fail", nil, nil,
		func(context.Context, *txn.Guard, value.Map) (any, error) { return nil, errors.New("no") }))

	_, err := e.Run(context.Background(), "increment", nil)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), "fail", nil)
	require.Error(t, err)

	require.Len(t, outcomes, 2)
	assert.Equal(t, "tx-1", outcomes[0].TxID)
	assert.Equal(t, txn.Committed, outcomes[0].Status)
	assert.Len(t, outcomes[0].Entries, 1)
	assert.NotEmpty(t, outcomes[0].StateHash)
	assert.Equal(t, int64(1), outcomes[0].Epoch)

	assert.Equal(t, "tx-2", outcomes[1].TxID)
	assert.Equal(t, txn.RolledBack, outcomes[1].Status)
	assert.True(t, poperr.IsProcessExecution(outcomes[1].Err))
	assert.Equal(t, outcomes[0].StateHash, outcomes[1].StateHash, "rollback leaves state unchanged")
}

func TestExecutor_ClockOption(t *testing.T) {
	var epochs []int64
	e := newTestEngine(t,
		WithClock(NewClockAt(41)),
		WithObserver(ObserverFunc(func(_ context.Context, o Outcome) error {
			epochs = append(epochs, o.Epoch)
			return nil
		})),
	)
	registerIncrement(t, e)

	_, err := e.Run(context.Background(), "increment", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, epochs)
}
