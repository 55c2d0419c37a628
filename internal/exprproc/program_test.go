package exprproc

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pop/internal/engine"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/state"
	"github.com/roach88/pop/internal/value"
)

func newEngine(t *testing.T, strict bool) *engine.Engine {
	t.Helper()
	r, err := state.FromSnapshot(value.Map{
		"global": value.Map{"counter": value.Int(0)},
		"domain": value.Map{
			"data":  value.List{value.String("seed")},
			"users": value.Map{"ann": value.Int(30)},
		},
	})
	require.NoError(t, err)
	e, err := engine.New(r,
		engine.WithStrictMode(strict),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithMetrics(false),
	)
	require.NoError(t, err)
	return e
}

func snapshot(t *testing.T, e *engine.Engine, raw string) value.Value {
	t.Helper()
	v, err := e.Get(raw)
	require.NoError(t, err)
	return v
}

func TestSetAndResult(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e, Definition{
		Name:    "increment",
		Inputs:  []string{"global.counter"},
		Outputs: []string{"global.counter"},
		Steps: []Step{
			{Op: OpSet, Path: "global.counter", Expr: `get("global.counter") + (args.by ?? 1)`},
		},
		Result: `get("global.counter")`,
	}))

	out, err := e.Run(context.Background(), "increment", value.Map{"by": value.Int(5)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), out)

	out, err = e.Run(context.Background(), "increment", nil)
	require.NoError(t, err)
	assert.Equal(t, value.Int(6), out)
}

func TestAppendDeleteClear(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e,
		Definition{
			Name:    "add",
			Outputs: []string{"domain.data"},
			Steps:   []Step{{Op: OpAppend, Path: "domain.data", Expr: "args.item"}},
		},
		Definition{
			Name:    "forget",
			Outputs: []string{"domain.users"},
			Steps:   []Step{{Op: OpDelete, Path: "domain.users.{args.name}"}},
		},
		Definition{
			Name:    "wipe",
			Outputs: []string{"domain.data"},
			Steps:   []Step{{Op: OpClear, Path: "domain.data"}},
		},
	))
	ctx := context.Background()

	_, err := e.Run(ctx, "add", value.Map{"item": value.String("x")})
	require.NoError(t, err)
	assert.Equal(t, value.List{value.String("seed"), value.String("x")}, snapshot(t, e, "domain.data"))

	_, err = e.Run(ctx, "forget", value.Map{"name": value.String("ann")})
	require.NoError(t, err)
	assert.Equal(t, value.Map{}, snapshot(t, e, "domain.users"))

	_, err = e.Run(ctx, "wipe", nil)
	require.NoError(t, err)
	assert.Equal(t, value.List{}, snapshot(t, e, "domain.data"))
}

func TestTemplatedPath(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e, Definition{
		Name:    "set_age",
		Outputs: []string{"domain.users"},
		Steps:   []Step{{Op: OpSet, Path: "domain.users.{args.name}", Expr: "args.age"}},
	}))

	_, err := e.Run(context.Background(), "set_age", value.Map{"name": value.String("bob"), "age": value.Int(41)})
	require.NoError(t, err)
	assert.Equal(t, value.Map{"ann": value.Int(30), "bob": value.Int(41)}, snapshot(t, e, "domain.users"))
}

func TestAssertRollsBack(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e, Definition{
		Name:    "bounded",
		Inputs:  []string{"global.counter"},
		Outputs: []string{"global.counter"},
		Errors:  []string{"TOO_BIG"},
		Steps: []Step{
			{Op: OpSet, Path: "global.counter", Expr: "args.n"},
			{Op: OpAssert, Expr: `get("global.counter") < 10`, Code: "TOO_BIG", Message: "counter must stay below 10"},
		},
	}))

	_, err := e.Run(context.Background(), "bounded", value.Map{"n": value.Int(50)})
	require.Error(t, err)
	assert.True(t, poperr.IsProcessExecution(err))

	code, ok := poperr.RaisedCode(err)
	require.True(t, ok)
	assert.Equal(t, "TOO_BIG", code)
	assert.Contains(t, err.Error(), "counter must stay below 10")

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, OpAssert, se.Op)

	assert.Equal(t, value.Int(0), snapshot(t, e, "global.counter"))
}

func TestDefaultAssertCode(t *testing.T) {
	e := newEngine(t, true)
	require.NoError(t, Register(e, Definition{
		Name:   "never",
		Inputs: []string{"global.counter"},
		Steps:  []Step{{Op: OpAssert, Expr: "false"}},
	}))

	_, err := e.Run(context.Background(), "never", nil)
	require.Error(t, err)
	code, _ := poperr.RaisedCode(err)
	assert.Equal(t, DefaultAssertCode, code)

	var pe *poperr.ProcessExecutionError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Undeclared, "ASSERTION_FAILED was not declared")
}

func TestWhenSkipsStep(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e, Definition{
		Name:    "maybe",
		Outputs: []string{"global.counter"},
		Steps:   []Step{{Op: OpSet, Path: "global.counter", Expr: "7", When: "args.enabled == true"}},
	}))
	ctx := context.Background()

	_, err := e.Run(ctx, "maybe", value.Map{"enabled": value.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(0), snapshot(t, e, "global.counter"))

	_, err = e.Run(ctx, "maybe", value.Map{"enabled": value.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), snapshot(t, e, "global.counter"))
}

func TestGetOutsideContractIsViolation(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e, Definition{
		Name:    "snoop",
		Outputs: []string{"global.counter"},
		Steps:   []Step{{Op: OpSet, Path: "global.counter", Expr: `len(get("domain.data"))`}},
	}))

	_, err := e.Run(context.Background(), "snoop", nil)
	require.Error(t, err)
	assert.True(t, poperr.IsAccessViolation(err), "got %v", err)
	assert.Equal(t, value.Int(0), snapshot(t, e, "global.counter"))
}

func TestHas(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e, Definition{
		Name:   "known",
		Inputs: []string{"domain.users"},
		Result: `has("domain.users." + args.name)`,
	}))
	ctx := context.Background()

	out, err := e.Run(ctx, "known", value.Map{"name": value.String("ann")})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), out)

	out, err = e.Run(ctx, "known", value.Map{"name": value.String("zed")})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), out)
}

func TestRunStepNests(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e,
		Definition{
			Name:    "add",
			Outputs: []string{"domain.data"},
			Steps:   []Step{{Op: OpAppend, Path: "domain.data", Expr: "args.item"}},
			Result:  "args.item",
		},
		Definition{
			Name:    "add_and_count",
			Inputs:  []string{"global.counter"},
			Outputs: []string{"global.counter"},
			Steps: []Step{
				{Op: OpRun, Process: "add", Expr: "{item: args.item}"},
				{Op: OpSet, Path: "global.counter", Expr: `get("global.counter") + 1`},
			},
		},
	))

	_, err := e.Run(context.Background(), "add_and_count", value.Map{"item": value.String("n")})
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), snapshot(t, e, "global.counter"))
	assert.Equal(t, value.List{value.String("seed"), value.String("n")}, snapshot(t, e, "domain.data"))
}

func TestFloatResultRejected(t *testing.T) {
	e := newEngine(t, false)
	require.NoError(t, Register(e, Definition{
		Name:    "halve",
		Outputs: []string{"global.counter"},
		Steps:   []Step{{Op: OpSet, Path: "global.counter", Expr: "3 / 2"}},
	}))

	_, err := e.Run(context.Background(), "halve", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are not allowed")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{"no name", Definition{}, "no name"},
		{"unknown op", Definition{Name: "p", Steps: []Step{{Op: "explode"}}}, `unknown op "explode"`},
		{"set without expr", Definition{Name: "p", Steps: []Step{{Op: OpSet, Path: "global.counter"}}}, "needs path and expr"},
		{"delete with expr", Definition{Name: "p", Steps: []Step{{Op: OpDelete, Path: "a.b", Expr: "1"}}}, "takes no expr"},
		{"bad syntax", Definition{Name: "p", Steps: []Step{{Op: OpAssert, Expr: "1 +"}}}, "compile"},
		{"unknown name", Definition{Name: "p", Steps: []Step{{Op: OpAssert, Expr: "nope > 1"}}}, "compile"},
		{"unbalanced path", Definition{Name: "p", Steps: []Step{{Op: OpDelete, Path: "a.{args.x"}}}, "unbalanced"},
		{"empty path expr", Definition{Name: "p", Steps: []Step{{Op: OpDelete, Path: "a.{}"}}}, "empty expression"},
		{"bad result", Definition{Name: "p", Result: ")"}, "result"},
		{"run without runner", Definition{Name: "p", Steps: []Step{{Op: OpRun, Process: "q"}}}, "without a runner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.def, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegisterRejectsBadContract(t *testing.T) {
	e := newEngine(t, false)
	err := Register(e, Definition{Name: "bad", Outputs: []string{"nowhere.field"}})
	require.Error(t, err)
	assert.True(t, poperr.IsInvalidPath(err))
}
