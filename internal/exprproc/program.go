package exprproc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/roach88/pop/internal/engine"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/txn"
	"github.com/roach88/pop/internal/value"
)

// Runner starts nested processes. *engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context, name string, args value.Map) (any, error)
}

// StepError reports the step a body failed at.
type StepError struct {
	Process string
	Index   int
	Op      Op
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("process %s step %d (%s): %v", e.Process, e.Index, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Program is a compiled Definition.
type Program struct {
	def    Definition
	runner Runner
	steps  []compiledStep
	result *expression
}

type compiledStep struct {
	Step
	path *template
	expr *expression
	when *expression
}

// expression is a compiled program and the source it came from.
type expression struct {
	src  string
	prog *exprvm.Program
}

// Compile checks def and compiles every expression in it. runner is only
// needed when def has run steps.
func Compile(def Definition, runner Runner) (*Program, error) {
	if def.Name == "" {
		return nil, errors.New("exprproc: definition has no name")
	}
	p := &Program{def: def, runner: runner}
	for i, s := range def.Steps {
		cs, err := compileStep(s)
		if err != nil {
			return nil, fmt.Errorf("process %s step %d: %w", def.Name, i, err)
		}
		if s.Op == OpRun && runner == nil {
			return nil, fmt.Errorf("process %s step %d: run step without a runner", def.Name, i)
		}
		p.steps = append(p.steps, cs)
	}
	if def.Result != "" {
		prog, err := compile(def.Result)
		if err != nil {
			return nil, fmt.Errorf("process %s result: %w", def.Name, err)
		}
		p.result = prog
	}
	return p, nil
}

func compileStep(s Step) (compiledStep, error) {
	if err := s.validate(); err != nil {
		return compiledStep{}, err
	}
	cs := compiledStep{Step: s}
	var err error
	if s.Path != "" {
		if cs.path, err = parseTemplate(s.Path); err != nil {
			return compiledStep{}, err
		}
	}
	if s.Expr != "" {
		if cs.expr, err = compile(s.Expr); err != nil {
			return compiledStep{}, err
		}
	}
	if s.When != "" {
		if cs.when, err = compile(s.When); err != nil {
			return compiledStep{}, fmt.Errorf("when: %w", err)
		}
	}
	return cs, nil
}

// Definition returns the definition p was compiled from.
func (p *Program) Definition() Definition { return p.def }

// Func returns p as a process body.
func (p *Program) Func() engine.Func {
	return func(ctx context.Context, g *txn.Guard, args value.Map) (any, error) {
		return p.exec(ctx, g, args)
	}
}

func (p *Program) exec(ctx context.Context, g *txn.Guard, args value.Map) (any, error) {
	sc := newScope(g, args)
	for i, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.step(ctx, sc, s); err != nil {
			return nil, &StepError{Process: p.def.Name, Index: i, Op: s.Op, Err: err}
		}
	}
	if p.result == nil {
		return nil, nil
	}
	out, err := sc.eval(p.result)
	if err != nil {
		return nil, fmt.Errorf("process %s result: %w", p.def.Name, err)
	}
	return value.FromAny(out)
}

func (p *Program) step(ctx context.Context, sc *scope, s compiledStep) error {
	if s.when != nil {
		ok, err := sc.evalBool(s.when)
		if err != nil {
			return fmt.Errorf("when: %w", err)
		}
		if !ok {
			return nil
		}
	}

	var target string
	if s.path != nil {
		var err error
		if target, err = s.path.render(sc); err != nil {
			return err
		}
	}

	switch s.Op {
	case OpSet:
		v, err := sc.evalValue(s.expr)
		if err != nil {
			return err
		}
		return sc.g.Write(target, v)
	case OpAppend:
		v, err := sc.evalValue(s.expr)
		if err != nil {
			return err
		}
		l, err := sc.g.List(target)
		if err != nil {
			return err
		}
		return l.Append(v)
	case OpDelete:
		return sc.g.Delete(target)
	case OpClear:
		return clearAt(sc.g, target)
	case OpAssert:
		ok, err := sc.evalBool(s.expr)
		if err != nil {
			return err
		}
		if !ok {
			msg := s.Message
			if msg == "" {
				msg = "assertion failed: " + s.Expr
			}
			return poperr.Raise(s.assertCode(), "%s", msg)
		}
		return nil
	case OpRun:
		return p.run(ctx, sc, s, target)
	}
	return fmt.Errorf("unknown op %q", s.Op)
}

func (p *Program) run(ctx context.Context, sc *scope, s compiledStep, target string) error {
	args := value.Map{}
	if s.expr != nil {
		v, err := sc.evalValue(s.expr)
		if err != nil {
			return err
		}
		m, ok := v.(value.Map)
		if !ok {
			return fmt.Errorf("run args must be a map, got %s", value.KindOf(v))
		}
		args = m
	}
	out, err := p.runner.Run(ctx, s.Process, args)
	if err != nil {
		return err
	}
	if target == "" {
		return nil
	}
	return sc.g.Write(target, out)
}

func clearAt(g *txn.Guard, target string) error {
	got, err := g.Read(target)
	if err != nil {
		return err
	}
	switch c := got.(type) {
	case *txn.ListProxy:
		return c.Clear()
	case *txn.MapProxy:
		return c.Clear()
	default:
		return fmt.Errorf("%s: %w: clear needs a list or map", target, txn.ErrKindMismatch)
	}
}

func compile(src string) (*expression, error) {
	prog, err := exprlang.Compile(src, exprlang.Env(shape()))
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &expression{src: src, prog: prog}, nil
}

// shape is the compile-time environment. Its keys and types must match
// what scope.env provides at run time.
func shape() map[string]any {
	return map[string]any{
		"args": map[string]any{},
		"get":  func(string) (any, error) { return nil, nil },
		"has":  func(string) (bool, error) { return false, nil },
	}
}

// template is a path with embedded {expr} parts.
type template struct {
	raw   string
	lits  []string
	exprs []*expression
}

func parseTemplate(raw string) (*template, error) {
	t := &template{raw: raw}
	rest := raw
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("path %q: unbalanced '}'", raw)
			}
			t.lits = append(t.lits, rest)
			return t, nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("path %q: unbalanced '{'", raw)
		}
		src := rest[open+1 : open+end]
		if strings.TrimSpace(src) == "" {
			return nil, fmt.Errorf("path %q: empty expression", raw)
		}
		prog, err := compile(src)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", raw, err)
		}
		t.lits = append(t.lits, rest[:open])
		t.exprs = append(t.exprs, prog)
		rest = rest[open+end+1:]
	}
}

func (t *template) render(sc *scope) (string, error) {
	if len(t.exprs) == 0 {
		return t.raw, nil
	}
	var b strings.Builder
	for i, lit := range t.lits {
		b.WriteString(lit)
		if i >= len(t.exprs) {
			continue
		}
		out, err := sc.eval(t.exprs[i])
		if err != nil {
			return "", err
		}
		switch v := out.(type) {
		case string:
			b.WriteString(v)
		case int, int64:
			fmt.Fprint(&b, v)
		default:
			return "", fmt.Errorf("path %q: part %d is %T, want string or int", t.raw, i, out)
		}
	}
	return b.String(), nil
}
