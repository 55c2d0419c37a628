package exprproc

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"

	"github.com/roach88/pop/internal/txn"
	"github.com/roach88/pop/internal/value"
)

// scope is the per-run evaluation environment.
type scope struct {
	g    *txn.Guard
	args map[string]any

	// err keeps the first Guard failure seen inside an expression so it
	// surfaces unwrapped rather than as an evaluator message.
	err error
}

func newScope(g *txn.Guard, args value.Map) *scope {
	plain, _ := value.ToAny(args).(map[string]any)
	if plain == nil {
		plain = map[string]any{}
	}
	return &scope{g: g, args: plain}
}

func (s *scope) env() map[string]any {
	return map[string]any{
		"args": s.args,
		"get":  s.get,
		"has":  s.has,
	}
}

func (s *scope) get(path string) (any, error) {
	v, err := s.g.Value(path)
	if err != nil {
		s.keep(err)
		return nil, err
	}
	return value.ToAny(v), nil
}

func (s *scope) has(path string) (bool, error) {
	ok, err := s.g.Has(path)
	if err != nil {
		s.keep(err)
	}
	return ok, err
}

func (s *scope) keep(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *scope) eval(e *expression) (any, error) {
	out, err := exprlang.Run(e.prog, s.env())
	if s.err != nil {
		err, s.err = s.err, nil
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", e.src, err)
	}
	return out, nil
}

func (s *scope) evalValue(e *expression) (value.Value, error) {
	out, err := s.eval(e)
	if err != nil {
		return nil, err
	}
	return value.FromAny(out)
}

func (s *scope) evalBool(e *expression) (bool, error) {
	out, err := s.eval(e)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q gave %T, want bool", e.src, out)
	}
	return b, nil
}
