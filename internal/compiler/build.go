package compiler

import (
	"fmt"

	"github.com/roach88/pop/internal/engine"
	"github.com/roach88/pop/internal/exprproc"
	"github.com/roach88/pop/internal/state"
)

// NewEngine builds a State Record from the spec and an engine with every
// declared process registered.
func (s *Spec) NewEngine(opts ...engine.Option) (*engine.Engine, error) {
	record, err := state.New(s.Schema, s.Initial)
	if err != nil {
		return nil, fmt.Errorf("build state: %w", err)
	}
	e, err := engine.New(record, opts...)
	if err != nil {
		return nil, err
	}
	if err := exprproc.Register(e, s.Processes...); err != nil {
		return nil, err
	}
	return e, nil
}
