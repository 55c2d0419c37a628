package exprproc

import (
	"fmt"

	"github.com/roach88/pop/internal/engine"
)

// Register compiles each definition and registers it on e. It stops at the
// first definition that fails to compile or register.
func Register(e *engine.Engine, defs ...Definition) error {
	for _, def := range defs {
		prog, err := Compile(def, e)
		if err != nil {
			return err
		}
		opts := []engine.ProcessOption{engine.WithErrors(def.Errors...)}
		if def.Description != "" {
			opts = append(opts, engine.WithDescription(def.Description))
		}
		if err := e.Register(def.Name, def.Inputs, def.Outputs, prog.Func(), opts...); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}
