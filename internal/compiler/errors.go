package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a spec problem tied to the field that caused it and,
// when CUE knows it, a source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
}

// formatCUEError turns the first error CUE reports into a CompileError
// carrying its position. Errors CUE cannot place are returned unchanged.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range errors.Errors(err) {
		if pos := errors.Positions(e); len(pos) > 0 {
			return &CompileError{Field: "cue", Message: e.Error(), Pos: pos[0]}
		}
	}
	return err
}
