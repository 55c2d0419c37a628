package compiler

import (
	"context"
	"errors"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/pop/internal/value"
)

// toValue converts a concrete CUE value into a state Value.
func toValue(v cue.Value, where string) (value.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return value.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := value.List{}
		for i := 0; iter.Next(); i++ {
			elem, err := toValue(iter.Value(), fmt.Sprintf("%s[%d]", where, i))
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := value.Map{}
		for iter.Next() {
			elem, err := toValue(iter.Value(), where+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = elem
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: where, Message: "float values are forbidden - use int instead", Pos: v.Pos()}
	default:
		return nil, &CompileError{Field: where, Message: "value must be concrete", Pos: v.Pos()}
	}
}

var errNoRunner = errors.New("processes are not runnable at compile time")

// noRunner satisfies exprproc.Runner while a spec is only being checked.
type noRunner struct{}

func (noRunner) Run(context.Context, string, value.Map) (any, error) {
	return nil, errNoRunner
}
