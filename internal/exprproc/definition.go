package exprproc

import (
	"fmt"
	"slices"
)

// Op names what a step does.
type Op string

const (
	OpSet    Op = "set"
	OpAppend Op = "append"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
	OpAssert Op = "assert"
	OpRun    Op = "run"
)

var validOps = []Op{OpSet, OpAppend, OpDelete, OpClear, OpAssert, OpRun}

// DefaultAssertCode is raised by a failing assert step that names no code.
const DefaultAssertCode = "ASSERTION_FAILED"

// Step is one declarative instruction.
type Step struct {
	Op   Op     `json:"op" yaml:"op"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`

	// When, if set, must evaluate to a bool; false skips the step.
	When string `json:"when,omitempty" yaml:"when,omitempty"`

	// Assert only.
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Run only. Expr, when present, builds the args map; Path, when
	// present, receives the nested result.
	Process string `json:"process,omitempty" yaml:"process,omitempty"`
}

// Definition describes an expression process.
type Definition struct {
	Name        string
	Description string
	Inputs      []string
	Outputs     []string
	Errors      []string
	Steps       []Step
	Result      string
}

func (s Step) validate() error {
	if !slices.Contains(validOps, s.Op) {
		return fmt.Errorf("unknown op %q", s.Op)
	}
	switch s.Op {
	case OpSet, OpAppend:
		if s.Path == "" || s.Expr == "" {
			return fmt.Errorf("%s needs path and expr", s.Op)
		}
	case OpDelete, OpClear:
		if s.Path == "" {
			return fmt.Errorf("%s needs path", s.Op)
		}
		if s.Expr != "" {
			return fmt.Errorf("%s takes no expr", s.Op)
		}
	case OpAssert:
		if s.Expr == "" {
			return fmt.Errorf("assert needs expr")
		}
	case OpRun:
		if s.Process == "" {
			return fmt.Errorf("run needs process")
		}
	}
	return nil
}

func (s Step) assertCode() string {
	if s.Code == "" {
		return DefaultAssertCode
	}
	return s.Code
}
