// Package workflow loads and executes YAML workflows: ordered lists of
// process runs, optionally grouped into parallel blocks.
//
//	name: restock
//	steps:
//	  - reset
//	  - process: add_item
//	    args: {item: pear}
//	  - parallel:
//	      - process: add_item
//	        args: {item: kiwi}
//	      - count
//	  - process: add_item
//	    args: {item: plum}
//	    expect_error: FULL
//	expect:
//	  global.counter: 3
//
// Every step runs in its own transaction. Execution stops at the first
// step that fails unless the step names the error code it expects.
package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Workflow is a parsed workflow file.
type Workflow struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Steps       []Step         `yaml:"steps"`
	Expect      map[string]any `yaml:"expect,omitempty"`

	// ConflictRetries is how many times a step is retried after a commit
	// conflict before the conflict fails the workflow.
	ConflictRetries int `yaml:"conflict_retries,omitempty"`
}

// Step is a single process run or a parallel group.
type Step struct {
	Process     string
	Args        map[string]any
	ExpectError string
	Parallel    []Step
}

// IsParallel reports whether s is a parallel group.
func (s Step) IsParallel() bool { return len(s.Parallel) > 0 }

// Label names the step in results and errors.
func (s Step) Label() string {
	if s.IsParallel() {
		names := make([]string, len(s.Parallel))
		for i, m := range s.Parallel {
			names[i] = m.Label()
		}
		return "parallel(" + strings.Join(names, ", ") + ")"
	}
	return s.Process
}

var stepKeys = []string{"process", "args", "expect_error", "parallel"}

// UnmarshalYAML accepts a bare process name or a mapping.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		*s = Step{Process: name}
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: step must be a process name or a mapping", node.Line)
	}

	// node.Decode does not inherit KnownFields, so check keys here.
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !slices.Contains(stepKeys, key) {
			return fmt.Errorf("line %d: field %s not found in step", node.Content[i].Line, key)
		}
	}

	var raw struct {
		Process     string         `yaml:"process"`
		Args        map[string]any `yaml:"args"`
		ExpectError string         `yaml:"expect_error"`
		Parallel    []Step         `yaml:"parallel"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Step{Process: raw.Process, Args: raw.Args, ExpectError: raw.ExpectError, Parallel: raw.Parallel}
	return nil
}

// Load reads and parses a workflow file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes workflow YAML with strict field validation.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&wf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&wf); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}
	return &wf, nil
}

func validate(wf *Workflow) error {
	if wf.Name == "" {
		return errors.New("name is required")
	}
	if len(wf.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if wf.ConflictRetries < 0 {
		return errors.New("conflict_retries must not be negative")
	}
	for i, s := range wf.Steps {
		if err := validateStep(s, false); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func validateStep(s Step, nested bool) error {
	switch {
	case s.IsParallel():
		if nested {
			return errors.New("parallel groups cannot nest")
		}
		if s.Process != "" || s.Args != nil || s.ExpectError != "" {
			return errors.New("a parallel group takes no process, args or expect_error")
		}
		for i, m := range s.Parallel {
			if err := validateStep(m, true); err != nil {
				return fmt.Errorf("parallel[%d]: %w", i, err)
			}
		}
	case s.Process == "":
		return errors.New("process is required")
	}
	return nil
}
