package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Spec is the CUE spec file or package directory to compile.
	Spec string `yaml:"spec"`

	// Strict runs the engine in strict mode.
	Strict bool `yaml:"strict,omitempty"`

	// Setup steps establish state before the flow and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	Flow       []FlowStep  `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single process run.
type Step struct {
	Process string         `yaml:"process"`
	Args    map[string]any `yaml:"args,omitempty"`
}

// FlowStep is a process run with an optional expected outcome.
// A step without expect must succeed.
type FlowStep struct {
	Process string         `yaml:"process"`
	Args    map[string]any `yaml:"args,omitempty"`
	Expect  *ExpectClause  `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Code is the expected error code; empty means success.
	Code string `yaml:"code,omitempty"`

	// Result, if set, must equal the process result. Only checked on success.
	Result any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// trace_contains, trace_count
	Process string `yaml:"process,omitempty"`
	Status  string `yaml:"status,omitempty"`
	Code    string `yaml:"code,omitempty"`
	Count   int    `yaml:"count,omitempty"`

	// trace_order
	Processes []string `yaml:"processes,omitempty"`

	// final_state
	Path   string `yaml:"path,omitempty"`
	Expect any    `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

var validStatuses = []string{"", "committed", "rolled_back"}

// LoadScenario reads and parses a scenario YAML file. The spec path is
// resolved relative to the file's directory.
// Unknown fields (typos) and missing required fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) {
		scenario.Spec = filepath.Join(filepath.Dir(path), scenario.Spec)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	if _, err := os.Stat(s.Spec); err != nil {
		return fmt.Errorf("spec not found: %s", s.Spec)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Process == "" {
			return fmt.Errorf("setup[%d]: process is required", i)
		}
	}
	for i, step := range s.Flow {
		if step.Process == "" {
			return fmt.Errorf("flow[%d]: process is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if !slices.Contains(validStatuses, a.Status) {
		return fmt.Errorf("assertions[%d]: status must be committed or rolled_back, got %q", index, a.Status)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Process == "" {
			return fmt.Errorf("assertions[%d]: process is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Processes) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order needs at least two processes", index)
		}
	case AssertTraceCount:
		if a.Process == "" {
			return fmt.Errorf("assertions[%d]: process is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
