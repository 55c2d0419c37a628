package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/pop/internal/value"
)

// StateReader reads committed state by path.
type StateReader interface {
	Get(raw string) (value.Value, error)
}

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			line := fmt.Sprintf("  [%d] %s %s %s", ev.Epoch, ev.TxID, ev.Process, ev.Status)
			if ev.Code != "" {
				line += " " + ev.Code
			}
			fmt.Fprintln(&buf, line)
		}
	}
	return buf.String()
}

// matches reports whether ev satisfies the process/status/code filter of a.
func matches(ev TraceEvent, a Assertion) bool {
	if ev.Process != a.Process {
		return false
	}
	if a.Status != "" && ev.Status != a.Status {
		return false
	}
	return a.Code == "" || ev.Code == a.Code
}

func describe(a Assertion) string {
	s := a.Process
	if a.Status != "" {
		s += " " + a.Status
	}
	if a.Code != "" {
		s += " with code " + a.Code
	}
	return s
}

// assertTraceContains checks that some transaction matches the assertion.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matches(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first transaction of each listed process
// appears in the given order. Other transactions may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Process]; !seen {
			positions[ev.Process] = i
		}
	}

	for _, p := range a.Processes {
		if _, ok := positions[p]; !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all processes present: %v", a.Processes),
				Actual:   fmt.Sprintf("missing process: %s", p),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Processes); i++ {
		prev, curr := a.Processes[i-1], a.Processes[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("processes in order: %v", a.Processes),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev]+1, curr, positions[curr]+1),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of matching transactions.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matches(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d transactions of %s", a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d transactions", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares committed state at a path.
func assertFinalState(state StateReader, a Assertion) error {
	want, err := value.FromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state %s: expected value: %w", a.Path, err)
	}
	got, err := state.Get(a.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Path, value.MustCanonical(want)),
			Actual:   err.Error(),
		}
	}
	if !value.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Path, value.MustCanonical(want)),
			Actual:   fmt.Sprintf("%s = %s", a.Path, render(got)),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, state StateReader) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			if state == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires state", i)
			} else {
				err = assertFinalState(state, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
