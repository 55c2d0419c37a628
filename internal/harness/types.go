package harness

import "github.com/roach88/pop/internal/value"

// TraceEvent is one journaled transaction.
type TraceEvent struct {
	Epoch   int64    `json:"epoch"`
	TxID    string   `json:"tx"`
	Process string   `json:"process"`
	Status  string   `json:"status"`
	Code    string   `json:"code,omitempty"`
	Entries []string `json:"entries,omitempty"`
}

// StepOutcome records one flow step as the harness observed it.
type StepOutcome struct {
	Index   int         `json:"index"`
	Process string      `json:"process"`
	Code    string      `json:"code,omitempty"`
	Result  value.Value `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Steps []StepOutcome `json:"steps"`

	// Trace lists every transaction in epoch order, including setup and
	// nested runs.
	Trace []TraceEvent `json:"trace"`

	// Errors explains each failed expectation. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	State value.Map `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
