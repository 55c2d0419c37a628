// Package poperr defines the caller-visible error taxonomy of the process engine.
//
// Every error carries a machine-readable Code. Errors are matched with
// errors.As (or the Is* helpers) so wrapping with fmt.Errorf("...: %w") is
// always safe.
package poperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/pop/internal/value"
)

// Code categorizes engine errors.
type Code string

const (
	// CodeInvalidPath indicates a path that does not resolve against the schema.
	CodeInvalidPath Code = "INVALID_PATH"

	// CodeAccessViolation indicates an access outside the process contract.
	CodeAccessViolation Code = "ACCESS_VIOLATION"

	// CodeConflict indicates real state moved under a pending entry.
	CodeConflict Code = "CONFLICT"

	// CodeStaleReference indicates use of a guard or proxy after its transaction ended.
	CodeStaleReference Code = "STALE_REFERENCE"

	// CodeProcessExecution indicates the process body failed and was rolled back.
	CodeProcessExecution Code = "PROCESS_EXECUTION"

	// CodeRegistration indicates a rejected process registration.
	CodeRegistration Code = "REGISTRATION"

	// CodeUnknownProcess indicates a run of a name nobody registered.
	CodeUnknownProcess Code = "UNKNOWN_PROCESS"

	// CodeUnknown is reported for errors outside this taxonomy.
	CodeUnknown Code = "UNKNOWN"
)

// Coded is implemented by every error in this package.
type Coded interface {
	error
	Code() Code
}

// AccessMode distinguishes read from write violations.
type AccessMode string

const (
	AccessRead  AccessMode = "read"
	AccessWrite AccessMode = "write"
)

// InvalidPathError reports a path that fails to parse or resolve.
type InvalidPathError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidPathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid path %q: %s: %v", CodeInvalidPath, e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: invalid path %q: %s", CodeInvalidPath, e.Path, e.Reason)
}

func (e *InvalidPathError) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *InvalidPathError) Code() Code { return CodeInvalidPath }

// AccessViolationError reports a read or write outside the active contract.
type AccessViolationError struct {
	Process string
	Path    string
	Mode    AccessMode
}

func (e *AccessViolationError) Error() string {
	if e.Process != "" {
		return fmt.Sprintf("%s: %s of %q not permitted by contract (process=%s)", CodeAccessViolation, e.Mode, e.Path, e.Process)
	}
	return fmt.Sprintf("%s: %s of %q not permitted by contract", CodeAccessViolation, e.Mode, e.Path)
}

// Code implements Coded.
func (e *AccessViolationError) Code() Code { return CodeAccessViolation }

// ConflictError reports that, at commit time, real state at Path no longer
// matched the prior value recorded by entry Seq. Real state has already been
// restored when this error is returned.
type ConflictError struct {
	TxID     string
	Process  string
	Path     string
	Seq      int
	Expected value.Value
	Actual   value.Value
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %q changed since entry %d was recorded (expected %s, found %s, tx=%s)",
		CodeConflict, e.Path, e.Seq, render(e.Expected), render(e.Actual), e.TxID)
}

// Code implements Coded.
func (e *ConflictError) Code() Code { return CodeConflict }

// StaleReferenceError reports an operation on a guard or proxy whose
// transaction already reached a terminal state.
type StaleReferenceError struct {
	TxID  string
	Path  string
	State string
}

func (e *StaleReferenceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: reference to %q outlived transaction %s (%s)", CodeStaleReference, e.Path, e.TxID, e.State)
	}
	return fmt.Sprintf("%s: guard outlived transaction %s (%s)", CodeStaleReference, e.TxID, e.State)
}

// Code implements Coded.
func (e *StaleReferenceError) Code() Code { return CodeStaleReference }

// ProcessExecutionError wraps any failure raised while a process body ran.
// The transaction was rolled back before this error was returned.
type ProcessExecutionError struct {
	Process string
	TxID    string
	Cause   error

	// Undeclared is set in strict mode when the cause's code was not listed
	// in the contract's declared errors.
	Undeclared bool
}

func (e *ProcessExecutionError) Error() string {
	if e.Undeclared {
		return fmt.Sprintf("%s: process %q raised undeclared error (tx=%s): %v", CodeProcessExecution, e.Process, e.TxID, e.Cause)
	}
	return fmt.Sprintf("%s: process %q failed (tx=%s): %v", CodeProcessExecution, e.Process, e.TxID, e.Cause)
}

func (e *ProcessExecutionError) Unwrap() error { return e.Cause }

// Code implements Coded.
func (e *ProcessExecutionError) Code() Code { return CodeProcessExecution }

// RegistrationError reports a rejected process registration.
type RegistrationError struct {
	Process string
	Message string
	Err     error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: process %q: %s: %v", CodeRegistration, e.Process, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: process %q: %s", CodeRegistration, e.Process, e.Message)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *RegistrationError) Code() Code { return CodeRegistration }

// UnknownProcessError reports a run of an unregistered process name.
type UnknownProcessError struct {
	Process string
}

func (e *UnknownProcessError) Error() string {
	return fmt.Sprintf("%s: process %q not found in registry", CodeUnknownProcess, e.Process)
}

// Code implements Coded.
func (e *UnknownProcessError) Code() Code { return CodeUnknownProcess }

// ProcessError is a failure a process body raises on purpose, tagged with
// an application error code. Contracts list the codes a process may raise.
type ProcessError struct {
	ErrCode string
	Message string
}

// Raise returns a ProcessError for code.
func Raise(code, format string, args ...any) *ProcessError {
	return &ProcessError{ErrCode: code, Message: fmt.Sprintf(format, args...)}
}

func (e *ProcessError) Error() string {
	if e.Message == "" {
		return e.ErrCode
	}
	return e.ErrCode + ": " + e.Message
}

// RaisedCode returns the application code of the first ProcessError in
// err's chain.
func RaisedCode(err error) (string, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.ErrCode, true
	}
	return "", false
}

// Timeout and cancellation codes reported by ReportCode.
const (
	ReportTimeout   = "TIMEOUT"
	ReportCancelled = "CANCELLED"
)

// Reporter is implemented by errors outside this taxonomy that carry
// their own machine-readable code, such as the engine's runtime errors.
type Reporter interface {
	ReportCode() string
}

// ReportCode picks the most specific code in err's chain. An application
// code raised by the process wins, then a Reporter's code, then timeout or
// cancellation, then the taxonomy code. Journal rows, workflow results and
// harness traces all label failures with it.
func ReportCode(err error) string {
	if code, ok := RaisedCode(err); ok {
		return code
	}
	var r Reporter
	if errors.As(err, &r) {
		return r.ReportCode()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReportTimeout
	case errors.Is(err, context.Canceled):
		return ReportCancelled
	}
	return string(CodeOf(err))
}

// CodeOf returns the code of the first Coded error in err's chain.
func CodeOf(err error) Code {
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeUnknown
}

// IsInvalidPath returns true if err wraps an InvalidPathError.
func IsInvalidPath(err error) bool {
	var e *InvalidPathError
	return errors.As(err, &e)
}

// IsAccessViolation returns true if err wraps an AccessViolationError.
func IsAccessViolation(err error) bool {
	var e *AccessViolationError
	return errors.As(err, &e)
}

// IsConflict returns true if err wraps a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// IsStale returns true if err wraps a StaleReferenceError.
func IsStale(err error) bool {
	var e *StaleReferenceError
	return errors.As(err, &e)
}

// IsProcessExecution returns true if err wraps a ProcessExecutionError.
func IsProcessExecution(err error) bool {
	var e *ProcessExecutionError
	return errors.As(err, &e)
}

func render(v value.Value) string {
	if v == nil {
		return "<absent>"
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	if len(data) > 64 {
		return string(data[:61]) + "..."
	}
	return string(data)
}
