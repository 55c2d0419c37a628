package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure the engine itself detects while
// running a process, as opposed to an error the process body returns.
//
// Runtime errors include:
//   - Depth exceeded: nested Run calls went deeper than the configured limit
//   - Panic: the process body panicked and the engine recovered it
//
// A RuntimeError is always the Cause of a ProcessExecutionError.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Process names the process that was running.
	Process string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDepthExceeded indicates nested runs exceeded the depth limit.
	ErrCodeDepthExceeded RuntimeErrorCode = "DEPTH_EXCEEDED"

	// ErrCodePanic indicates the process body panicked.
	ErrCodePanic RuntimeErrorCode = "PANIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Process != "" {
		return fmt.Sprintf("%s: %s (process=%s)", e.Code, e.Message, e.Process)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ReportCode implements poperr.Reporter.
func (e *RuntimeError) ReportCode() string { return string(e.Code) }

// IsDepthError returns true if the error is a nesting depth error.
// Uses errors.As to handle wrapped errors.
func IsDepthError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDepthExceeded
	}
	return false
}

// IsPanicError returns true if the error is a recovered panic.
func IsPanicError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodePanic
	}
	return false
}

// NewDepthError creates a RuntimeError for an over-deep nested run.
func NewDepthError(process string, depth, maxDepth int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("nested run depth exceeded (%d > %d)", depth, maxDepth),
		Process: process,
		Details: map[string]string{
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", maxDepth),
		},
	}
}

// NewPanicError creates a RuntimeError for a recovered panic.
func NewPanicError(process string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePanic,
		Message: fmt.Sprintf("process panicked: %v", recovered),
		Process: process,
	}
}
