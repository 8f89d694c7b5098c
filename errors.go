package briefing

import (
	"errors"
	"fmt"
)

// Error type constants for classification. A stage failure is permanent for
// the session that hit it; a validation failure is rejected at the boundary
// without touching state; non-convergence means the graph exceeded its step
// limit without reaching a terminal node.
const (
	ErrorTypeStageFailure   = "stage_failure"
	ErrorTypeValidation     = "validation"
	ErrorTypeNonConvergence = "non_convergence"
)

// EngineError is a structured error with a classification type. It supports
// Go's error wrapping via Unwrap.
type EngineError struct {
	Type    string `json:"type"`
	Cause   string `json:"cause"`
	Wrapped error  `json:"-"`
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

func (e *EngineError) Unwrap() error {
	return e.Wrapped
}

// NewStageFailure wraps an error returned by a stage function.
func NewStageFailure(node string, err error) *EngineError {
	return &EngineError{
		Type:    ErrorTypeStageFailure,
		Cause:   fmt.Sprintf("stage %q failed: %v", node, err),
		Wrapped: err,
	}
}

// NewValidationError reports a client error rejected at the boundary.
func NewValidationError(format string, args ...any) *EngineError {
	return &EngineError{
		Type:  ErrorTypeValidation,
		Cause: fmt.Sprintf(format, args...),
	}
}

// NewNonConvergenceError reports that a run exceeded its step limit.
func NewNonConvergenceError(steps int) *EngineError {
	return &EngineError{
		Type:  ErrorTypeNonConvergence,
		Cause: fmt.Sprintf("graph did not converge within %d steps", steps),
	}
}

// IsValidationError reports whether err is a boundary validation failure.
func IsValidationError(err error) bool {
	var engineErr *EngineError
	return errors.As(err, &engineErr) && engineErr.Type == ErrorTypeValidation
}

// IsNonConvergence reports whether err is a step-limit failure.
func IsNonConvergence(err error) bool {
	var engineErr *EngineError
	return errors.As(err, &engineErr) && engineErr.Type == ErrorTypeNonConvergence
}

// ErrSessionNotFound is returned for operations on unknown session IDs.
var ErrSessionNotFound = NewValidationError("session not found")
