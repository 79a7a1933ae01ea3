package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an engine-internal fault detected during
// execution. These are NOT step failures - expected failures (bad
// expressions, invalid mutation targets, unknown primitives) become
// violation records and never surface as Go errors. A RuntimeError means
// the engine itself could not uphold its own guarantees, e.g. a ledger
// payload that cannot be canonically hashed.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Tick identifies the step attempt, when one is involved.
	Tick int64

	// Primitive names the operation involved, when one is.
	Primitive string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnhashablePayload indicates a ledger payload or final record
	// could not be canonically marshaled for hashing.
	ErrCodeUnhashablePayload RuntimeErrorCode = "UNHASHABLE_PAYLOAD"

	// ErrCodeBadPlan indicates the plan handed to Execute is structurally
	// unusable (nil, or a step the loader should have rejected).
	ErrCodeBadPlan RuntimeErrorCode = "BAD_PLAN"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Primitive != "" {
		return fmt.Sprintf("%s: %s (run=%s, tick=%d, primitive=%s)",
			e.Code, e.Message, e.RunID, e.Tick, e.Primitive)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnhashableError returns true if the error is an unhashable-payload
// error. Uses errors.As to handle wrapped errors.
func IsUnhashableError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnhashablePayload
	}
	return false
}

// newUnhashableError creates a RuntimeError for a hash failure.
func newUnhashableError(runID string, tick int64, primitive string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeUnhashablePayload,
		Message:   cause.Error(),
		RunID:     runID,
		Tick:      tick,
		Primitive: primitive,
	}
}
