// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")

	// Configuration errors (fatal at startup)
	ErrConfig = errors.New("configuration error")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Persistence errors (recoverable - logged and swallowed by the engine)
	ErrPersistence = errors.New("persistence error")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "rule", "engagement", "signal"
	Op      string // Operation that failed, e.g., "Evaluate", "RecordShown"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Rule catalog errors
var (
	ErrDuplicateRuleID = NewDomainError("rule", "LoadCatalog", ErrConfig, "duplicate rule id in catalog")
	ErrRuleNotFound    = NewDomainError("rule", "Find", ErrNotFound, "rule not found")
	ErrInvalidRule     = NewDomainError("rule", "Validate", ErrValidation, "invalid rule definition")
)

// Engagement engine errors
var (
	ErrNoActiveUser     = NewDomainError("engagement", "Evaluate", ErrUnauthorized, "no authenticated user for session")
	ErrNoVisiblePopup   = NewDomainError("engagement", "Resolve", ErrInvalidState, "no popup is currently visible")
	ErrEmptySubmission  = NewDomainError("engagement", "SubmitInput", ErrValidation, "submission text is required")
	ErrInputNotDeclared = NewDomainError("engagement", "SubmitInput", ErrValidation, "rule does not accept input")
	ErrSessionClosed    = NewDomainError("engagement", "Emit", ErrInvalidState, "session has been closed")
)

// Signal store errors
var (
	ErrSnapshotUnavailable = NewDomainError("signal", "Snapshot", ErrPersistence, "signal snapshot unavailable")
	ErrDisplayWriteFailed  = NewDomainError("signal", "RecordShown", ErrPersistence, "display record write failed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
// Validation errors are surfaced back to the presentation layer.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue)
}

// IsConfig checks if the error is a fatal configuration error.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsPersistence checks if the error is a recoverable persistence error.
// These must never block the UI or crash the evaluation loop.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
