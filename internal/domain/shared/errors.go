// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrInvalidInput = errors.New("invalid input")

	// ErrInputIntegrity marks input that references something the engine
	// cannot resolve (unknown EPA, unknown questionnaire, unknown question).
	// The whole aggregation call fails; nothing is dropped or guessed.
	ErrInputIntegrity = errors.New("input integrity violation")

	// ErrInputUnavailable is reported when the collaborator could not supply
	// a snapshot. Treated as a fatal precondition failure for the call.
	ErrInputUnavailable = errors.New("input unavailable")

	// ErrInvalidConfiguration marks catalog, scale or questionnaire
	// definitions that cannot drive an aggregation.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "epa", "survey", "portfolio"
	Op      string // Operation that failed, e.g., "BuildCoverageMatrix"
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

// Integrityf builds an ErrInputIntegrity error with a formatted message.
func Integrityf(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrInputIntegrity, fmt.Sprintf(format, args...))
}

// Configurationf builds an ErrInvalidConfiguration error with a formatted message.
func Configurationf(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// Trainee errors
var (
	ErrTraineeNotFound  = NewDomainError("trainee", "Find", ErrNotFound, "trainee not found")
	ErrInvalidTraineeID = NewDomainError("trainee", "Validate", ErrInvalidID, "invalid trainee ID")
)

// Questionnaire errors
var (
	ErrQuestionnaireNotFound = NewDomainError("survey", "Lookup", ErrNotFound, "questionnaire not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput)
}

// IsInputIntegrity checks if the error is an input integrity violation.
func IsInputIntegrity(err error) bool {
	return errors.Is(err, ErrInputIntegrity)
}

// IsInputUnavailable checks if the collaborator failed to supply input.
func IsInputUnavailable(err error) bool {
	return errors.Is(err, ErrInputUnavailable)
}

// IsInvalidConfiguration checks if the error comes from a bad definition.
func IsInvalidConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}
