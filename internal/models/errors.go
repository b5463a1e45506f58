package models

import (
	"errors"
	"fmt"
)

// Error classes. Callers match them with errors.Is.
var (
	// ErrValidation marks malformed local input, rejected before any I/O.
	ErrValidation = errors.New("validation error")

	// ErrTransport marks a refused, dropped, or missing connection.
	ErrTransport = errors.New("transport error")

	// ErrConflict marks a business-level rejection, e.g. a seat taken by
	// someone else. It is never retried.
	ErrConflict = errors.New("conflict")
)

// Sentinel errors for validation.
var (
	ErrMissingShowtime = fmt.Errorf("%w: showtime id is required", ErrValidation)
	ErrMissingSeat     = fmt.Errorf("%w: seat number is required", ErrValidation)
	ErrMissingRoom     = fmt.Errorf("%w: room id is required", ErrValidation)
	ErrMissingURL      = fmt.Errorf("%w: url is required", ErrValidation)
	ErrMissingMethod   = fmt.Errorf("%w: method is required", ErrValidation)
	ErrMissingUser     = fmt.Errorf("%w: user id is required", ErrValidation)
	ErrMissingContent  = fmt.Errorf("%w: title or message is required", ErrValidation)
)

// Transport and conflict sentinels.
var (
	ErrNotConnected = fmt.Errorf("%w: not connected", ErrTransport)
	ErrSeatTaken    = fmt.Errorf("%w: seat just taken, pick another", ErrConflict)
	ErrLockExpired  = errors.New("lock expired before the server confirmed it")
)

// ErrFieldTooLong returns a validation error for a field over its limit.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%w: %s exceeds maximum length of %d", ErrValidation, field, maxLen)
}

// ErrInvalidValue returns a validation error for an unsupported value.
func ErrInvalidValue(field, value string) error {
	return fmt.Errorf("%w: invalid %s %q", ErrValidation, field, value)
}

// ReplayError reports a queued action that failed during replay. The
// action stays queued and the replay pass stops at it.
type ReplayError struct {
	ActionID string
	Attempt  int
	Err      error
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay of action %s (attempt %d) failed: %v", e.ActionID, e.Attempt, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *ReplayError) Unwrap() error { return e.Err }
