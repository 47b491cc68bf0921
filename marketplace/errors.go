/*
errors.go - Centralized error types for the marketplace engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every failure path in the engine returns one of these kinds so the
  API layer can map them to HTTP statuses without string matching.

ERROR KINDS:
  ErrValidation        Bad input; caller must fix, never retried
  ErrNotFound          Unknown request or user ID
  ErrInvalidTransition Business-rule violation; surfaced, not retried
  ErrConflict          Optimistic-concurrency race on a status update
  ErrNoMatch           Matcher exhausted every candidate
  ErrUnavailable       Store unreachable; caller may retry with backoff

USAGE:
  if errors.Is(err, marketplace.ErrConflict) {
      // lost a race, try the next candidate
  }

SEE ALSO:
  - store.go: CompareAndUpdateStatus returns ErrConflict / ErrNotFound
  - lifecycle.go: returns InvalidTransitionError
*/
package marketplace

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced request doesn't exist.
	ErrNotFound = errors.New("request not found")

	// ErrConflict is returned when a compare-and-update observes a
	// status other than the expected one. This is the optimistic
	// concurrency signal; the Matcher retries it internally.
	ErrConflict = errors.New("concurrent status change detected")

	// ErrInvalidTransition is returned for illegal lifecycle moves.
	// This is a caller error and is never retried automatically.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoMatch is returned when every ranked candidate has been
	// tried and none could be claimed.
	ErrNoMatch = errors.New("no matchable counter-request")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable is returned when the backing store cannot be
	// reached. The engine does not retry across the process boundary
	// to avoid duplicate side effects.
	ErrUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports the current vs requested state for an
// illegal lifecycle move.
type InvalidTransitionError struct {
	RequestID RequestID
	From      RequestStatus
	To        RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot transition %s -> %s", e.RequestID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError reports which field of an input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed against another
// candidate (used by the Matcher's retry loop).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is the caller's to fix.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
