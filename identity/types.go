/*
Package identity provides the user registry for the marketplace.

PURPOSE:
  Users register with a name and phone number; the phone number is the
  login handle (the OTP flow looks users up by phone to decide between
  login and registration). The registry is deliberately thin - it knows
  nothing about requests or matching.

KEY TYPES:
  User:      A registered marketplace participant
  UserStore: Persistence interface (memory, sqlite, postgres)
  Registry:  Validation + orchestration over a UserStore

SEE ALSO:
  - api/handlers.go: OTP and user endpoints built on the Registry
*/
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// USER
// =============================================================================

type UserID string

// User is a registered marketplace participant.
type User struct {
	ID        UserID
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser builds a user with a generated ID.
func NewUser(name, phone string, now time.Time) User {
	return User{
		ID:        UserID(uuid.NewString()),
		Name:      name,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUserNotFound is returned for an unknown user ID or phone.
	ErrUserNotFound = errors.New("user not found")

	// ErrPhoneTaken is returned when registering a phone number that
	// already belongs to another user.
	ErrPhoneTaken = errors.New("phone number already registered")
)

// ValidationError reports which field of a user payload was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
