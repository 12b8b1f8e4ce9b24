package scheduling

import (
	"errors"
	"fmt"
)

// Error taxonomy for the scheduling core. Handlers and callers branch on
// these with errors.Is; ErrStorage and ErrExternalSync wrap their cause.
var (
	// ErrNotFound means a referenced doctor, specialty, booking or waitlist
	// entry does not exist. Deterministic, never retried.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a booking attempt collides with an existing
	// non-cancelled booking for that doctor. Recoverable: the caller tries
	// the next candidate or falls back to the waitlist.
	ErrConflict = errors.New("booking conflict")

	// ErrStorage means the underlying persistence operation failed. The
	// booking is not considered created.
	ErrStorage = errors.New("storage failure")

	// ErrExternalSync means a post-commit calendar or notification call
	// failed. Logged and retried externally; the committed booking stands.
	ErrExternalSync = errors.New("external sync failure")
)

// storageErr wraps a driver error so callers can match ErrStorage while the
// cause stays inspectable.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// notFoundErr tags a missing entity with its kind and id.
func notFoundErr(kind string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, kind, id)
}

// conflictErr describes the window that collided.
func conflictErr(doctorID int64) error {
	return fmt.Errorf("%w: doctor %d already booked in requested window", ErrConflict, doctorID)
}
