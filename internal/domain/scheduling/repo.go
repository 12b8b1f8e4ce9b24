package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AvailabilityStore answers availability questions for one doctor, with
// date-specific rules fully overriding recurring weekday rules for the same
// civil date. The default is closed-world: no governing window, not available.
type AvailabilityStore interface {
	// AvailabilityOn resolves the doctor's effective windows on the given
	// civil date, sorted by start time. Unknown doctor yields ErrNotFound.
	AvailabilityOn(ctx context.Context, doctorID int64, date time.Time) ([]AvailabilityWindow, error)

	// IsAvailable reports whether the instant falls inside [start, end) of an
	// effective window with available=true.
	IsAvailable(ctx context.Context, doctorID int64, instant time.Time) (bool, error)

	// WindowCovering returns the effective available window containing the
	// whole [start, end) interval, or nil when none does.
	WindowCovering(ctx context.Context, doctorID int64, start, end time.Time) (*AvailabilityWindow, error)
}

// BookingLedger is the system of record for bookings. Commit performs the
// conflict check and the insert as one atomic unit per doctor.
type BookingLedger interface {
	// HasConflict reports whether any non-cancelled booking for the doctor
	// overlaps [start, end).
	HasConflict(ctx context.Context, doctorID int64, start, end time.Time) (bool, error)

	// Commit atomically re-checks conflicts and persists the booking.
	// Returns ErrConflict when the window is already taken, ErrStorage when
	// persistence fails; on success the booking is stored with its id and
	// timestamps populated.
	Commit(ctx context.Context, b *Booking) error

	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	Update(ctx context.Context, b *Booking) error

	// ListActiveInRange returns the doctor's non-cancelled bookings whose
	// interval overlaps [from, to), ascending by start time.
	ListActiveInRange(ctx context.Context, doctorID int64, from, to time.Time) ([]*Booking, error)

	// CountInRange counts the doctor's non-cancelled bookings starting inside
	// [from, to). Feeds the workload score.
	CountInRange(ctx context.Context, doctorID int64, from, to time.Time) (int, error)
}

// WaitlistQueue holds patients waiting for a specialty. Positions are a
// per-specialty arrival order: monotonically increasing, never reused.
type WaitlistQueue interface {
	// Enqueue appends a new waiting entry at position
	// max(waiting positions for the specialty) + 1, or 1 when none wait.
	Enqueue(ctx context.Context, req WaitlistRequest) (*WaitlistEntry, error)

	// DequeueOrderedBatch returns every waiting entry ordered by priority
	// descending, then position ascending. Entries are not removed; the
	// caller resolves the ones it places.
	DequeueOrderedBatch(ctx context.Context) ([]*WaitlistEntry, error)

	// Resolve marks a waiting entry assigned, records the booking that
	// satisfied it and clears its position.
	Resolve(ctx context.Context, entryID, bookingID uuid.UUID) error

	GetByID(ctx context.Context, id uuid.UUID) (*WaitlistEntry, error)

	// Cancel removes a waiting entry from the queue without reusing its
	// position.
	Cancel(ctx context.Context, entryID uuid.UUID) error
}
