package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusRequested  BookingStatus = "requested"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in-progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusNoShow     BookingStatus = "no-show"
)

// ValidBookingStatuses lists every status accepted at write time.
var ValidBookingStatuses = map[BookingStatus]bool{
	StatusRequested: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// VisitType distinguishes in-person from video consultations.
type VisitType string

const (
	VisitInPerson VisitType = "in-person"
	VisitVirtual  VisitType = "virtual"
)

// Booking maps to the booking table. The [StartTime, EndTime) interval is
// half-open: EndTime is exclusive everywhere overlap is tested.
type Booking struct {
	ID                 uuid.UUID     `db:"id" json:"id"`
	PatientID          int64         `db:"patient_id" json:"patient_id"`
	DoctorID           int64         `db:"doctor_id" json:"doctor_id"`
	SpecialtyID        int64         `db:"specialty_id" json:"specialty_id"`
	StartTime          time.Time     `db:"start_time" json:"start_time"`
	EndTime            time.Time     `db:"end_time" json:"end_time"`
	Type               VisitType     `db:"type" json:"type"`
	Status             BookingStatus `db:"status" json:"status"`
	Reason             *string       `db:"reason" json:"reason,omitempty"`
	Urgent             bool          `db:"urgent" json:"urgent"`
	Priority           int           `db:"priority" json:"priority"`
	AutoAssigned       bool          `db:"auto_assigned" json:"auto_assigned"`
	VideoURL           *string       `db:"video_url" json:"video_url,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CalendarEventID    *string       `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether the booking's interval overlaps [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}

// IsActive reports whether the booking participates in conflict checks.
// Only cancelled bookings are excluded.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// WaitlistStatus is the lifecycle state of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistAssigned  WaitlistStatus = "assigned"
	WaitlistCancelled WaitlistStatus = "cancelled"
)

// WaitlistEntry maps to the waitlist table. Position is a per-specialty
// monotonically increasing arrival counter; it is cleared (nil) once the
// entry is assigned and is never reused.
type WaitlistEntry struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	PatientID         int64          `db:"patient_id" json:"patient_id"`
	SpecialtyID       int64          `db:"specialty_id" json:"specialty_id"`
	PreferredDoctorID *int64         `db:"preferred_doctor_id" json:"preferred_doctor_id,omitempty"`
	PreferredDate     *time.Time     `db:"preferred_date" json:"preferred_date,omitempty"`
	Type              VisitType      `db:"type" json:"type"`
	Reason            *string        `db:"reason" json:"reason,omitempty"`
	Urgent            bool           `db:"urgent" json:"urgent"`
	Priority          int            `db:"priority" json:"priority"`
	Position          *int           `db:"position" json:"position,omitempty"`
	Status            WaitlistStatus `db:"status" json:"status"`
	BookingID         *uuid.UUID     `db:"booking_id" json:"booking_id,omitempty"`
	Notes             *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// IsWaiting reports whether the entry is still eligible for assignment.
func (w *WaitlistEntry) IsWaiting() bool { return w.Status == WaitlistWaiting }

// AvailabilityWindow is a resolved time range on a concrete date during
// which a doctor is declared available (or explicitly blocked when
// Available is false). Start and End carry the full civil date.
type AvailabilityWindow struct {
	DoctorID  int64     `json:"doctor_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	Specific  bool      `json:"specific"` // backed by a date-specific rule
}

// Covers reports whether the instant falls inside [Start, End).
func (w AvailabilityWindow) Covers(at time.Time) bool {
	return !at.Before(w.Start) && at.Before(w.End)
}

// DurationMinutes returns the window length in whole minutes.
func (w AvailabilityWindow) DurationMinutes() int {
	return int(w.End.Sub(w.Start) / time.Minute)
}

// Slot is a candidate bookable interval for one doctor. It is generated,
// not reserved: committing a booking for it may still fail with a conflict.
type Slot struct {
	DoctorID int64     `json:"doctor_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// BookingRequest is the input to the end-to-end booking flow. DoctorID == 0
// asks the scorer to pick the doctor.
type BookingRequest struct {
	PatientID   int64     `json:"patient_id"`
	DoctorID    int64     `json:"doctor_id,omitempty"`
	SpecialtyID int64     `json:"specialty_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Type        VisitType `json:"type"`
	Reason      *string   `json:"reason,omitempty"`
	Urgent      bool      `json:"urgent"`
	Priority    int       `json:"priority"`
}

// WaitlistRequest is the input to AddToWaitlist.
type WaitlistRequest struct {
	PatientID         int64      `json:"patient_id"`
	SpecialtyID       int64      `json:"specialty_id"`
	PreferredDoctorID *int64     `json:"preferred_doctor_id,omitempty"`
	PreferredDate     *time.Time `json:"preferred_date,omitempty"`
	Type              VisitType  `json:"type"`
	Reason            *string    `json:"reason,omitempty"`
	Urgent            bool       `json:"urgent"`
	Priority          int        `json:"priority"`
}

// BookingOutcome is the user-visible result of a booking request: either a
// committed booking or a waitlist entry. Being waitlisted is a successful
// business outcome, not an error.
type BookingOutcome struct {
	Booking    *Booking       `json:"booking,omitempty"`
	Waitlisted *WaitlistEntry `json:"waitlisted,omitempty"`
}

// SweepResult records one successful placement made by a waitlist sweep.
type SweepResult struct {
	Entry    *WaitlistEntry `json:"entry"`
	Booking  *Booking       `json:"booking"`
	DoctorID int64          `json:"doctor_id"`
}

// Clock abstracts wall-clock access so week anchoring and sweep defaults are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Test helper.
type FixedClock struct{ T time.Time }

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }
