package directory

import (
	"fmt"
	"time"
)

// Specialty maps to the specialty table.
type Specialty struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctor table. Identity is immutable; the active flag
// and consultation duration are mutated by administrative flows only, the
// scheduling core reads them.
type Doctor struct {
	ID                  int64     `db:"id" json:"id"`
	FullName            string    `db:"full_name" json:"full_name"`
	SpecialtyID         int64     `db:"specialty_id" json:"specialty_id"`
	LicenseNumber       *string   `db:"license_number" json:"license_number,omitempty"`
	ExperienceYears     int       `db:"experience_years" json:"experience_years"`
	ConsultationMinutes int       `db:"consultation_minutes" json:"consultation_minutes"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// AvailabilityRule maps to the availability_rule table. A rule is either
// recurring (DayOfWeek set, SpecificDate nil) or a date-specific override
// (SpecificDate set). Start/end are minutes since local midnight so a rule
// carries no date of its own until resolved against one.
type AvailabilityRule struct {
	ID           int64      `db:"id" json:"id"`
	DoctorID     int64      `db:"doctor_id" json:"doctor_id"`
	DayOfWeek    *int       `db:"day_of_week" json:"day_of_week,omitempty"` // 0=Sunday .. 6=Saturday
	SpecificDate *time.Time `db:"specific_date" json:"specific_date,omitempty"`
	StartMinute  int        `db:"start_minute" json:"start_minute"`
	EndMinute    int        `db:"end_minute" json:"end_minute"`
	Available    bool       `db:"available" json:"available"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsSpecific reports whether the rule is a date-specific override.
func (r *AvailabilityRule) IsSpecific() bool { return r.SpecificDate != nil }

// DurationMinutes returns the rule's window length.
func (r *AvailabilityRule) DurationMinutes() int { return r.EndMinute - r.StartMinute }

// AppliesTo reports whether the rule governs the given civil date:
// a specific rule matches its exact date, a recurring rule matches the
// date's weekday. Precedence between the two is the caller's concern.
func (r *AvailabilityRule) AppliesTo(date time.Time) bool {
	if r.SpecificDate != nil {
		sy, sm, sd := r.SpecificDate.Date()
		dy, dm, dd := date.Date()
		return sy == dy && sm == dm && sd == dd
	}
	if r.DayOfWeek != nil {
		return time.Weekday(*r.DayOfWeek) == date.Weekday()
	}
	return false
}

// Validate rejects malformed rules at creation time. The scheduling core
// assumes every stored rule already passed this.
func (r *AvailabilityRule) Validate() error {
	if r.DoctorID == 0 {
		return fmt.Errorf("doctor_id is required")
	}
	if r.SpecificDate == nil && r.DayOfWeek == nil {
		return fmt.Errorf("either day_of_week or specific_date is required")
	}
	if r.SpecificDate != nil && r.DayOfWeek != nil {
		return fmt.Errorf("day_of_week and specific_date are mutually exclusive")
	}
	if r.DayOfWeek != nil && (*r.DayOfWeek < 0 || *r.DayOfWeek > 6) {
		return fmt.Errorf("day_of_week must be 0..6, got %d", *r.DayOfWeek)
	}
	if r.StartMinute < 0 || r.EndMinute > 24*60 {
		return fmt.Errorf("rule window must fall within a single day")
	}
	if r.EndMinute <= r.StartMinute {
		return fmt.Errorf("end_minute must be after start_minute")
	}
	return nil
}
