package directory

import (
	"context"
	"time"
)

type SpecialtyRepository interface {
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id int64) (*Specialty, error)
	Update(ctx context.Context, s *Specialty) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Specialty, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id int64) error
	// ListBySpecialty returns doctors in ascending id order so downstream
	// tie-breaking is deterministic.
	ListBySpecialty(ctx context.Context, specialtyID int64, activeOnly bool) ([]*Doctor, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}

type AvailabilityRuleRepository interface {
	Create(ctx context.Context, r *AvailabilityRule) error
	GetByID(ctx context.Context, id int64) (*AvailabilityRule, error)
	Update(ctx context.Context, r *AvailabilityRule) error
	Delete(ctx context.Context, id int64) error
	ListByDoctor(ctx context.Context, doctorID int64) ([]*AvailabilityRule, error)
	// ListForDate returns every rule of the doctor that could govern the
	// given civil date: specific rules for that exact date plus recurring
	// rules for its weekday. Specific-over-recurring precedence is applied
	// by the caller, not here.
	ListForDate(ctx context.Context, doctorID int64, date time.Time) ([]*AvailabilityRule, error)
}
