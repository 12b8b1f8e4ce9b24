package directory

import (
	"context"
	"fmt"
	"time"
)

// defaultConsultationMinutes applies when a doctor is created without an
// explicit consultation length.
const defaultConsultationMinutes = 30

// Service owns the reference data the scheduling core reads: specialties,
// doctors and their availability rules.
type Service struct {
	specialties SpecialtyRepository
	doctors     DoctorRepository
	rules       AvailabilityRuleRepository
}

func NewService(specialties SpecialtyRepository, doctors DoctorRepository, rules AvailabilityRuleRepository) *Service {
	return &Service{specialties: specialties, doctors: doctors, rules: rules}
}

// -- Specialty --

func (s *Service) CreateSpecialty(ctx context.Context, sp *Specialty) error {
	if sp.Name == "" {
		return fmt.Errorf("name is required")
	}
	sp.Active = true
	return s.specialties.Create(ctx, sp)
}

func (s *Service) GetSpecialty(ctx context.Context, id int64) (*Specialty, error) {
	return s.specialties.GetByID(ctx, id)
}

func (s *Service) UpdateSpecialty(ctx context.Context, sp *Specialty) error {
	if sp.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.specialties.Update(ctx, sp)
}

func (s *Service) DeleteSpecialty(ctx context.Context, id int64) error {
	return s.specialties.Delete(ctx, id)
}

func (s *Service) ListSpecialties(ctx context.Context, limit, offset int) ([]*Specialty, int, error) {
	return s.specialties.List(ctx, limit, offset)
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if d.SpecialtyID == 0 {
		return fmt.Errorf("specialty_id is required")
	}
	if d.ExperienceYears < 0 {
		return fmt.Errorf("experience_years must not be negative")
	}
	if d.ConsultationMinutes == 0 {
		d.ConsultationMinutes = defaultConsultationMinutes
	}
	if d.ConsultationMinutes < 0 {
		return fmt.Errorf("consultation_minutes must be positive")
	}
	if _, err := s.specialties.GetByID(ctx, d.SpecialtyID); err != nil {
		return fmt.Errorf("specialty %d not found", d.SpecialtyID)
	}
	d.Active = true
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if d.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if d.ExperienceYears < 0 {
		return fmt.Errorf("experience_years must not be negative")
	}
	if d.ConsultationMinutes <= 0 {
		return fmt.Errorf("consultation_minutes must be positive")
	}
	return s.doctors.Update(ctx, d)
}

// DeactivateDoctor takes a doctor out of the assignment pool without touching
// their history.
func (s *Service) DeactivateDoctor(ctx context.Context, id int64) error {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return err
	}
	d.Active = false
	return s.doctors.Update(ctx, d)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

func (s *Service) ListDoctorsBySpecialty(ctx context.Context, specialtyID int64, activeOnly bool) ([]*Doctor, error) {
	return s.doctors.ListBySpecialty(ctx, specialtyID, activeOnly)
}

// -- Availability rules --

func (s *Service) CreateRule(ctx context.Context, r *AvailabilityRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, err := s.doctors.GetByID(ctx, r.DoctorID); err != nil {
		return fmt.Errorf("doctor %d not found", r.DoctorID)
	}
	return s.rules.Create(ctx, r)
}

func (s *Service) GetRule(ctx context.Context, id int64) (*AvailabilityRule, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *Service) UpdateRule(ctx context.Context, r *AvailabilityRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.rules.Update(ctx, r)
}

func (s *Service) DeleteRule(ctx context.Context, id int64) error {
	return s.rules.Delete(ctx, id)
}

func (s *Service) ListRulesByDoctor(ctx context.Context, doctorID int64) ([]*AvailabilityRule, error) {
	return s.rules.ListByDoctor(ctx, doctorID)
}

func (s *Service) ListRulesForDate(ctx context.Context, doctorID int64, date time.Time) ([]*AvailabilityRule, error) {
	return s.rules.ListForDate(ctx, doctorID, date)
}
