package scheduling

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicore/clinicore/internal/domain/directory"
)

// RuleAvailabilityStore resolves directory availability rules into concrete
// windows. Rules carry minutes-since-midnight; this store anchors them on a
// civil date in that date's location.
type RuleAvailabilityStore struct {
	doctors directory.DoctorRepository
	rules   directory.AvailabilityRuleRepository
}

func NewRuleAvailabilityStore(doctors directory.DoctorRepository, rules directory.AvailabilityRuleRepository) *RuleAvailabilityStore {
	return &RuleAvailabilityStore{doctors: doctors, rules: rules}
}

func (s *RuleAvailabilityStore) AvailabilityOn(ctx context.Context, doctorID int64, date time.Time) ([]AvailabilityWindow, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("doctor", doctorID)
		}
		return nil, storageErr("load doctor", err)
	}

	rules, err := s.rules.ListForDate(ctx, doctorID, date)
	if err != nil {
		return nil, storageErr("load availability rules", err)
	}

	// A single date-specific rule replaces the whole recurring schedule for
	// that date, it is never merged with it.
	var chosen []*directory.AvailabilityRule
	for _, r := range rules {
		if r.IsSpecific() {
			chosen = append(chosen, r)
		}
	}
	specific := len(chosen) > 0
	if !specific {
		chosen = rules
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	windows := make([]AvailabilityWindow, 0, len(chosen))
	for _, r := range chosen {
		windows = append(windows, AvailabilityWindow{
			DoctorID:  doctorID,
			Start:     midnight.Add(time.Duration(r.StartMinute) * time.Minute),
			End:       midnight.Add(time.Duration(r.EndMinute) * time.Minute),
			Available: r.Available,
			Specific:  r.IsSpecific(),
		})
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	return windows, nil
}

func (s *RuleAvailabilityStore) IsAvailable(ctx context.Context, doctorID int64, instant time.Time) (bool, error) {
	windows, err := s.AvailabilityOn(ctx, doctorID, instant)
	if err != nil {
		return false, err
	}
	for _, w := range windows {
		if w.Available && w.Covers(instant) {
			return true, nil
		}
	}
	return false, nil
}

func (s *RuleAvailabilityStore) WindowCovering(ctx context.Context, doctorID int64, start, end time.Time) (*AvailabilityWindow, error) {
	windows, err := s.AvailabilityOn(ctx, doctorID, start)
	if err != nil {
		return nil, err
	}
	for i := range windows {
		w := windows[i]
		if w.Available && !start.Before(w.Start) && !w.End.Before(end) {
			return &w, nil
		}
	}
	return nil, nil
}
