package scheduling

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/directory"
)

// Scoring weights. The preference weight is reserved for patient-preference
// data the system does not collect yet; it always contributes zero so adding
// it later does not reorder existing assignments.
const (
	workloadBaseline    = 10.0
	seniorityPerYear    = 0.5
	qualityCapPoints    = 5.0
	preferencePoints    = 0.0
	minutesPerQualityPt = 60.0
)

// AssignmentScorer ranks a specialty's doctors for a requested window and
// picks the best one. It is a pure query: no booking, hold or reservation is
// created.
type AssignmentScorer struct {
	doctors directory.DoctorRepository
	avail   AvailabilityStore
	ledger  BookingLedger
	log     zerolog.Logger
}

func NewAssignmentScorer(doctors directory.DoctorRepository, avail AvailabilityStore, ledger BookingLedger, log zerolog.Logger) *AssignmentScorer {
	return &AssignmentScorer{doctors: doctors, avail: avail, ledger: ledger, log: log}
}

// AssignOptimal returns the highest-scoring doctor of the specialty who is
// available for the whole [start, end) window and has no conflicting booking.
// Ties break to the lowest doctor id. A nil doctor with a nil error means no
// candidate qualifies.
func (s *AssignmentScorer) AssignOptimal(ctx context.Context, specialtyID int64, start, end time.Time) (*directory.Doctor, error) {
	candidates, err := s.doctors.ListBySpecialty(ctx, specialtyID, true)
	if err != nil {
		return nil, storageErr("list doctors", err)
	}

	var (
		best      *directory.Doctor
		bestScore float64
	)
	for _, doc := range candidates {
		window, err := s.avail.WindowCovering(ctx, doc.ID, start, end)
		if err != nil {
			return nil, err
		}
		if window == nil {
			continue
		}

		conflict, err := s.ledger.HasConflict(ctx, doc.ID, start, end)
		if err != nil {
			return nil, err
		}
		if conflict {
			continue
		}

		score, err := s.score(ctx, doc, window, start)
		if err != nil {
			return nil, err
		}
		s.log.Debug().
			Int64("doctor_id", doc.ID).
			Float64("score", score).
			Msg("assignment candidate scored")

		// Candidates arrive in ascending id order, so strict comparison
		// keeps the lowest id on equal scores.
		if best == nil || score > bestScore {
			best = doc
			bestScore = score
		}
	}
	return best, nil
}

// score computes workload + seniority + availability-quality (+ the reserved
// preference term). The workload week is anchored on the requested start, so
// booking a slot three weeks out is judged against that week's load, not this
// week's.
func (s *AssignmentScorer) score(ctx context.Context, doc *directory.Doctor, window *AvailabilityWindow, start time.Time) (float64, error) {
	weekStart, weekEnd := weekOf(start)
	load, err := s.ledger.CountInRange(ctx, doc.ID, weekStart, weekEnd)
	if err != nil {
		return 0, err
	}

	workload := workloadBaseline - float64(load)
	if workload < 0 {
		workload = 0
	}

	seniority := float64(doc.ExperienceYears) * seniorityPerYear

	quality := float64(window.DurationMinutes()) / minutesPerQualityPt
	if quality > qualityCapPoints {
		quality = qualityCapPoints
	}

	return workload + seniority + quality + preferencePoints, nil
}

// weekOf returns the [Monday 00:00, next Monday 00:00) ISO week containing t,
// in t's location.
func weekOf(t time.Time) (time.Time, time.Time) {
	sinceMonday := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	start := day.AddDate(0, 0, -sinceMonday)
	return start, start.AddDate(0, 0, 7)
}
