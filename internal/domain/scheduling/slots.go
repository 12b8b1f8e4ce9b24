package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicore/clinicore/internal/domain/directory"
)

// SlotGenerator derives candidate bookable slots from availability windows
// and existing bookings. Slots are suggestions only; nothing is reserved and
// a later Commit may still hit a conflict.
type SlotGenerator struct {
	doctors directory.DoctorRepository
	avail   AvailabilityStore
	ledger  BookingLedger

	// defaultMinutes is the step used when neither the request nor the
	// doctor's profile names a slot length.
	defaultMinutes int
}

func NewSlotGenerator(doctors directory.DoctorRepository, avail AvailabilityStore, ledger BookingLedger, defaultMinutes int) *SlotGenerator {
	return &SlotGenerator{doctors: doctors, avail: avail, ledger: ledger, defaultMinutes: defaultMinutes}
}

// GenerateSlots walks every active doctor of the specialty through their
// effective windows on the date in slotMinutes steps, keeping only candidates
// that lie fully inside an available window and overlap no non-cancelled
// booking. slotMinutes == 0 falls back to each doctor's consultation length,
// then to the generator's configured default.
// Results are grouped by doctor in ascending id order, ascending in time
// within a doctor. No doctors, no windows or windows shorter than one step
// all yield an empty result, not an error.
func (g *SlotGenerator) GenerateSlots(ctx context.Context, specialtyID int64, date time.Time, slotMinutes int) ([]Slot, error) {
	if slotMinutes < 0 {
		return nil, fmt.Errorf("slot duration must not be negative, got %d", slotMinutes)
	}

	doctors, err := g.doctors.ListBySpecialty(ctx, specialtyID, true)
	if err != nil {
		return nil, storageErr("list doctors", err)
	}

	slots := []Slot{}
	for _, doc := range doctors {
		step := slotMinutes
		if step == 0 {
			step = doc.ConsultationMinutes
		}
		if step <= 0 {
			step = g.defaultMinutes
		}
		if step <= 0 {
			continue
		}

		windows, err := g.avail.AvailabilityOn(ctx, doc.ID, date)
		if err != nil {
			return nil, err
		}
		if len(windows) == 0 {
			continue
		}

		midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		booked, err := g.ledger.ListActiveInRange(ctx, doc.ID, midnight, midnight.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}

		size := time.Duration(step) * time.Minute
		for _, w := range windows {
			if !w.Available {
				continue
			}
			for start := w.Start; !start.Add(size).After(w.End); start = start.Add(size) {
				end := start.Add(size)
				if overlapsAny(booked, start, end) {
					continue
				}
				slots = append(slots, Slot{DoctorID: doc.ID, Start: start, End: end})
			}
		}
	}
	return slots, nil
}

func overlapsAny(bookings []*Booking, start, end time.Time) bool {
	for _, b := range bookings {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
