package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/directory"
	"github.com/clinicore/clinicore/internal/platform/calendar"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

// sweepWindowLead and sweepWindowLength define the default window a waitlist
// sweep tries to book when the entry carries no preferred date: one hour,
// starting a day from now.
const (
	sweepWindowLead   = 24 * time.Hour
	sweepWindowLength = time.Hour
)

// CalendarDispatcher is the post-commit calendar mirroring port. Enqueue must
// not block and must not fail the caller.
type CalendarDispatcher interface {
	Enqueue(ev calendar.Event)
}

// Notifier is the patient notification port.
type Notifier interface {
	SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*notification.Message, error)
}

// Service is the scheduling facade: doctor assignment, slot discovery,
// booking, cancellation and the waitlist.
type Service struct {
	doctors     directory.DoctorRepository
	specialties directory.SpecialtyRepository
	avail       AvailabilityStore
	ledger      BookingLedger
	waitlist    WaitlistQueue
	scorer      *AssignmentScorer
	slots       *SlotGenerator
	cal         CalendarDispatcher
	notifier    Notifier
	clock       Clock
	log         zerolog.Logger
}

func NewService(
	doctors directory.DoctorRepository,
	specialties directory.SpecialtyRepository,
	avail AvailabilityStore,
	ledger BookingLedger,
	waitlist WaitlistQueue,
	cal CalendarDispatcher,
	notifier Notifier,
	defaultSlotMinutes int,
	clock Clock,
	log zerolog.Logger,
) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		doctors:     doctors,
		specialties: specialties,
		avail:       avail,
		ledger:      ledger,
		waitlist:    waitlist,
		scorer:      NewAssignmentScorer(doctors, avail, ledger, log),
		slots:       NewSlotGenerator(doctors, avail, ledger, defaultSlotMinutes),
		cal:         cal,
		notifier:    notifier,
		clock:       clock,
		log:         log,
	}
}

// AssignOptimalDoctor picks the best available doctor of the specialty for
// the window, or nil when nobody qualifies. Pure query.
func (s *Service) AssignOptimalDoctor(ctx context.Context, specialtyID int64, start, end time.Time) (*directory.Doctor, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("start must be before end")
	}
	return s.scorer.AssignOptimal(ctx, specialtyID, start, end)
}

// GetAvailableSlots lists candidate slots for the specialty on a date.
// durationMinutes == 0 uses each doctor's consultation length, falling back
// to the configured default slot length.
func (s *Service) GetAvailableSlots(ctx context.Context, specialtyID int64, date time.Time, durationMinutes int) ([]Slot, error) {
	return s.slots.GenerateSlots(ctx, specialtyID, date, durationMinutes)
}

// IsDoctorAvailable reports whether the doctor has at least one available
// window on the date.
func (s *Service) IsDoctorAvailable(ctx context.Context, doctorID int64, date time.Time) (bool, error) {
	windows, err := s.avail.AvailabilityOn(ctx, doctorID, date)
	if err != nil {
		return false, err
	}
	for _, w := range windows {
		if w.Available {
			return true, nil
		}
	}
	return false, nil
}

// DoctorAvailability returns the doctor's effective windows on the date.
func (s *Service) DoctorAvailability(ctx context.Context, doctorID int64, date time.Time) ([]AvailabilityWindow, error) {
	return s.avail.AvailabilityOn(ctx, doctorID, date)
}

// BookAppointment runs the end-to-end flow: pick a doctor (the requested one,
// or the scorer's choice when none is named), commit the booking, then mirror
// it to the calendar and notify the patient. When no doctor can take the
// window the patient is waitlisted, which is a successful outcome, not an
// error. Post-commit mirroring and notification are best-effort and never
// undo the booking.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*BookingOutcome, error) {
	if err := normalizeBookingRequest(&req); err != nil {
		return nil, err
	}

	autoAssigned := req.DoctorID == 0
	var doc *directory.Doctor
	var err error
	if autoAssigned {
		doc, err = s.scorer.AssignOptimal(ctx, req.SpecialtyID, req.StartTime, req.EndTime)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return s.waitlistFallback(ctx, req)
		}
	} else {
		doc, err = s.loadDoctor(ctx, req.DoctorID)
		if err != nil {
			return nil, err
		}
		if !doc.Active {
			return nil, fmt.Errorf("%w: doctor %d is not accepting appointments", ErrConflict, doc.ID)
		}
		if req.SpecialtyID == 0 {
			req.SpecialtyID = doc.SpecialtyID
		} else if req.SpecialtyID != doc.SpecialtyID {
			return nil, fmt.Errorf("doctor %d does not practice specialty %d", doc.ID, req.SpecialtyID)
		}
		window, err := s.avail.WindowCovering(ctx, doc.ID, req.StartTime, req.EndTime)
		if err != nil {
			return nil, err
		}
		if window == nil {
			return nil, fmt.Errorf("%w: doctor %d is not available in the requested window", ErrConflict, doc.ID)
		}
	}

	b := &Booking{
		ID:           uuid.New(),
		PatientID:    req.PatientID,
		DoctorID:     doc.ID,
		SpecialtyID:  req.SpecialtyID,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Type:         req.Type,
		Status:       StatusConfirmed,
		Reason:       req.Reason,
		Urgent:       req.Urgent,
		Priority:     req.Priority,
		AutoAssigned: autoAssigned,
	}
	if b.Type == VisitVirtual {
		u := videoRoomURL(b.ID)
		b.VideoURL = &u
	}

	if err := s.ledger.Commit(ctx, b); err != nil {
		if autoAssigned && errors.Is(err, ErrConflict) {
			// The scorer's pick was taken between scoring and commit.
			return s.waitlistFallback(ctx, req)
		}
		return nil, err
	}

	s.afterCommit(ctx, b, doc, notification.TemplateScheduled)
	return &BookingOutcome{Booking: b}, nil
}

// CancelBooking marks the booking cancelled, removes its external calendar
// event and notifies the patient. Cancelling an already cancelled booking is
// a no-op.
func (s *Service) CancelBooking(ctx context.Context, bookingID uuid.UUID, reason string) error {
	b, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == StatusCancelled {
		return nil
	}

	b.Status = StatusCancelled
	if reason != "" {
		b.CancellationReason = &reason
	}
	if err := s.ledger.Update(ctx, b); err != nil {
		return err
	}

	if b.CalendarEventID != nil {
		s.cal.Enqueue(calendar.Event{
			BookingID:  b.ID,
			Action:     calendar.ActionDelete,
			ExternalID: *b.CalendarEventID,
			DoctorID:   b.DoctorID,
			PatientID:  b.PatientID,
		})
	}

	doc, err := s.loadDoctor(ctx, b.DoctorID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("booking_id", b.ID).Msg("cancellation notification skipped")
		return nil
	}
	s.notify(ctx, notification.TemplateCancelled, b, doc, map[string]string{"reason": reason})
	return nil
}

// GetBooking returns a booking by id.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.ledger.GetByID(ctx, id)
}

// AttachCalendarEvent stores the provider-side event id on a booking. Wired
// as the calendar dispatcher's success callback.
func (s *Service) AttachCalendarEvent(ctx context.Context, bookingID uuid.UUID, eventID string) error {
	b, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	b.CalendarEventID = &eventID
	return s.ledger.Update(ctx, b)
}

// AddToWaitlist enqueues a patient for the specialty and tells them their
// position.
func (s *Service) AddToWaitlist(ctx context.Context, req WaitlistRequest) (*WaitlistEntry, error) {
	if req.PatientID == 0 {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.SpecialtyID == 0 {
		return nil, fmt.Errorf("specialty_id is required")
	}
	if req.Type == "" {
		req.Type = VisitInPerson
	}
	req.Priority = clampPriority(req.Priority)

	entry, err := s.waitlist.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}

	data := map[string]string{"specialty": fmt.Sprintf("%d", entry.SpecialtyID)}
	if sp, err := s.specialties.GetByID(ctx, entry.SpecialtyID); err == nil {
		data["specialty"] = sp.Name
	}
	if entry.Position != nil {
		data["position"] = fmt.Sprintf("%d", *entry.Position)
	}
	if _, err := s.notifier.SendTemplate(ctx, notification.TemplateWaitlistAdded, patientRecipient(entry.PatientID), data); err != nil {
		s.log.Warn().Err(err).Stringer("entry_id", entry.ID).Msg("waitlist notification failed")
	}
	return entry, nil
}

// GetWaitlistEntry returns a waitlist entry by id.
func (s *Service) GetWaitlistEntry(ctx context.Context, id uuid.UUID) (*WaitlistEntry, error) {
	return s.waitlist.GetByID(ctx, id)
}

// CancelWaitlistEntry removes a waiting entry. Its position is not reused.
func (s *Service) CancelWaitlistEntry(ctx context.Context, id uuid.UUID) error {
	return s.waitlist.Cancel(ctx, id)
}

// ProcessWaitlist sweeps the queue in priority order and books every entry a
// doctor can take. An entry that cannot be placed stays waiting and never
// blocks the ones behind it, so running the sweep twice in a row is harmless.
func (s *Service) ProcessWaitlist(ctx context.Context) ([]SweepResult, error) {
	batch, err := s.waitlist.DequeueOrderedBatch(ctx)
	if err != nil {
		return nil, err
	}

	results := []SweepResult{}
	for _, entry := range batch {
		res, err := s.placeEntry(ctx, entry)
		if err != nil {
			s.log.Warn().Err(err).Stringer("entry_id", entry.ID).Msg("waitlist entry not placed")
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}

	s.log.Info().Int("placed", len(results)).Int("examined", len(batch)).Msg("waitlist sweep finished")
	return results, nil
}

// placeEntry tries to book one waitlist entry. A nil result with a nil error
// means no doctor could take it; the entry stays waiting.
func (s *Service) placeEntry(ctx context.Context, entry *WaitlistEntry) (*SweepResult, error) {
	start := s.clock.Now().Add(sweepWindowLead)
	if entry.PreferredDate != nil && entry.PreferredDate.After(s.clock.Now()) {
		start = *entry.PreferredDate
	}
	end := start.Add(sweepWindowLength)

	var doc *directory.Doctor
	if entry.PreferredDoctorID != nil {
		if cand, err := s.loadDoctor(ctx, *entry.PreferredDoctorID); err == nil && cand.Active {
			window, err := s.avail.WindowCovering(ctx, cand.ID, start, end)
			if err != nil {
				return nil, err
			}
			if window != nil {
				conflict, err := s.ledger.HasConflict(ctx, cand.ID, start, end)
				if err != nil {
					return nil, err
				}
				if !conflict {
					doc = cand
				}
			}
		}
	}
	if doc == nil {
		var err error
		doc, err = s.scorer.AssignOptimal(ctx, entry.SpecialtyID, start, end)
		if err != nil {
			return nil, err
		}
	}
	if doc == nil {
		return nil, nil
	}

	b := &Booking{
		ID:           uuid.New(),
		PatientID:    entry.PatientID,
		DoctorID:     doc.ID,
		SpecialtyID:  entry.SpecialtyID,
		StartTime:    start,
		EndTime:      end,
		Type:         entry.Type,
		Status:       StatusConfirmed,
		Reason:       entry.Reason,
		Urgent:       entry.Urgent,
		Priority:     entry.Priority,
		AutoAssigned: true,
	}
	if b.Type == VisitVirtual {
		u := videoRoomURL(b.ID)
		b.VideoURL = &u
	}
	if err := s.ledger.Commit(ctx, b); err != nil {
		return nil, err
	}
	if err := s.waitlist.Resolve(ctx, entry.ID, b.ID); err != nil {
		// The booking stands; the entry will be retried and skipped as
		// conflicting next sweep.
		s.log.Error().Err(err).Stringer("entry_id", entry.ID).Msg("waitlist entry not resolved after booking")
	} else if resolved, err := s.waitlist.GetByID(ctx, entry.ID); err == nil {
		// Report the resolved row, not the pre-sweep snapshot.
		entry = resolved
	}

	s.afterCommit(ctx, b, doc, notification.TemplateWaitlistAssigned)
	return &SweepResult{Entry: entry, Booking: b, DoctorID: doc.ID}, nil
}

// afterCommit runs the post-commit side effects: calendar mirroring and the
// patient notification. Both are best-effort.
func (s *Service) afterCommit(ctx context.Context, b *Booking, doc *directory.Doctor, template string) {
	s.cal.Enqueue(calendar.Event{
		BookingID: b.ID,
		Action:    calendar.ActionCreate,
		DoctorID:  b.DoctorID,
		PatientID: b.PatientID,
		Summary:   fmt.Sprintf("%s visit with %s", b.Type, doc.FullName),
		Start:     b.StartTime,
		End:       b.EndTime,
	})
	s.notify(ctx, template, b, doc, nil)
}

func (s *Service) notify(ctx context.Context, template string, b *Booking, doc *directory.Doctor, extra map[string]string) {
	data := map[string]string{
		"patient_name": patientRecipient(b.PatientID),
		"doctor_name":  doc.FullName,
		"visit_type":   string(b.Type),
		"date":         b.StartTime.Format("2006-01-02"),
		"time":         b.StartTime.Format("15:04"),
	}
	for k, v := range extra {
		data[k] = v
	}
	if _, err := s.notifier.SendTemplate(ctx, template, patientRecipient(b.PatientID), data); err != nil {
		s.log.Warn().Err(err).Stringer("booking_id", b.ID).Str("template", template).
			Msg("booking notification failed")
	}
}

// waitlistFallback turns an unplaceable booking request into a waitlist entry.
func (s *Service) waitlistFallback(ctx context.Context, req BookingRequest) (*BookingOutcome, error) {
	preferred := req.StartTime
	entry, err := s.AddToWaitlist(ctx, WaitlistRequest{
		PatientID:     req.PatientID,
		SpecialtyID:   req.SpecialtyID,
		PreferredDate: &preferred,
		Type:          req.Type,
		Reason:        req.Reason,
		Urgent:        req.Urgent,
		Priority:      req.Priority,
	})
	if err != nil {
		return nil, err
	}
	return &BookingOutcome{Waitlisted: entry}, nil
}

func (s *Service) loadDoctor(ctx context.Context, id int64) (*directory.Doctor, error) {
	doc, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("doctor", id)
		}
		return nil, storageErr("load doctor", err)
	}
	return doc, nil
}

func normalizeBookingRequest(req *BookingRequest) error {
	if req.PatientID == 0 {
		return fmt.Errorf("patient_id is required")
	}
	if req.DoctorID == 0 && req.SpecialtyID == 0 {
		return fmt.Errorf("specialty_id is required when no doctor is named")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return fmt.Errorf("start_time and end_time are required")
	}
	if !req.StartTime.Before(req.EndTime) {
		return fmt.Errorf("start_time must be before end_time")
	}
	if req.Type == "" {
		req.Type = VisitInPerson
	}
	if req.Type != VisitInPerson && req.Type != VisitVirtual {
		return fmt.Errorf("invalid visit type: %s", req.Type)
	}
	req.Priority = clampPriority(req.Priority)
	return nil
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 5 {
		return 5
	}
	return p
}

// patientRecipient addresses a patient for the notification bridge, which
// resolves the actual contact details. Patient records live outside this
// service.
func patientRecipient(patientID int64) string {
	return fmt.Sprintf("patient:%d", patientID)
}

func videoRoomURL(bookingID uuid.UUID) string {
	return "https://meet.clinicore.example/" + bookingID.String()
}
