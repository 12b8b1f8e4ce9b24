package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/directory"
	"github.com/clinicore/clinicore/internal/platform/calendar"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

// mockDispatcher records enqueued calendar events.
type mockDispatcher struct {
	mu     sync.Mutex
	events []calendar.Event
}

func (m *mockDispatcher) Enqueue(ev calendar.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockDispatcher) Events() []calendar.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]calendar.Event, len(m.events))
	copy(out, m.events)
	return out
}

// mockNotifier records template sends and can be told to fail.
type mockNotifier struct {
	mu         sync.Mutex
	sent       []string // template ids in send order
	shouldFail bool
}

func (m *mockNotifier) SendTemplate(_ context.Context, templateID, _ string, _ map[string]string) (*notification.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return nil, fmt.Errorf("notification bridge down")
	}
	m.sent = append(m.sent, templateID)
	return &notification.Message{ID: uuid.New().String(), TemplateID: templateID}, nil
}

func (m *mockNotifier) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

type serviceFixture struct {
	specialties *directory.MemorySpecialtyRepo
	doctors     *directory.MemoryDoctorRepo
	rules       *directory.MemoryAvailabilityRuleRepo
	ledger      *MemoryBookingLedger
	waitlist    *MemoryWaitlistQueue
	cal         *mockDispatcher
	notifier    *mockNotifier
	svc         *Service
}

// newServiceFixture wires a Service over the in-memory backends with the
// clock pinned to Monday 08:00.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := FixedClock{T: monday.Add(8 * time.Hour)}
	f := &serviceFixture{
		specialties: directory.NewMemorySpecialtyRepo(),
		doctors:     directory.NewMemoryDoctorRepo(),
		rules:       directory.NewMemoryAvailabilityRuleRepo(),
		ledger:      NewMemoryBookingLedger(clock),
		waitlist:    NewMemoryWaitlistQueue(clock),
		cal:         &mockDispatcher{},
		notifier:    &mockNotifier{},
	}
	f.svc = NewService(
		f.doctors,
		f.specialties,
		NewRuleAvailabilityStore(f.doctors, f.rules),
		f.ledger,
		f.waitlist,
		f.cal,
		f.notifier,
		30,
		clock,
		zerolog.Nop(),
	)

	sp := &directory.Specialty{Name: "Cardiology", Active: true}
	if err := f.specialties.Create(context.Background(), sp); err != nil {
		t.Fatalf("create specialty: %v", err)
	}
	return f
}

func (f *serviceFixture) addAvailableDoctor(t *testing.T, experienceYears int) *directory.Doctor {
	t.Helper()
	doc := addDoctor(t, f.doctors, 1, experienceYears)
	// Open every day of the week, 08:00-18:00.
	for day := 0; day < 7; day++ {
		addRecurringRule(t, f.rules, doc.ID, day, 480, 1080, true)
	}
	return doc
}

func TestBookAppointment_ExplicitDoctor(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)

	outcome, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Booking == nil {
		t.Fatal("expected a committed booking")
	}
	b := outcome.Booking
	if b.DoctorID != doc.ID {
		t.Errorf("doctor = %d, want %d", b.DoctorID, doc.ID)
	}
	if b.AutoAssigned {
		t.Error("explicitly requested doctor must not be flagged auto-assigned")
	}
	if b.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", b.Status)
	}
	if b.SpecialtyID != doc.SpecialtyID {
		t.Errorf("specialty defaulted to %d, want the doctor's %d", b.SpecialtyID, doc.SpecialtyID)
	}

	// Post-commit side effects: one calendar create, one scheduled notice.
	events := f.cal.Events()
	if len(events) != 1 || events[0].Action != calendar.ActionCreate {
		t.Fatalf("expected one calendar create event, got %+v", events)
	}
	if events[0].BookingID != b.ID {
		t.Errorf("calendar event booking = %s, want %s", events[0].BookingID, b.ID)
	}
	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0] != notification.TemplateScheduled {
		t.Fatalf("expected one scheduled notification, got %v", sent)
	}
}

func TestBookAppointment_AutoAssignPicksBestDoctor(t *testing.T) {
	f := newServiceFixture(t)
	junior := f.addAvailableDoctor(t, 2)
	senior := f.addAvailableDoctor(t, 20)
	_ = junior

	outcome, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID:   42,
		SpecialtyID: 1,
		StartTime:   monday.Add(10 * time.Hour),
		EndTime:     monday.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Booking == nil {
		t.Fatal("expected a committed booking")
	}
	if outcome.Booking.DoctorID != senior.ID {
		t.Errorf("auto-assigned doctor %d, want the senior %d", outcome.Booking.DoctorID, senior.ID)
	}
	if !outcome.Booking.AutoAssigned {
		t.Error("expected the booking to be flagged auto-assigned")
	}
}

func TestBookAppointment_VirtualVisitGetsVideoURL(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)

	outcome, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
		Type:      VisitVirtual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Booking.VideoURL == nil || *outcome.Booking.VideoURL == "" {
		t.Error("virtual visit must carry a video room URL")
	}
}

func TestBookAppointment_ExplicitDoctorOutsideWindow(t *testing.T) {
	f := newServiceFixture(t)
	doc := addDoctor(t, f.doctors, 1, 5)
	// Mondays 09:00-12:00 only.
	addRecurringRule(t, f.rules, doc.ID, 1, 540, 720, true)

	_, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(14 * time.Hour),
		EndTime:   monday.Add(15 * time.Hour),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for out-of-window request, got %v", err)
	}
}

func TestBookAppointment_ExplicitDoctorSpecialtyMismatch(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)

	_, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID:   42,
		DoctorID:    doc.ID,
		SpecialtyID: doc.SpecialtyID + 1,
		StartTime:   monday.Add(10 * time.Hour),
		EndTime:     monday.Add(11 * time.Hour),
	})
	if err == nil {
		t.Fatal("expected an error for a specialty the doctor does not practice")
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		t.Fatalf("mismatch must be a validation error, got %v", err)
	}
	if len(f.cal.Events()) != 0 {
		t.Error("rejected request must not enqueue a calendar event")
	}
}

func TestBookAppointment_ExplicitDoctorDoubleBooking(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)
	ctx := context.Background()

	req := BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	}
	if _, err := f.svc.BookAppointment(ctx, req); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	req.PatientID = 43
	_, err := f.svc.BookAppointment(ctx, req)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for double booking, got %v", err)
	}
}

func TestBookAppointment_InactiveDoctor(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)
	doc.Active = false
	if err := f.doctors.Update(context.Background(), doc); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for inactive doctor, got %v", err)
	}
}

func TestBookAppointment_UnknownDoctor(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: 42,
		DoctorID:  999,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookAppointment_WaitlistsWhenNobodyAvailable(t *testing.T) {
	f := newServiceFixture(t)
	// One doctor, never available on Mondays.
	doc := addDoctor(t, f.doctors, 1, 5)
	addRecurringRule(t, f.rules, doc.ID, 2, 540, 1020, true)

	outcome, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID:   42,
		SpecialtyID: 1,
		StartTime:   monday.Add(10 * time.Hour),
		EndTime:     monday.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("waitlisting must not be an error: %v", err)
	}
	if outcome.Booking != nil {
		t.Fatal("no booking should have been committed")
	}
	if outcome.Waitlisted == nil {
		t.Fatal("expected a waitlist entry")
	}
	entry := outcome.Waitlisted
	if entry.Position == nil || *entry.Position != 1 {
		t.Errorf("position = %v, want 1", entry.Position)
	}
	if entry.PreferredDate == nil || !entry.PreferredDate.Equal(monday.Add(10*time.Hour)) {
		t.Errorf("preferred date should carry the requested start, got %v", entry.PreferredDate)
	}

	// No calendar event, only the waitlist-added notification.
	if len(f.cal.Events()) != 0 {
		t.Error("waitlisting must not enqueue a calendar event")
	}
	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0] != notification.TemplateWaitlistAdded {
		t.Errorf("expected waitlist-added notification, got %v", sent)
	}
}

func TestBookAppointment_NotificationFailureDoesNotUndoBooking(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)
	f.notifier.shouldFail = true

	outcome, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("notification failure must not fail the booking: %v", err)
	}
	if outcome.Booking == nil {
		t.Fatal("expected a committed booking")
	}
	// The booking is durable.
	if _, err := f.svc.GetBooking(context.Background(), outcome.Booking.ID); err != nil {
		t.Fatalf("booking not persisted: %v", err)
	}
}

func TestBookAppointment_Validation(t *testing.T) {
	f := newServiceFixture(t)

	cases := []struct {
		name string
		req  BookingRequest
	}{
		{"missing patient", BookingRequest{SpecialtyID: 1, StartTime: monday, EndTime: monday.Add(time.Hour)}},
		{"missing specialty and doctor", BookingRequest{PatientID: 1, StartTime: monday, EndTime: monday.Add(time.Hour)}},
		{"zero times", BookingRequest{PatientID: 1, SpecialtyID: 1}},
		{"inverted window", BookingRequest{PatientID: 1, SpecialtyID: 1, StartTime: monday.Add(time.Hour), EndTime: monday}},
		{"bad visit type", BookingRequest{PatientID: 1, SpecialtyID: 1, StartTime: monday, EndTime: monday.Add(time.Hour), Type: "house-call"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.BookAppointment(context.Background(), tc.req); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestCancelBooking(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)
	ctx := context.Background()

	outcome, err := f.svc.BookAppointment(ctx, BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	b := outcome.Booking

	// Simulate the dispatcher callback having stored the provider event id.
	if err := f.svc.AttachCalendarEvent(ctx, b.ID, "evt-123"); err != nil {
		t.Fatalf("attach event: %v", err)
	}

	if err := f.svc.CancelBooking(ctx, b.ID, "patient request"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, err := f.svc.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if got.CancellationReason == nil || *got.CancellationReason != "patient request" {
		t.Errorf("cancellation reason = %v", got.CancellationReason)
	}

	// The calendar delete follows the create.
	events := f.cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected create + delete events, got %d", len(events))
	}
	if events[1].Action != calendar.ActionDelete || events[1].ExternalID != "evt-123" {
		t.Errorf("unexpected delete event %+v", events[1])
	}

	// The slot is free again.
	if _, err := f.svc.BookAppointment(ctx, BookingRequest{
		PatientID: 43,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	}); err != nil {
		t.Errorf("slot must be bookable after cancellation: %v", err)
	}
}

func TestCancelBooking_Idempotent(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)
	ctx := context.Background()

	outcome, err := f.svc.BookAppointment(ctx, BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if err := f.svc.CancelBooking(ctx, outcome.Booking.ID, "first"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	eventsAfterFirst := len(f.cal.Events())

	if err := f.svc.CancelBooking(ctx, outcome.Booking.ID, "second"); err != nil {
		t.Fatalf("second cancel must be a no-op: %v", err)
	}
	if len(f.cal.Events()) != eventsAfterFirst {
		t.Error("repeated cancel must not enqueue more calendar events")
	}

	got, _ := f.svc.GetBooking(ctx, outcome.Booking.ID)
	if got.CancellationReason == nil || *got.CancellationReason != "first" {
		t.Errorf("second cancel must not overwrite the reason, got %v", got.CancellationReason)
	}
}

func TestCancelBooking_Unknown(t *testing.T) {
	f := newServiceFixture(t)
	err := f.svc.CancelBooking(context.Background(), uuid.New(), "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessWaitlist_PlacesEntries(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.addAvailableDoctor(t, 5)
	ctx := context.Background()

	entry, err := f.svc.AddToWaitlist(ctx, WaitlistRequest{PatientID: 42, SpecialtyID: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	results, err := f.svc.ProcessWaitlist(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(results))
	}
	res := results[0]
	if res.Entry.ID != entry.ID {
		t.Errorf("placed entry %s, want %s", res.Entry.ID, entry.ID)
	}
	if res.DoctorID != doc.ID {
		t.Errorf("placed with doctor %d, want %d", res.DoctorID, doc.ID)
	}
	if !res.Booking.AutoAssigned {
		t.Error("sweep bookings are auto-assigned")
	}
	// Default window: 24h lead, one hour long.
	wantStart := monday.Add(8 * time.Hour).Add(24 * time.Hour)
	if !res.Booking.StartTime.Equal(wantStart) {
		t.Errorf("booking start = %v, want %v", res.Booking.StartTime, wantStart)
	}
	if got := res.Booking.EndTime.Sub(res.Booking.StartTime); got != time.Hour {
		t.Errorf("booking length = %v, want 1h", got)
	}

	// The result carries the resolved entry, not the pre-sweep snapshot.
	if res.Entry.Status != WaitlistAssigned {
		t.Errorf("result entry status = %s, want assigned", res.Entry.Status)
	}
	if res.Entry.BookingID == nil || *res.Entry.BookingID != res.Booking.ID {
		t.Errorf("result entry booking_id = %v, want %s", res.Entry.BookingID, res.Booking.ID)
	}
	if res.Entry.Position != nil {
		t.Errorf("assigned entry must carry no position, got %d", *res.Entry.Position)
	}

	resolved, err := f.svc.GetWaitlistEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if resolved.Status != WaitlistAssigned {
		t.Errorf("entry status = %s, want assigned", resolved.Status)
	}
	if resolved.BookingID == nil || *resolved.BookingID != res.Booking.ID {
		t.Errorf("entry booking_id = %v, want %s", resolved.BookingID, res.Booking.ID)
	}

	sent := f.notifier.Sent()
	if len(sent) != 2 || sent[1] != notification.TemplateWaitlistAssigned {
		t.Errorf("expected waitlist-added then waitlist-assigned notifications, got %v", sent)
	}
}

func TestProcessWaitlist_HonorsPreferredDoctor(t *testing.T) {
	f := newServiceFixture(t)
	// The preferred doctor scores lower but must still win.
	preferred := f.addAvailableDoctor(t, 1)
	_ = f.addAvailableDoctor(t, 20)
	ctx := context.Background()

	if _, err := f.svc.AddToWaitlist(ctx, WaitlistRequest{
		PatientID:         42,
		SpecialtyID:       1,
		PreferredDoctorID: &preferred.ID,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	results, err := f.svc.ProcessWaitlist(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(results))
	}
	if results[0].DoctorID != preferred.ID {
		t.Errorf("placed with doctor %d, want the preferred %d", results[0].DoctorID, preferred.ID)
	}
}

func TestProcessWaitlist_UnplaceableEntryStaysWaiting(t *testing.T) {
	f := newServiceFixture(t)
	// No doctors at all.
	ctx := context.Background()

	entry, err := f.svc.AddToWaitlist(ctx, WaitlistRequest{PatientID: 42, SpecialtyID: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	results, err := f.svc.ProcessWaitlist(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no placements, got %d", len(results))
	}

	got, _ := f.svc.GetWaitlistEntry(ctx, entry.ID)
	if got.Status != WaitlistWaiting {
		t.Errorf("entry status = %s, want waiting", got.Status)
	}

	// Running the sweep again changes nothing.
	results, err = f.svc.ProcessWaitlist(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("idempotent sweep placed %d entries", len(results))
	}
}

func TestProcessWaitlist_PriorityOrderUnderScarcity(t *testing.T) {
	f := newServiceFixture(t)
	// One doctor with exactly one bookable hour at the default sweep window.
	doc := addDoctor(t, f.doctors, 1, 5)
	// Tuesday 08:00-09:00 only (sweep targets Tuesday 08:00).
	addRecurringRule(t, f.rules, doc.ID, 2, 480, 540, true)
	ctx := context.Background()

	low, err := f.svc.AddToWaitlist(ctx, WaitlistRequest{PatientID: 1, SpecialtyID: 1, Priority: 2})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	high, err := f.svc.AddToWaitlist(ctx, WaitlistRequest{PatientID: 2, SpecialtyID: 1, Priority: 5})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	results, err := f.svc.ProcessWaitlist(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one placement, got %d", len(results))
	}
	if results[0].Entry.ID != high.ID {
		t.Errorf("the high-priority entry must win the scarce slot")
	}

	got, _ := f.svc.GetWaitlistEntry(ctx, low.ID)
	if got.Status != WaitlistWaiting {
		t.Errorf("low-priority entry status = %s, want waiting", got.Status)
	}
}

func TestAddToWaitlist_ClampsPriority(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	entry, err := f.svc.AddToWaitlist(ctx, WaitlistRequest{PatientID: 1, SpecialtyID: 1, Priority: 99})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if entry.Priority != 5 {
		t.Errorf("priority = %d, want clamped to 5", entry.Priority)
	}

	entry, err = f.svc.AddToWaitlist(ctx, WaitlistRequest{PatientID: 2, SpecialtyID: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if entry.Priority != 1 {
		t.Errorf("priority = %d, want floor 1", entry.Priority)
	}
	if entry.Type != VisitInPerson {
		t.Errorf("type = %s, want default in-person", entry.Type)
	}
}

func TestAssignOptimalDoctor_RejectsInvertedWindow(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.AssignOptimalDoctor(context.Background(), 1, monday.Add(time.Hour), monday)
	if err == nil {
		t.Fatal("expected error for inverted window")
	}
}

func TestIsDoctorAvailable(t *testing.T) {
	f := newServiceFixture(t)
	doc := addDoctor(t, f.doctors, 1, 5)
	addRecurringRule(t, f.rules, doc.ID, 1, 540, 1020, true)

	ok, err := f.svc.IsDoctorAvailable(context.Background(), doc.ID, monday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected doctor available on Monday")
	}

	ok, err = f.svc.IsDoctorAvailable(context.Background(), doc.ID, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected doctor unavailable on Tuesday")
	}
}
