package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBookingLedger is a map-backed BookingLedger for development mode and
// tests. Commit serialises per doctor with a dedicated mutex, giving the same
// no-double-booking guarantee as the Postgres advisory lock.
type MemoryBookingLedger struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*Booking
	doctorMu map[int64]*sync.Mutex
	clock    Clock
}

func NewMemoryBookingLedger(clock Clock) *MemoryBookingLedger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryBookingLedger{
		bookings: make(map[uuid.UUID]*Booking),
		doctorMu: make(map[int64]*sync.Mutex),
		clock:    clock,
	}
}

func (l *MemoryBookingLedger) lockDoctor(doctorID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.doctorMu[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.doctorMu[doctorID] = m
	}
	return m
}

func (l *MemoryBookingLedger) hasConflictLocked(doctorID int64, start, end time.Time) bool {
	for _, b := range l.bookings {
		if b.DoctorID == doctorID && b.IsActive() && b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (l *MemoryBookingLedger) HasConflict(_ context.Context, doctorID int64, start, end time.Time) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hasConflictLocked(doctorID, start, end), nil
}

func (l *MemoryBookingLedger) Commit(_ context.Context, b *Booking) error {
	m := l.lockDoctor(b.DoctorID)
	m.Lock()
	defer m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hasConflictLocked(b.DoctorID, b.StartTime, b.EndTime) {
		return conflictErr(b.DoctorID)
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := l.clock.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	stored := *b
	l.bookings[b.ID] = &stored
	return nil
}

func (l *MemoryBookingLedger) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.bookings[id]
	if !ok {
		return nil, notFoundErr("booking", id)
	}
	out := *b
	return &out, nil
}

func (l *MemoryBookingLedger) Update(_ context.Context, b *Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bookings[b.ID]; !ok {
		return notFoundErr("booking", b.ID)
	}
	b.UpdatedAt = l.clock.Now()
	stored := *b
	l.bookings[b.ID] = &stored
	return nil
}

func (l *MemoryBookingLedger) ListActiveInRange(_ context.Context, doctorID int64, from, to time.Time) ([]*Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var items []*Booking
	for _, b := range l.bookings {
		if b.DoctorID == doctorID && b.IsActive() && b.Overlaps(from, to) {
			out := *b
			items = append(items, &out)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
	return items, nil
}

func (l *MemoryBookingLedger) CountInRange(_ context.Context, doctorID int64, from, to time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	count := 0
	for _, b := range l.bookings {
		if b.DoctorID == doctorID && b.IsActive() &&
			!b.StartTime.Before(from) && b.StartTime.Before(to) {
			count++
		}
	}
	return count, nil
}

// MemoryWaitlistQueue is a map-backed WaitlistQueue for development mode and
// tests. One mutex guards positions so enqueues never hand out the same one.
type MemoryWaitlistQueue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*WaitlistEntry
	clock   Clock
}

func NewMemoryWaitlistQueue(clock Clock) *MemoryWaitlistQueue {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryWaitlistQueue{entries: make(map[uuid.UUID]*WaitlistEntry), clock: clock}
}

func (q *MemoryWaitlistQueue) Enqueue(_ context.Context, req WaitlistRequest) (*WaitlistEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	maxPos := 0
	for _, e := range q.entries {
		if e.SpecialtyID == req.SpecialtyID && e.IsWaiting() && e.Position != nil && *e.Position > maxPos {
			maxPos = *e.Position
		}
	}
	pos := maxPos + 1
	now := q.clock.Now()
	entry := &WaitlistEntry{
		ID:                uuid.New(),
		PatientID:         req.PatientID,
		SpecialtyID:       req.SpecialtyID,
		PreferredDoctorID: req.PreferredDoctorID,
		PreferredDate:     req.PreferredDate,
		Type:              req.Type,
		Reason:            req.Reason,
		Urgent:            req.Urgent,
		Priority:          req.Priority,
		Position:          &pos,
		Status:            WaitlistWaiting,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	stored := *entry
	q.entries[entry.ID] = &stored
	return entry, nil
}

func (q *MemoryWaitlistQueue) DequeueOrderedBatch(_ context.Context) ([]*WaitlistEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var items []*WaitlistEntry
	for _, e := range q.entries {
		if e.IsWaiting() {
			out := *e
			items = append(items, &out)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return *items[i].Position < *items[j].Position
	})
	return items, nil
}

func (q *MemoryWaitlistQueue) Resolve(_ context.Context, entryID, bookingID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[entryID]
	if !ok || !e.IsWaiting() {
		return notFoundErr("waiting entry", entryID)
	}
	e.Status = WaitlistAssigned
	e.BookingID = &bookingID
	e.Position = nil
	e.UpdatedAt = q.clock.Now()
	return nil
}

func (q *MemoryWaitlistQueue) GetByID(_ context.Context, id uuid.UUID) (*WaitlistEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return nil, notFoundErr("waitlist entry", id)
	}
	out := *e
	return &out, nil
}

func (q *MemoryWaitlistQueue) Cancel(_ context.Context, entryID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[entryID]
	if !ok || !e.IsWaiting() {
		return notFoundErr("waiting entry", entryID)
	}
	e.Status = WaitlistCancelled
	e.Position = nil
	e.UpdatedAt = q.clock.Now()
	return nil
}
