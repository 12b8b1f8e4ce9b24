package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Attempt records one delivery attempt for an event, kept for inspection via
// the admin surface.
type Attempt struct {
	ID        uuid.UUID     `json:"id"`
	BookingID uuid.UUID     `json:"booking_id"`
	Action    string        `json:"action"`
	Attempt   int           `json:"attempt"`
	EventID   string        `json:"event_id,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Status    string        `json:"status"` // "success" or "failed"
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SyncedFunc is invoked after a create or update succeeds, with the
// provider-side event id. Wired to the booking ledger so the external id
// survives restarts.
type SyncedFunc func(ctx context.Context, bookingID uuid.UUID, eventID string)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxRetries sets how many times an event is attempted before being
// dropped.
func WithMaxRetries(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxRetries = n }
}

// WithRetryDelays sets the wait before each retry.
func WithRetryDelays(delays []time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.retryDelays = delays }
}

// WithQueueSize sets the pending-event buffer.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.queueSize = n }
}

// Dispatcher delivers events to a Syncer from a background worker with
// retries. Enqueue never blocks the caller beyond the channel send; when the
// buffer is full the event is dropped and logged, matching the best-effort
// contract.
type Dispatcher struct {
	syncer      Syncer
	log         zerolog.Logger
	onSynced    SyncedFunc
	maxRetries  int
	retryDelays []time.Duration
	queueSize   int

	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup

	mu       sync.RWMutex
	attempts []Attempt
}

func NewDispatcher(syncer Syncer, log zerolog.Logger, onSynced SyncedFunc, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		syncer:      syncer,
		log:         log,
		onSynced:    onSynced,
		maxRetries:  3,
		retryDelays: []time.Duration{time.Second, 10 * time.Second, time.Minute},
		queueSize:   256,
	}
	for _, o := range opts {
		o(d)
	}
	d.queue = make(chan Event, d.queueSize)
	d.done = make(chan struct{})
	return d
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop drains nothing: pending events are abandoned, consistent with
// best-effort delivery. Blocks until the worker exits.
func (d *Dispatcher) Stop() {
	close(d.done)
	d.wg.Wait()
}

// Enqueue hands an event to the background worker. Invalid events and a full
// buffer are logged and dropped.
func (d *Dispatcher) Enqueue(ev Event) {
	if err := ev.Validate(); err != nil {
		d.log.Warn().Err(err).Stringer("booking_id", ev.BookingID).Msg("dropping invalid calendar event")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.log.Warn().Stringer("booking_id", ev.BookingID).Str("action", ev.Action).
			Msg("calendar queue full, dropping event")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case ev := <-d.queue:
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		start := time.Now()
		eventID, err := d.syncer.Sync(context.Background(), ev)
		rec := Attempt{
			ID:        uuid.New(),
			BookingID: ev.BookingID,
			Action:    ev.Action,
			Attempt:   attempt,
			EventID:   eventID,
			Duration:  time.Since(start),
			CreatedAt: time.Now(),
		}

		if err == nil {
			rec.Status = "success"
			d.record(rec)
			if ev.Action != ActionDelete && d.onSynced != nil {
				d.onSynced(context.Background(), ev.BookingID, eventID)
			}
			return
		}

		rec.Status = "failed"
		rec.Error = err.Error()
		d.record(rec)
		d.log.Warn().Err(err).
			Stringer("booking_id", ev.BookingID).
			Str("action", ev.Action).
			Int("attempt", attempt).
			Msg("calendar sync attempt failed")

		if attempt < d.maxRetries {
			delay := d.retryDelays[len(d.retryDelays)-1]
			if attempt-1 < len(d.retryDelays) {
				delay = d.retryDelays[attempt-1]
			}
			select {
			case <-d.done:
				return
			case <-time.After(delay):
			}
		}
	}
	d.log.Error().
		Stringer("booking_id", ev.BookingID).
		Str("action", ev.Action).
		Msg("calendar sync abandoned after retries")
}

func (d *Dispatcher) record(a Attempt) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts = append(d.attempts, a)
	// Bounded log, oldest attempts drop first.
	if len(d.attempts) > 1000 {
		d.attempts = d.attempts[len(d.attempts)-1000:]
	}
}

// Attempts returns a copy of the recorded delivery attempts, newest last.
func (d *Dispatcher) Attempts() []Attempt {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Attempt, len(d.attempts))
	copy(out, d.attempts)
	return out
}
