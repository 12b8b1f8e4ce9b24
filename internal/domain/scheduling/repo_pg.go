package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Booking Ledger ===========

type bookingLedgerPG struct{ pool *pgxpool.Pool }

func NewBookingLedgerPG(pool *pgxpool.Pool) BookingLedger { return &bookingLedgerPG{pool: pool} }

func (r *bookingLedgerPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const bookingCols = `id, patient_id, doctor_id, specialty_id, start_time, end_time, type, status,
	reason, urgent, priority, auto_assigned, video_url, cancellation_reason, calendar_event_id,
	created_at, updated_at`

func (r *bookingLedgerPG) scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.PatientID, &b.DoctorID, &b.SpecialtyID, &b.StartTime, &b.EndTime,
		&b.Type, &b.Status, &b.Reason, &b.Urgent, &b.Priority, &b.AutoAssigned, &b.VideoURL,
		&b.CancellationReason, &b.CalendarEventID, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

const conflictQuery = `
	SELECT EXISTS (
		SELECT 1 FROM booking
		WHERE doctor_id = $1 AND status <> 'cancelled'
		  AND start_time < $3 AND $2 < end_time
	)`

func (r *bookingLedgerPG) HasConflict(ctx context.Context, doctorID int64, start, end time.Time) (bool, error) {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, conflictQuery, doctorID, start, end).Scan(&exists); err != nil {
		return false, storageErr("conflict check", err)
	}
	return exists, nil
}

// Commit re-checks conflicts and inserts inside one transaction. A
// transaction-scoped advisory lock keyed on the doctor id serialises
// concurrent commits for the same doctor, so two requests for overlapping
// windows cannot both pass the check.
func (r *bookingLedgerPG) Commit(ctx context.Context, b *Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storageErr("begin commit transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, b.DoctorID); err != nil {
		return storageErr("acquire doctor lock", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, conflictQuery, b.DoctorID, b.StartTime, b.EndTime).Scan(&exists); err != nil {
		return storageErr("conflict check", err)
	}
	if exists {
		return conflictErr(b.DoctorID)
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO booking (id, patient_id, doctor_id, specialty_id, start_time, end_time,
			type, status, reason, urgent, priority, auto_assigned, video_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		b.ID, b.PatientID, b.DoctorID, b.SpecialtyID, b.StartTime, b.EndTime,
		b.Type, b.Status, b.Reason, b.Urgent, b.Priority, b.AutoAssigned, b.VideoURL).
		Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return storageErr("insert booking", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit booking", err)
	}
	return nil
}

func (r *bookingLedgerPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := r.scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("booking", id)
		}
		return nil, storageErr("load booking", err)
	}
	return b, nil
}

func (r *bookingLedgerPG) Update(ctx context.Context, b *Booking) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE booking SET status=$2, reason=$3, urgent=$4, priority=$5, video_url=$6,
			cancellation_reason=$7, calendar_event_id=$8, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Status, b.Reason, b.Urgent, b.Priority, b.VideoURL,
		b.CancellationReason, b.CalendarEventID)
	if err != nil {
		return storageErr("update booking", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("booking", b.ID)
	}
	return nil
}

func (r *bookingLedgerPG) ListActiveInRange(ctx context.Context, doctorID int64, from, to time.Time) ([]*Booking, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM booking
		WHERE doctor_id = $1 AND status <> 'cancelled'
		  AND start_time < $3 AND $2 < end_time
		ORDER BY start_time ASC`,
		doctorID, from, to)
	if err != nil {
		return nil, storageErr("list bookings", err)
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, storageErr("scan booking", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate bookings", err)
	}
	return items, nil
}

func (r *bookingLedgerPG) CountInRange(ctx context.Context, doctorID int64, from, to time.Time) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM booking
		WHERE doctor_id = $1 AND status <> 'cancelled'
		  AND start_time >= $2 AND start_time < $3`,
		doctorID, from, to).Scan(&count)
	if err != nil {
		return 0, storageErr("count bookings", err)
	}
	return count, nil
}

// =========== Waitlist Queue ===========

type waitlistQueuePG struct{ pool *pgxpool.Pool }

func NewWaitlistQueuePG(pool *pgxpool.Pool) WaitlistQueue { return &waitlistQueuePG{pool: pool} }

func (r *waitlistQueuePG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const waitlistCols = `id, patient_id, specialty_id, preferred_doctor_id, preferred_date, type,
	reason, urgent, priority, position, status, booking_id, notes, created_at, updated_at`

func (r *waitlistQueuePG) scanEntry(row pgx.Row) (*WaitlistEntry, error) {
	var w WaitlistEntry
	err := row.Scan(&w.ID, &w.PatientID, &w.SpecialtyID, &w.PreferredDoctorID, &w.PreferredDate,
		&w.Type, &w.Reason, &w.Urgent, &w.Priority, &w.Position, &w.Status, &w.BookingID,
		&w.Notes, &w.CreatedAt, &w.UpdatedAt)
	return &w, err
}

// Enqueue computes the position inside the insert so concurrent enqueues for
// one specialty cannot read the same maximum.
func (r *waitlistQueuePG) Enqueue(ctx context.Context, req WaitlistRequest) (*WaitlistEntry, error) {
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
		Status:            WaitlistWaiting,
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO waitlist (id, patient_id, specialty_id, preferred_doctor_id, preferred_date,
			type, reason, urgent, priority, position, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist
			 WHERE specialty_id = $3 AND status = 'waiting'),
			'waiting')
		RETURNING position, created_at, updated_at`,
		entry.ID, entry.PatientID, entry.SpecialtyID, entry.PreferredDoctorID, entry.PreferredDate,
		entry.Type, entry.Reason, entry.Urgent, entry.Priority).
		Scan(&entry.Position, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, storageErr("enqueue waitlist entry", err)
	}
	return entry, nil
}

func (r *waitlistQueuePG) DequeueOrderedBatch(ctx context.Context) ([]*WaitlistEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+waitlistCols+` FROM waitlist
		WHERE status = 'waiting'
		ORDER BY priority DESC, position ASC`)
	if err != nil {
		return nil, storageErr("list waiting entries", err)
	}
	defer rows.Close()
	var items []*WaitlistEntry
	for rows.Next() {
		w, err := r.scanEntry(rows)
		if err != nil {
			return nil, storageErr("scan waitlist entry", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate waitlist entries", err)
	}
	return items, nil
}

func (r *waitlistQueuePG) Resolve(ctx context.Context, entryID, bookingID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE waitlist SET status='assigned', booking_id=$2, position=NULL, updated_at=NOW()
		WHERE id = $1 AND status = 'waiting'`,
		entryID, bookingID)
	if err != nil {
		return storageErr("resolve waitlist entry", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("waiting entry", entryID)
	}
	return nil
}

func (r *waitlistQueuePG) GetByID(ctx context.Context, id uuid.UUID) (*WaitlistEntry, error) {
	w, err := r.scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+waitlistCols+` FROM waitlist WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr("waitlist entry", id)
		}
		return nil, storageErr("load waitlist entry", err)
	}
	return w, nil
}

func (r *waitlistQueuePG) Cancel(ctx context.Context, entryID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE waitlist SET status='cancelled', position=NULL, updated_at=NOW()
		WHERE id = $1 AND status = 'waiting'`,
		entryID)
	if err != nil {
		return storageErr("cancel waitlist entry", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("waiting entry", entryID)
	}
	return nil
}
