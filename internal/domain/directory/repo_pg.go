package directory

import (
	"context"
	"time"

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

// =========== Specialty Repository ===========

type specialtyRepoPG struct{ pool *pgxpool.Pool }

func NewSpecialtyRepoPG(pool *pgxpool.Pool) SpecialtyRepository { return &specialtyRepoPG{pool: pool} }

func (r *specialtyRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const specialtyCols = `id, name, description, active, created_at, updated_at`

func (r *specialtyRepoPG) scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO specialty (name, description, active)
		VALUES ($1,$2,$3) RETURNING id, created_at, updated_at`,
		s.Name, s.Description, s.Active).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id int64) (*Specialty, error) {
	return r.scanSpecialty(r.conn(ctx).QueryRow(ctx, `SELECT `+specialtyCols+` FROM specialty WHERE id = $1`, id))
}

func (r *specialtyRepoPG) Update(ctx context.Context, s *Specialty) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE specialty SET name=$2, description=$3, active=$4, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Description, s.Active)
	return err
}

func (r *specialtyRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM specialty WHERE id = $1`, id)
	return err
}

func (r *specialtyRepoPG) List(ctx context.Context, limit, offset int) ([]*Specialty, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM specialty`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+specialtyCols+` FROM specialty ORDER BY name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Specialty
	for rows.Next() {
		s, err := r.scanSpecialty(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const doctorCols = `id, full_name, specialty_id, license_number, experience_years,
	consultation_minutes, active, created_at, updated_at`

func (r *doctorRepoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FullName, &d.SpecialtyID, &d.LicenseNumber, &d.ExperienceYears,
		&d.ConsultationMinutes, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (full_name, specialty_id, license_number, experience_years, consultation_minutes, active)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
		d.FullName, d.SpecialtyID, d.LicenseNumber, d.ExperienceYears, d.ConsultationMinutes, d.Active).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET full_name=$2, specialty_id=$3, license_number=$4, experience_years=$5,
			consultation_minutes=$6, active=$7, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.FullName, d.SpecialtyID, d.LicenseNumber, d.ExperienceYears,
		d.ConsultationMinutes, d.Active)
	return err
}

func (r *doctorRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	return err
}

func (r *doctorRepoPG) ListBySpecialty(ctx context.Context, specialtyID int64, activeOnly bool) ([]*Doctor, error) {
	query := `SELECT ` + doctorCols + ` FROM doctor WHERE specialty_id = $1`
	if activeOnly {
		query += ` AND active = true`
	}
	query += ` ORDER BY id ASC`
	rows, err := r.conn(ctx).Query(ctx, query, specialtyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctor ORDER BY id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}

// =========== AvailabilityRule Repository ===========

type availabilityRuleRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRuleRepoPG(pool *pgxpool.Pool) AvailabilityRuleRepository {
	return &availabilityRuleRepoPG{pool: pool}
}

func (r *availabilityRuleRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const ruleCols = `id, doctor_id, day_of_week, specific_date, start_minute, end_minute,
	available, notes, created_at, updated_at`

func (r *availabilityRuleRepoPG) scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var a AvailabilityRule
	err := row.Scan(&a.ID, &a.DoctorID, &a.DayOfWeek, &a.SpecificDate, &a.StartMinute, &a.EndMinute,
		&a.Available, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *availabilityRuleRepoPG) Create(ctx context.Context, rule *AvailabilityRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO availability_rule (doctor_id, day_of_week, specific_date, start_minute, end_minute, available, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		rule.DoctorID, rule.DayOfWeek, rule.SpecificDate, rule.StartMinute, rule.EndMinute,
		rule.Available, rule.Notes).
		Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *availabilityRuleRepoPG) GetByID(ctx context.Context, id int64) (*AvailabilityRule, error) {
	return r.scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM availability_rule WHERE id = $1`, id))
}

func (r *availabilityRuleRepoPG) Update(ctx context.Context, rule *AvailabilityRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_rule SET day_of_week=$2, specific_date=$3, start_minute=$4,
			end_minute=$5, available=$6, notes=$7, updated_at=NOW()
		WHERE id = $1`,
		rule.ID, rule.DayOfWeek, rule.SpecificDate, rule.StartMinute, rule.EndMinute,
		rule.Available, rule.Notes)
	return err
}

func (r *availabilityRuleRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_rule WHERE id = $1`, id)
	return err
}

func (r *availabilityRuleRepoPG) ListByDoctor(ctx context.Context, doctorID int64) ([]*AvailabilityRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+` FROM availability_rule WHERE doctor_id = $1 ORDER BY id ASC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*AvailabilityRule
	for rows.Next() {
		a, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *availabilityRuleRepoPG) ListForDate(ctx context.Context, doctorID int64, date time.Time) ([]*AvailabilityRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM availability_rule
		WHERE doctor_id = $1 AND (specific_date = $2 OR (specific_date IS NULL AND day_of_week = $3))
		ORDER BY id ASC`,
		doctorID, date.Format("2006-01-02"), int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*AvailabilityRule
	for rows.Next() {
		a, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
