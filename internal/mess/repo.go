package mess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"smartmess/internal/mealtime"
)

// Repository persists mess data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the schema when missing. Statements run one at a time;
// pgx's extended protocol rejects multi-statement strings.
func (r *Repository) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS students (
			id     BIGSERIAL PRIMARY KEY,
			name   TEXT NOT NULL,
			year   INT NOT NULL,
			hostel TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messes (
			id           BIGSERIAL PRIMARY KEY,
			name         TEXT NOT NULL,
			allowed_year INT NOT NULL,
			max_capacity INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id          TEXT PRIMARY KEY,
			student_id  BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			mess_id     BIGINT NOT NULL REFERENCES messes(id) ON DELETE CASCADE,
			meal_period TEXT NOT NULL,
			date        TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'booked',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_student_meal_per_day UNIQUE (student_id, meal_period, date)
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_logs (
			id          TEXT PRIMARY KEY,
			student_id  BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			mess_id     BIGINT NOT NULL REFERENCES messes(id) ON DELETE CASCADE,
			meal_period TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_mess_period ON reservations(mess_id, meal_period, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_date_status ON reservations(date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_student ON attendance_logs(student_id)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// GetStudent returns a student by id, nil when unknown.
func (r *Repository) GetStudent(ctx context.Context, id int64) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, year, hostel FROM students WHERE id = $1
	`, id)
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.Year, &s.Hostel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetMess returns a mess by id, nil when unknown.
func (r *Repository) GetMess(ctx context.Context, id int64) (*Mess, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, allowed_year, max_capacity FROM messes WHERE id = $1
	`, id)
	var m Mess
	if err := row.Scan(&m.ID, &m.Name, &m.AllowedYear, &m.MaxCapacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListMesses returns all messes ordered by id.
func (r *Repository) ListMesses(ctx context.Context) ([]Mess, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, allowed_year, max_capacity FROM messes ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Mess
	for rows.Next() {
		var m Mess
		if err := rows.Scan(&m.ID, &m.Name, &m.AllowedYear, &m.MaxCapacity); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// GetReservation returns the reservation for (student, period, date), nil
// when none exists.
func (r *Repository) GetReservation(ctx context.Context, studentID int64, period mealtime.Period, date string) (*Reservation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, mess_id, meal_period, date, status, created_at
		FROM reservations
		WHERE student_id = $1 AND meal_period = $2 AND date = $3
	`, studentID, period, date)
	return scanReservation(row)
}

func scanReservation(row *sql.Row) (*Reservation, error) {
	var res Reservation
	if err := row.Scan(&res.ID, &res.StudentID, &res.MessID, &res.Period, &res.Date, &res.Status, &res.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// CreateReservation inserts a booked reservation. When limit > 0 the insert
// runs behind a lock on the mess row so the recount-then-insert cannot race
// another booking for the same mess past the ceiling. A unique violation on
// (student, period, date) maps to ErrDuplicateBooking.
func (r *Repository) CreateReservation(ctx context.Context, res *Reservation, limit int) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if res.Status == "" {
		res.Status = StatusBooked
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if limit > 0 {
		// Serializes concurrent bookings per mess; the recount below is then
		// stable until commit.
		var locked int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM messes WHERE id = $1 FOR UPDATE`, res.MessID).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMessNotFound
			}
			return fmt.Errorf("lock mess %d: %w", res.MessID, err)
		}
		var booked int
		row := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM reservations
			WHERE mess_id = $1 AND meal_period = $2 AND date = $3 AND status = $4
		`, res.MessID, res.Period, res.Date, StatusBooked)
		if err := row.Scan(&booked); err != nil {
			return fmt.Errorf("count booked: %w", err)
		}
		if booked >= limit {
			return ErrMessFull
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, student_id, mess_id, meal_period, date, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, res.ID, res.StudentID, res.MessID, res.Period, res.Date, res.Status, res.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return tx.Commit()
}

// MarkAttended flips a booked reservation to attended and appends exactly one
// log row, both in one transaction. The conditional update only matches rows
// still booked, so a concurrent sweep or double scan cannot produce a second
// transition.
func (r *Repository) MarkAttended(ctx context.Context, res *Reservation, at time.Time) (*AttendanceLog, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE reservations SET status = $1 WHERE id = $2 AND status = $3
	`, StatusAttended, res.ID, StatusBooked)
	if err != nil {
		return nil, fmt.Errorf("mark attended: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var status Status
		row := tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = $1`, res.ID)
		if err := row.Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNoBookingFound
			}
			return nil, err
		}
		switch status {
		case StatusAttended:
			return nil, ErrAlreadyAttended
		case StatusNoShow:
			return nil, ErrMarkedNoShow
		default:
			return nil, fmt.Errorf("reservation %s in unexpected status %q", res.ID, status)
		}
	}

	entry := AttendanceLog{
		ID:         uuid.NewString(),
		StudentID:  res.StudentID,
		MessID:     res.MessID,
		Period:     res.Period,
		OccurredAt: at,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO attendance_logs (id, student_id, mess_id, meal_period, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
	`, entry.ID, entry.StudentID, entry.MessID, entry.Period, entry.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("insert attendance log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	res.Status = StatusAttended
	return &entry, nil
}

// CountReservations counts reservations in one status for (mess, period, date).
func (r *Repository) CountReservations(ctx context.Context, messID int64, period mealtime.Period, date string, status Status) (int, error) {
	var n int
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE mess_id = $1 AND meal_period = $2 AND date = $3 AND status = $4
	`, messID, period, date, status)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// StudentSummary aggregates a student's attendance logs per period.
func (r *Repository) StudentSummary(ctx context.Context, studentID int64) (*StudentSummary, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE meal_period = 'breakfast'),
		       COUNT(*) FILTER (WHERE meal_period = 'lunch'),
		       COUNT(*) FILTER (WHERE meal_period = 'dinner')
		FROM attendance_logs WHERE student_id = $1
	`, studentID)
	sum := StudentSummary{StudentID: studentID}
	if err := row.Scan(&sum.TotalMeals, &sum.BreakfastCount, &sum.LunchCount, &sum.DinnerCount); err != nil {
		return nil, err
	}
	return &sum, nil
}

// NoShows lists reservations swept to no_show for (period, date), joined
// with the student name for the dashboard.
func (r *Repository) NoShows(ctx context.Context, period mealtime.Period, date string) ([]NoShowRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT res.student_id, s.name, res.meal_period, res.date
		FROM reservations res
		JOIN students s ON s.id = res.student_id
		WHERE res.date = $1 AND res.meal_period = $2 AND res.status = $3
		ORDER BY res.student_id
	`, date, period, StatusNoShow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []NoShowRecord
	for rows.Next() {
		var rec NoShowRecord
		if err := rows.Scan(&rec.StudentID, &rec.StudentName, &rec.Period, &rec.Date); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// MarkNoShows moves still-booked reservations for the ended periods to
// no_show in a single statement, so a run is atomic and rows being attended
// concurrently are left alone.
func (r *Repository) MarkNoShows(ctx context.Context, date string, periods []mealtime.Period) (int64, error) {
	if len(periods) == 0 {
		return 0, nil
	}
	query := `UPDATE reservations SET status = $1 WHERE date = $2 AND status = $3 AND meal_period IN (`
	args := []any{StatusNoShow, date, StatusBooked}
	for i, p := range periods {
		if i > 0 {
			query += ","
		}
		query += fmt.Sprintf("$%d", len(args)+1)
		args = append(args, p)
	}
	query += ")"

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark no-shows: %w", err)
	}
	return result.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
