package mess

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartmess/internal/mealtime"
)

// SeedDemo populates empty tables with demo students, messes, and a week of
// attended lunch history for the first student. No-op when data exists.
func (r *Repository) SeedDemo(ctx context.Context, now time.Time) error {
	var students int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&students); err != nil {
		return fmt.Errorf("seed: count students: %w", err)
	}

	var firstStudent int64
	if students == 0 {
		demo := []Student{
			{Name: "Rahul Kumar", Year: 2, Hostel: "Hostel A"},
			{Name: "Aman Singh", Year: 2, Hostel: "Hostel B"},
			{Name: "Priya Sharma", Year: 2, Hostel: "Hostel C"},
			{Name: "Karan Mehta", Year: 2, Hostel: "Hostel A"},
			{Name: "Neha Verma", Year: 2, Hostel: "Hostel B"},
			{Name: "Arjun Patel", Year: 2, Hostel: "Hostel C"},
		}
		for i, s := range demo {
			var id int64
			err := r.db.QueryRowContext(ctx, `
				INSERT INTO students (name, year, hostel) VALUES ($1,$2,$3) RETURNING id
			`, s.Name, s.Year, s.Hostel).Scan(&id)
			if err != nil {
				return fmt.Errorf("seed student: %w", err)
			}
			if i == 0 {
				firstStudent = id
			}
		}
	}

	var messes int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messes`).Scan(&messes); err != nil {
		return fmt.Errorf("seed: count messes: %w", err)
	}

	var firstMess int64
	if messes == 0 {
		demo := []Mess{
			{Name: "Hostel A Mess", AllowedYear: 2, MaxCapacity: 200},
			{Name: "Hostel B Mess", AllowedYear: 2, MaxCapacity: 180},
			{Name: "Hostel C Mess", AllowedYear: 2, MaxCapacity: 150},
		}
		for i, m := range demo {
			var id int64
			err := r.db.QueryRowContext(ctx, `
				INSERT INTO messes (name, allowed_year, max_capacity) VALUES ($1,$2,$3) RETURNING id
			`, m.Name, m.AllowedYear, m.MaxCapacity).Scan(&id)
			if err != nil {
				return fmt.Errorf("seed mess: %w", err)
			}
			if i == 0 {
				firstMess = id
			}
		}
	}

	if firstStudent == 0 || firstMess == 0 {
		return nil
	}

	// A week of attended lunches so dashboards have history on first boot.
	for i := 0; i < 7; i++ {
		day := now.AddDate(0, 0, -i)
		res := Reservation{
			ID:        uuid.NewString(),
			StudentID: firstStudent,
			MessID:    firstMess,
			Period:    mealtime.Lunch,
			Date:      mealtime.Today(day),
			Status:    StatusAttended,
			CreatedAt: day.UTC(),
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO reservations (id, student_id, mess_id, meal_period, date, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, res.ID, res.StudentID, res.MessID, res.Period, res.Date, res.Status, res.CreatedAt)
		if err != nil {
			return fmt.Errorf("seed history: %w", err)
		}
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO attendance_logs (id, student_id, mess_id, meal_period, occurred_at)
			VALUES ($1,$2,$3,$4,$5)
		`, uuid.NewString(), res.StudentID, res.MessID, res.Period, res.CreatedAt)
		if err != nil {
			return fmt.Errorf("seed history log: %w", err)
		}
	}
	return nil
}
