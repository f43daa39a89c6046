package mess

import (
	"errors"
	"time"

	"smartmess/internal/mealtime"
)

// Status tracks a reservation through its one-way state machine:
// booked -> attended (success) or booked -> no_show (failure). Both
// attended and no_show are terminal.
type Status string

const (
	StatusBooked   Status = "booked"
	StatusAttended Status = "attended"
	StatusNoShow   Status = "no_show"
)

// Domain errors surfaced to the API layer. All are expected, caller-facing
// conditions and are never retried.
var (
	ErrStudentNotFound  = errors.New("student not found")
	ErrMessNotFound     = errors.New("mess not found")
	ErrDuplicateBooking = errors.New("meal already booked for this period")
	ErrIneligibleYear   = errors.New("student year not allowed for this mess")
	ErrMessFull         = errors.New("mess capacity reached")
	ErrAlreadyAttended  = errors.New("attendance already marked")
	ErrMarkedNoShow     = errors.New("reservation already closed as no-show")
	ErrNoBookingFound   = errors.New("no booking found for this meal")
	ErrBookingClosed    = errors.New("booking closed for this period")
	ErrWindowClosed     = errors.New("entry window closed for this period")
)

// Student is a diner. Immutable after creation as far as this service is
// concerned.
type Student struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Year   int    `json:"year"`
	Hostel string `json:"hostel"`
}

// Mess is a dining hall with a nominal seat capacity and a single eligible
// academic year.
type Mess struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AllowedYear int    `json:"allowed_year"`
	MaxCapacity int    `json:"max_capacity"`
}

// Reservation is a student's intent to eat one meal on one date. At most one
// exists per (student, period, date); the store enforces that uniqueness.
type Reservation struct {
	ID        string          `json:"id"`
	StudentID int64           `json:"student_id"`
	MessID    int64           `json:"mess_id"`
	Period    mealtime.Period `json:"meal_period"`
	Date      string          `json:"date"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// AttendanceLog is the append-only audit record of an actual entry. Written
// exactly once per booked->attended transition, never mutated.
type AttendanceLog struct {
	ID         string          `json:"id"`
	StudentID  int64           `json:"student_id"`
	MessID     int64           `json:"mess_id"`
	Period     mealtime.Period `json:"meal_period"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EntryResult is returned to the scanner on a successful (or idempotently
// rejected) entry.
type EntryResult struct {
	Message   string          `json:"message"`
	Status    Status          `json:"status"`
	Period    mealtime.Period `json:"meal_period"`
	Timestamp time.Time       `json:"timestamp"`
}

// MessCount summarizes one mess for the current period.
type MessCount struct {
	MessID    int64  `json:"mess_id"`
	MessName  string `json:"mess_name"`
	Booked    int    `json:"booked"`
	Attended  int    `json:"attended"`
	Remaining int    `json:"remaining_capacity"`
}

// StudentSummary aggregates a student's attendance history.
type StudentSummary struct {
	StudentID      int64 `json:"student_id"`
	TotalMeals     int   `json:"total_meals"`
	BreakfastCount int   `json:"breakfast_count"`
	LunchCount     int   `json:"lunch_count"`
	DinnerCount    int   `json:"dinner_count"`
}

// NoShowRecord identifies a reservation that was swept to no_show.
type NoShowRecord struct {
	StudentID   int64           `json:"student_id"`
	StudentName string          `json:"student_name"`
	Period      mealtime.Period `json:"meal_period"`
	Date        string          `json:"date"`
}
