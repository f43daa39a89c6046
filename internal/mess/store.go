package mess

import (
	"context"
	"time"

	"smartmess/internal/mealtime"
)

// Store is the persistence contract the service runs on. The Postgres
// Repository is the production implementation; tests use an in-memory one.
//
// Lookup methods return (nil, nil) when the row does not exist. The write
// methods carry the atomicity the booking rules need: CreateReservation
// enforces the capacity ceiling and the per-(student, period, date)
// uniqueness inside one transaction, MarkAttended performs the
// booked->attended transition and the log append inside one transaction,
// and MarkNoShows only ever moves rows still observed as booked.
type Store interface {
	GetStudent(ctx context.Context, id int64) (*Student, error)
	GetMess(ctx context.Context, id int64) (*Mess, error)
	ListMesses(ctx context.Context) ([]Mess, error)

	GetReservation(ctx context.Context, studentID int64, period mealtime.Period, date string) (*Reservation, error)

	// CreateReservation inserts res with status booked. A positive limit is
	// the effective capacity ceiling for (mess, period, date); limit <= 0
	// skips capacity enforcement (walk-in path). Returns ErrMessFull or
	// ErrDuplicateBooking.
	CreateReservation(ctx context.Context, res *Reservation, limit int) error

	// MarkAttended transitions res from booked to attended and appends one
	// AttendanceLog stamped at. Returns ErrAlreadyAttended or ErrMarkedNoShow
	// when the reservation is already terminal.
	MarkAttended(ctx context.Context, res *Reservation, at time.Time) (*AttendanceLog, error)

	CountReservations(ctx context.Context, messID int64, period mealtime.Period, date string, status Status) (int, error)
	StudentSummary(ctx context.Context, studentID int64) (*StudentSummary, error)
	NoShows(ctx context.Context, period mealtime.Period, date string) ([]NoShowRecord, error)

	// MarkNoShows moves every reservation on date still booked for one of
	// the given periods to no_show, atomically, returning the count moved.
	MarkNoShows(ctx context.Context, date string, periods []mealtime.Period) (int64, error)
}
