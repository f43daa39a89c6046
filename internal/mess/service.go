package mess

import (
	"context"
	"time"

	"smartmess/internal/mealtime"
)

// Policy holds the toggleable booking and entry rules. The defaults mirror
// the walk-in friendly deployment: cutoff and window enforcement off,
// walk-in auto-creation on, capacity buffer off.
type Policy struct {
	EnforceCutoff bool
	EnforceWindow bool
	AllowWalkIn   bool

	BufferEnabled  bool
	BufferFraction float64
}

// DefaultPolicy returns the demo-friendly defaults.
func DefaultPolicy() Policy {
	return Policy{AllowWalkIn: true, BufferFraction: 0.10}
}

// Service coordinates bookings, entry scans, and capacity enforcement.
type Service struct {
	store    Store
	schedule mealtime.Schedule
	clock    mealtime.Clock
	policy   Policy
}

// NewService creates a service. A nil clock means wall time.
func NewService(store Store, schedule mealtime.Schedule, clock mealtime.Clock, policy Policy) *Service {
	if clock == nil {
		clock = time.Now
	}
	if policy.BufferFraction <= 0 {
		policy.BufferFraction = 0.10
	}
	return &Service{store: store, schedule: schedule, clock: clock, policy: policy}
}

// CreateReservation books the current (or next bookable) meal for a student.
// Validation is fail-fast: period resolution, cutoff (when enforced),
// duplicate, year eligibility, capacity. The store repeats the duplicate and
// capacity checks atomically at insert time, so two concurrent requests for
// the last seat or the same slot cannot both succeed.
func (s *Service) CreateReservation(ctx context.Context, studentID, messID int64) (*Reservation, error) {
	now := s.clock()
	period, err := s.schedule.CurrentPeriod(now)
	if err != nil {
		return nil, err
	}
	date := mealtime.Today(now)

	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	m, err := s.store.GetMess(ctx, messID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMessNotFound
	}

	if s.policy.EnforceCutoff && !s.schedule.BeforeCutoff(period, now) {
		bookingsTotal.WithLabelValues("cutoff").Inc()
		return nil, ErrBookingClosed
	}

	existing, err := s.store.GetReservation(ctx, studentID, period, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		bookingsTotal.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateBooking
	}

	if student.Year != m.AllowedYear {
		bookingsTotal.WithLabelValues("ineligible").Inc()
		return nil, ErrIneligibleYear
	}

	limit := s.EffectiveCapacity(m)
	remaining, err := s.RemainingCapacity(ctx, m, period, date)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		bookingsTotal.WithLabelValues("full").Inc()
		return nil, ErrMessFull
	}

	res := &Reservation{
		StudentID: studentID,
		MessID:    messID,
		Period:    period,
		Date:      date,
		Status:    StatusBooked,
		CreatedAt: now.UTC(),
	}
	if err := s.store.CreateReservation(ctx, res, limit); err != nil {
		switch err {
		case ErrDuplicateBooking:
			bookingsTotal.WithLabelValues("duplicate").Inc()
		case ErrMessFull:
			bookingsTotal.WithLabelValues("full").Inc()
		}
		return nil, err
	}
	bookingsTotal.WithLabelValues("created").Inc()
	return res, nil
}

// RecordEntry consumes a reservation at the mess gate. Without a reservation
// the walk-in policy creates one on the spot (capacity and year checks are
// deliberately skipped on that path); strict deployments disable walk-in and
// get ErrNoBookingFound instead. Scanning twice is rejected idempotently.
func (s *Service) RecordEntry(ctx context.Context, studentID, messID int64) (*EntryResult, error) {
	now := s.clock()
	period, err := s.schedule.CurrentPeriod(now)
	if err != nil {
		return nil, err
	}
	date := mealtime.Today(now)

	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	m, err := s.store.GetMess(ctx, messID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMessNotFound
	}

	res, err := s.store.GetReservation(ctx, studentID, period, date)
	if err != nil {
		return nil, err
	}
	if res == nil {
		if !s.policy.AllowWalkIn {
			scansTotal.WithLabelValues("no_booking").Inc()
			return nil, ErrNoBookingFound
		}
		res = &Reservation{
			StudentID: studentID,
			MessID:    messID,
			Period:    period,
			Date:      date,
			Status:    StatusBooked,
			CreatedAt: now.UTC(),
		}
		if err := s.store.CreateReservation(ctx, res, 0); err != nil {
			if err != ErrDuplicateBooking {
				return nil, err
			}
			// Lost a race against another scan or booking; use theirs.
			res, err = s.store.GetReservation(ctx, studentID, period, date)
			if err != nil {
				return nil, err
			}
			if res == nil {
				return nil, ErrNoBookingFound
			}
		}
	}

	if s.policy.EnforceWindow && !s.schedule.WithinWindow(period, now) {
		scansTotal.WithLabelValues("window_closed").Inc()
		return nil, ErrWindowClosed
	}

	entry, err := s.store.MarkAttended(ctx, res, now.UTC())
	if err != nil {
		if err == ErrAlreadyAttended {
			scansTotal.WithLabelValues("already_attended").Inc()
		}
		return nil, err
	}
	scansTotal.WithLabelValues("attended").Inc()
	return &EntryResult{
		Message:   "attendance marked",
		Status:    StatusAttended,
		Period:    period,
		Timestamp: entry.OccurredAt,
	}, nil
}

// MessCounts summarizes every mess for the current period.
func (s *Service) MessCounts(ctx context.Context) ([]MessCount, error) {
	now := s.clock()
	period, err := s.schedule.CurrentPeriod(now)
	if err != nil {
		return nil, err
	}
	date := mealtime.Today(now)

	messes, err := s.store.ListMesses(ctx)
	if err != nil {
		return nil, err
	}
	counts := make([]MessCount, 0, len(messes))
	for i := range messes {
		m := &messes[i]
		booked, err := s.BookedCount(ctx, m.ID, period, date)
		if err != nil {
			return nil, err
		}
		attended, err := s.AttendedCount(ctx, m.ID, period, date)
		if err != nil {
			return nil, err
		}
		counts = append(counts, MessCount{
			MessID:    m.ID,
			MessName:  m.Name,
			Booked:    booked,
			Attended:  attended,
			Remaining: s.EffectiveCapacity(m) - booked,
		})
	}
	return counts, nil
}

// SummaryFor aggregates a student's attendance history.
func (s *Service) SummaryFor(ctx context.Context, studentID int64) (*StudentSummary, error) {
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	return s.store.StudentSummary(ctx, studentID)
}

// NoShowsToday lists today's no-shows for the current period.
func (s *Service) NoShowsToday(ctx context.Context) ([]NoShowRecord, error) {
	now := s.clock()
	period, err := s.schedule.CurrentPeriod(now)
	if err != nil {
		return nil, err
	}
	return s.store.NoShows(ctx, period, mealtime.Today(now))
}

// StudentByID resolves a student or ErrStudentNotFound.
func (s *Service) StudentByID(ctx context.Context, id int64) (*Student, error) {
	student, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	return student, nil
}
