package mess

import (
	"context"

	"smartmess/internal/mealtime"
)

// EffectiveCapacity is the booking ceiling for a mess: the nominal capacity,
// inflated by floor(capacity * fraction) when the buffer policy is on.
func (s *Service) EffectiveCapacity(m *Mess) int {
	if s.policy.BufferEnabled {
		return m.MaxCapacity + int(float64(m.MaxCapacity)*s.policy.BufferFraction)
	}
	return m.MaxCapacity
}

// BookedCount counts live bookings for (mess, period, date).
func (s *Service) BookedCount(ctx context.Context, messID int64, period mealtime.Period, date string) (int, error) {
	return s.store.CountReservations(ctx, messID, period, date, StatusBooked)
}

// AttendedCount counts consumed bookings for (mess, period, date).
func (s *Service) AttendedCount(ctx context.Context, messID int64, period mealtime.Period, date string) (int, error) {
	return s.store.CountReservations(ctx, messID, period, date, StatusAttended)
}

// RemainingCapacity is effective capacity minus booked count. Seats are
// reserved at booking time, so attended rows do not free capacity.
// The mess is full at zero or below.
func (s *Service) RemainingCapacity(ctx context.Context, m *Mess, period mealtime.Period, date string) (int, error) {
	booked, err := s.BookedCount(ctx, m.ID, period, date)
	if err != nil {
		return 0, err
	}
	return s.EffectiveCapacity(m) - booked, nil
}
