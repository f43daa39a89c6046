// Package noshow owns the periodic sweep that closes out stale bookings.
package noshow

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"smartmess/internal/mealtime"
)

var sweptTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mess_no_shows_swept_total",
	Help: "Reservations transitioned to no_show by the sweeper.",
})

// Store is the slice of persistence the sweeper needs.
type Store interface {
	MarkNoShows(ctx context.Context, date string, periods []mealtime.Period) (int64, error)
}

// Sweeper periodically moves today's still-booked reservations whose meal
// window has closed into the terminal no_show state. Each pass is atomic and
// idempotent: it only touches rows still booked, so re-running after a
// successful pass is a no-op and it can never race an attendance transition
// into overwriting it.
type Sweeper struct {
	store    Store
	schedule mealtime.Schedule
	clock    mealtime.Clock
	interval time.Duration
}

// New creates a sweeper. interval <= 0 falls back to 10 minutes; a nil clock
// means wall time.
func New(store Store, schedule mealtime.Schedule, clock mealtime.Clock, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{store: store, schedule: schedule, clock: clock, interval: interval}
}

// Run ticks until ctx is cancelled. A failed pass is logged and retried on
// the next tick; it never takes the process down.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("no-show sweeper started, interval %s", s.interval)
	for {
		select {
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("no-show sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("no-show sweep moved %d reservation(s)", n)
			}
		case <-ctx.Done():
			log.Println("no-show sweeper stopped")
			return
		}
	}
}

// Sweep performs one pass and returns how many reservations it moved.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.clock()
	ended := s.schedule.EndedPeriods(now)
	if len(ended) == 0 {
		return 0, nil
	}
	n, err := s.store.MarkNoShows(ctx, mealtime.Today(now), ended)
	if err != nil {
		return 0, err
	}
	sweptTotal.Add(float64(n))
	return n, nil
}
