package noshow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartmess/internal/mealtime"
)

type fakeReservation struct {
	period mealtime.Period
	date   string
	status string
}

// fakeStore holds reservations keyed by id and applies MarkNoShows the way
// the repository does: only rows still booked move.
type fakeStore struct {
	mu           sync.Mutex
	reservations map[string]*fakeReservation
	calls        int
}

func (f *fakeStore) MarkNoShows(_ context.Context, date string, periods []mealtime.Period) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	ended := make(map[mealtime.Period]bool, len(periods))
	for _, p := range periods {
		ended[p] = true
	}
	var n int64
	for _, r := range f.reservations {
		if r.date == date && r.status == "booked" && ended[r.period] {
			r.status = "no_show"
			n++
		}
	}
	return n, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{reservations: map[string]*fakeReservation{
		"breakfast-1": {period: mealtime.Breakfast, date: "2026-03-14", status: "booked"},
		"lunch-1":     {period: mealtime.Lunch, date: "2026-03-14", status: "booked"},
		"lunch-2":     {period: mealtime.Lunch, date: "2026-03-14", status: "attended"},
		"dinner-1":    {period: mealtime.Dinner, date: "2026-03-14", status: "booked"},
	}}
}

func sweeperAt(store Store, hour, min int) *Sweeper {
	now := time.Date(2026, 3, 14, hour, min, 0, 0, time.UTC)
	return New(store, mealtime.DefaultSchedule(), mealtime.FixedClock(now), time.Minute)
}

func TestSweep_MovesOnlyEndedBookedRows(t *testing.T) {
	store := newFakeStore()
	s := sweeperAt(store, 15, 0) // breakfast and lunch windows are over

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, "no_show", store.reservations["breakfast-1"].status)
	assert.Equal(t, "no_show", store.reservations["lunch-1"].status)
	assert.Equal(t, "attended", store.reservations["lunch-2"].status)
	assert.Equal(t, "booked", store.reservations["dinner-1"].status)
}

func TestSweep_Idempotent(t *testing.T) {
	store := newFakeStore()
	s := sweeperAt(store, 15, 0)
	ctx := context.Background()

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "attended", store.reservations["lunch-2"].status)
}

func TestSweep_BeforeAnyWindowCloses(t *testing.T) {
	store := newFakeStore()
	s := sweeperAt(store, 6, 30)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	// No ended periods means the store is never touched.
	assert.Zero(t, store.calls)
	assert.Equal(t, "booked", store.reservations["breakfast-1"].status)
}

func TestSweep_AfterDinnerClosesEverything(t *testing.T) {
	store := newFakeStore()
	s := sweeperAt(store, 21, 30)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "no_show", store.reservations["dinner-1"].status)
	assert.Equal(t, "attended", store.reservations["lunch-2"].status)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := newFakeStore()
	s := New(store, mealtime.DefaultSchedule(),
		mealtime.FixedClock(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)),
		5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Let at least one tick fire, then stop.
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.GreaterOrEqual(t, store.calls, 1)
	assert.Equal(t, "no_show", store.reservations["lunch-1"].status)
}
