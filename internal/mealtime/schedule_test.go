package mealtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 3, 14, hour, min, sec, 0, time.UTC)
}

func TestCurrentPeriod_ActiveWindow(t *testing.T) {
	s := DefaultSchedule()

	p, err := s.CurrentPeriod(at(7, 30, 0))
	require.NoError(t, err)
	assert.Equal(t, Breakfast, p)

	p, err = s.CurrentPeriod(at(13, 59, 59))
	require.NoError(t, err)
	assert.Equal(t, Lunch, p)

	p, err = s.CurrentPeriod(at(19, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, Dinner, p)
}

func TestCurrentPeriod_WindowBoundariesInclusive(t *testing.T) {
	s := DefaultSchedule()

	p, err := s.CurrentPeriod(at(9, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, Breakfast, p)

	p, err = s.CurrentPeriod(at(12, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, Lunch, p)
}

func TestCurrentPeriod_CutoffFallback(t *testing.T) {
	s := DefaultSchedule()

	// Early morning, before the breakfast cutoff.
	p, err := s.CurrentPeriod(at(5, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, Breakfast, p)

	// Between breakfast and lunch: breakfast cutoff passed, lunch still open.
	p, err = s.CurrentPeriod(at(9, 30, 0))
	require.NoError(t, err)
	assert.Equal(t, Lunch, p)

	// Mid afternoon: only dinner's cutoff is still ahead.
	p, err = s.CurrentPeriod(at(15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, Dinner, p)
}

func TestCurrentPeriod_NothingLeft(t *testing.T) {
	s := DefaultSchedule()

	_, err := s.CurrentPeriod(at(22, 0, 0))
	assert.ErrorIs(t, err, ErrNoActivePeriod)
}

func TestBeforeCutoff(t *testing.T) {
	s := DefaultSchedule()

	assert.True(t, s.BeforeCutoff(Lunch, at(10, 0, 0)))
	assert.False(t, s.BeforeCutoff(Lunch, at(10, 0, 1)))
	assert.False(t, s.BeforeCutoff(Breakfast, at(8, 0, 0)))
}

func TestWindowEnded(t *testing.T) {
	s := DefaultSchedule()

	assert.False(t, s.WindowEnded(Lunch, at(14, 0, 0)))
	assert.True(t, s.WindowEnded(Lunch, at(14, 0, 1)))
	assert.False(t, s.WindowEnded(Dinner, at(18, 0, 0)))
}

func TestEndedPeriods(t *testing.T) {
	s := DefaultSchedule()

	assert.Nil(t, s.EndedPeriods(at(6, 0, 0)))
	assert.Equal(t, []Period{Breakfast, Lunch}, s.EndedPeriods(at(15, 0, 0)))
	assert.Equal(t, []Period{Breakfast, Lunch, Dinner}, s.EndedPeriods(at(21, 30, 0)))
}

func TestFixedClockAndToday(t *testing.T) {
	instant := at(12, 30, 0)
	clock := FixedClock(instant)

	assert.Equal(t, instant, clock())
	assert.Equal(t, "2026-03-14", Today(clock()))
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("07:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{7, 5}, tod)

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)

	_, err = ParseTimeOfDay("lunchtime")
	assert.Error(t, err)
}
