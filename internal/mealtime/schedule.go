package mealtime

import (
	"errors"
	"fmt"
	"time"
)

// Period identifies one of the three daily meal services.
type Period string

const (
	Breakfast Period = "breakfast"
	Lunch     Period = "lunch"
	Dinner    Period = "dinner"
)

// Periods lists all periods in service order. The fallback rule in
// CurrentPeriod depends on this ordering.
var Periods = []Period{Breakfast, Lunch, Dinner}

// ErrNoActivePeriod is returned when the clock matches no entry window and
// every booking cutoff has passed. Callers must surface it, not default it.
var ErrNoActivePeriod = errors.New("no active or upcoming meal period")

// Clock supplies the current instant. Production wiring uses time.Now;
// tests and demo runs inject a fixed instant.
type Clock func() time.Time

// FixedClock returns a clock pinned to the given instant.
func FixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

// TimeOfDay is a wall-clock time within a day, second granularity.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) seconds() int { return t.Hour*3600 + t.Minute*60 }

func secondsOfDay(at time.Time) int {
	return at.Hour()*3600 + at.Minute()*60 + at.Second()
}

// Window is the closed interval during which entry to a meal is served.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Schedule maps each period to its entry window and booking cutoff.
// The three windows are expected to be disjoint.
type Schedule struct {
	Windows map[Period]Window
	Cutoffs map[Period]TimeOfDay
}

// DefaultSchedule mirrors the standard mess timings: breakfast 07:00-09:00
// (cutoff 06:00), lunch 12:00-14:00 (cutoff 10:00), dinner 19:00-21:00
// (cutoff 16:00).
func DefaultSchedule() Schedule {
	return Schedule{
		Windows: map[Period]Window{
			Breakfast: {Start: TimeOfDay{7, 0}, End: TimeOfDay{9, 0}},
			Lunch:     {Start: TimeOfDay{12, 0}, End: TimeOfDay{14, 0}},
			Dinner:    {Start: TimeOfDay{19, 0}, End: TimeOfDay{21, 0}},
		},
		Cutoffs: map[Period]TimeOfDay{
			Breakfast: {6, 0},
			Lunch:     {10, 0},
			Dinner:    {16, 0},
		},
	}
}

// CurrentPeriod classifies now: the period whose entry window contains it,
// otherwise the first period (in service order) whose cutoff has not passed.
func (s Schedule) CurrentPeriod(now time.Time) (Period, error) {
	for _, p := range Periods {
		if s.WithinWindow(p, now) {
			return p, nil
		}
	}
	for _, p := range Periods {
		if s.BeforeCutoff(p, now) {
			return p, nil
		}
	}
	return "", ErrNoActivePeriod
}

// WithinWindow reports whether now falls inside the period's entry window,
// boundaries inclusive.
func (s Schedule) WithinWindow(p Period, now time.Time) bool {
	w, ok := s.Windows[p]
	if !ok {
		return false
	}
	sec := secondsOfDay(now)
	return w.Start.seconds() <= sec && sec <= w.End.seconds()
}

// BeforeCutoff reports whether booking is still open for the period.
func (s Schedule) BeforeCutoff(p Period, now time.Time) bool {
	c, ok := s.Cutoffs[p]
	if !ok {
		return false
	}
	return secondsOfDay(now) <= c.seconds()
}

// WindowEnded reports whether the period's entry window is fully over,
// which is the condition for sweeping its bookings to no-show.
func (s Schedule) WindowEnded(p Period, now time.Time) bool {
	w, ok := s.Windows[p]
	if !ok {
		return false
	}
	return secondsOfDay(now) > w.End.seconds()
}

// EndedPeriods returns every period whose window is over at now.
func (s Schedule) EndedPeriods(now time.Time) []Period {
	var ended []Period
	for _, p := range Periods {
		if s.WindowEnded(p, now) {
			ended = append(ended, p)
		}
	}
	return ended
}

// Today formats the calendar date of now as the canonical YYYY-MM-DD key
// used for reservation uniqueness.
func Today(now time.Time) string {
	return now.Format("2006-01-02")
}
