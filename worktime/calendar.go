// Package worktime measures elapsed working time on a fixed weekday calendar
// and rounds durations into the half-day and half-hour buckets used by reports.
package worktime

import (
	"errors"
	"fmt"
	"time"
)

// Default work calendar values.
const (
	DefaultStartHour      = 9
	DefaultEndHour        = 18
	DefaultLunchThreshold = 6 * time.Hour
	DefaultLunch          = time.Hour

	// MaxSpanDays bounds the day-by-day walk. Ten years of calendar days.
	MaxSpanDays = 3660
)

var (
	// ErrNegativeSpan is returned when end is before start.
	ErrNegativeSpan = errors.New("worktime: end before start")

	// ErrSpanTooLong is returned when a span covers more than MaxSpanDays.
	ErrSpanTooLong = errors.New("worktime: span too long")
)

// Calendar describes a working week: Monday to Friday between StartHour and
// EndHour in Location, with Lunch deducted from any day whose clipped work
// window is longer than LunchThreshold.
type Calendar struct {
	StartHour      int
	EndHour        int
	LunchThreshold time.Duration
	Lunch          time.Duration
	Location       *time.Location
}

// Default returns the 09:00-18:00 UTC calendar with a one hour lunch.
func Default() Calendar {
	return Calendar{
		StartHour:      DefaultStartHour,
		EndHour:        DefaultEndHour,
		LunchThreshold: DefaultLunchThreshold,
		Lunch:          DefaultLunch,
		Location:       time.UTC,
	}
}

// Validate reports whether the calendar hours are usable.
func (c Calendar) Validate() error {
	if c.StartHour < 0 || c.EndHour > 24 || c.StartHour >= c.EndHour {
		return fmt.Errorf("worktime: work hours %02d-%02d are invalid", c.StartHour, c.EndHour)
	}
	if c.Lunch < 0 || c.LunchThreshold < 0 {
		return fmt.Errorf("worktime: lunch settings must not be negative")
	}
	return nil
}

// WorkDay is the business duration of one full working day.
func (c Calendar) WorkDay() time.Duration {
	d := time.Duration(c.EndHour-c.StartHour) * time.Hour
	if d > c.LunchThreshold {
		d -= c.Lunch
	}
	return d
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Business returns the working time elapsed between start and end. Weekend
// days contribute nothing and every working day contributes its work window
// clipped to [start, end], never less than zero.
func (c Calendar) Business(start, end time.Time) (time.Duration, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s > %s", ErrNegativeSpan, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if end.Equal(start) {
		return 0, nil
	}

	loc := c.location()
	start = start.In(loc)
	end = end.In(loc)

	day := startOfDay(start)
	last := startOfDay(end)

	var total time.Duration
	for n := 0; !day.After(last); n++ {
		if n > MaxSpanDays {
			return 0, fmt.Errorf("%w: more than %d days", ErrSpanTooLong, MaxSpanDays)
		}
		if !isWeekend(day) {
			total += c.dayContribution(day, start, end)
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	}

	return total, nil
}

// dayContribution is the lunch-adjusted length of the day's work window
// intersected with [start, end].
func (c Calendar) dayContribution(day, start, end time.Time) time.Duration {
	from := time.Date(day.Year(), day.Month(), day.Day(), c.StartHour, 0, 0, 0, day.Location())
	to := time.Date(day.Year(), day.Month(), day.Day(), c.EndHour, 0, 0, 0, day.Location())

	if start.After(from) {
		from = start
	}
	if end.Before(to) {
		to = end
	}

	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	if d > c.LunchThreshold {
		d -= c.Lunch
	}
	return d
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
