// Package sprint generates the fixed-length sprint calendar and classifies
// issues against the tracker's sprints.
package sprint

import (
	"errors"
	"fmt"
	"time"
)

const dayKeyLayout = "2006-01-02"

var (
	// ErrInvalidLength is returned for a sprint length below one day.
	ErrInvalidLength = errors.New("sprint: length must be positive")

	// ErrInvalidAnchor is returned for an anchor sprint number below one.
	ErrInvalidAnchor = errors.New("sprint: anchor number must be at least 1")
)

// Window is one generated sprint. End is exclusive and equals the Start of
// the next window.
type Window struct {
	ID     string
	Label  string
	Number int
	Start  time.Time
	End    time.Time
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Calendar is the contiguous sequence of sprint windows from sprint #1 up to
// a horizon. It is immutable after construction.
type Calendar struct {
	first   time.Time
	length  int
	horizon time.Time
	windows []Window
	byDay   map[string]int
}

// FirstSprintStart extrapolates the start of sprint #1 from any known
// sprint's number and start date.
func FirstSprintStart(number int, start time.Time, lengthDays int) (time.Time, error) {
	if lengthDays < 1 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidLength, lengthDays)
	}
	if number < 1 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidAnchor, number)
	}
	return startOfDay(start).AddDate(0, 0, -(number-1)*lengthDays), nil
}

// Horizon is the default generation bound: the end of the calendar year
// following now.
func Horizon(now time.Time) time.Time {
	return time.Date(now.Year()+2, time.January, 1, 0, 0, 0, 0, now.Location())
}

// FromAnchor derives sprint #1 from an anchor sprint and builds the calendar.
func FromAnchor(number int, start time.Time, lengthDays int, horizon time.Time) (*Calendar, error) {
	first, err := FirstSprintStart(number, start, lengthDays)
	if err != nil {
		return nil, err
	}
	return NewCalendar(first, lengthDays, horizon)
}

// NewCalendar generates windows of lengthDays days starting at first until
// horizon. Days on or after horizon are not indexed.
func NewCalendar(first time.Time, lengthDays int, horizon time.Time) (*Calendar, error) {
	if lengthDays < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, lengthDays)
	}

	first = startOfDay(first)
	horizon = horizon.In(first.Location())

	c := &Calendar{
		first:   first,
		length:  lengthDays,
		horizon: horizon,
		byDay:   make(map[string]int),
	}

	for n := 1; ; n++ {
		start := first.AddDate(0, 0, (n-1)*lengthDays)
		if !start.Before(horizon) {
			break
		}
		w := Window{
			ID:     fmt.Sprintf("sprint-%02d", n),
			Label:  fmt.Sprintf("Sprint %02d", n),
			Number: n,
			Start:  start,
			End:    first.AddDate(0, 0, n*lengthDays),
		}
		c.windows = append(c.windows, w)

		idx := len(c.windows) - 1
		for day := w.Start; day.Before(w.End) && day.Before(horizon); day = day.AddDate(0, 0, 1) {
			c.byDay[day.Format(dayKeyLayout)] = idx
		}
	}

	return c, nil
}

// Find returns the window containing t. The zero time, instants before
// sprint #1 and instants past the horizon have no window.
func (c *Calendar) Find(t time.Time) (Window, bool) {
	if c == nil || t.IsZero() {
		return Window{}, false
	}
	idx, ok := c.byDay[t.In(c.first.Location()).Format(dayKeyLayout)]
	if !ok {
		return Window{}, false
	}
	return c.windows[idx], true
}

// FindPtr is Find for optional instants.
func (c *Calendar) FindPtr(t *time.Time) (Window, bool) {
	if t == nil {
		return Window{}, false
	}
	return c.Find(*t)
}

// ByNumber returns the window of sprint n.
func (c *Calendar) ByNumber(n int) (Window, bool) {
	if c == nil || n < 1 || n > len(c.windows) {
		return Window{}, false
	}
	return c.windows[n-1], true
}

// Windows returns a copy of every generated window.
func (c *Calendar) Windows() []Window {
	if c == nil {
		return nil
	}
	out := make([]Window, len(c.windows))
	copy(out, c.windows)
	return out
}

// First is the start of sprint #1.
func (c *Calendar) First() time.Time { return c.first }

// LengthDays is the configured sprint length.
func (c *Calendar) LengthDays() int { return c.length }

// Horizon is the exclusive generation bound.
func (c *Calendar) Horizon() time.Time { return c.horizon }

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
