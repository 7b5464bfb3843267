package sprint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// State is the tracker's sprint lifecycle state.
type State string

const (
	StateFuture State = "future"
	StateActive State = "active"
	StateClosed State = "closed"
)

var numberedName = regexp.MustCompile(`(?i)sprint (\d+)`)

// Sprint is a sprint as the tracker reports it. Dates are nil until the
// tracker sets them.
type Sprint struct {
	ID          int
	Name        string
	State       State
	StartedAt   *time.Time
	EndedAt     *time.Time
	CompletedAt *time.Time
	Goal        string
	BoardID     int
}

// Number extracts n from names like "Sprint 7 - Payments".
func (s Sprint) Number() (int, bool) {
	m := numberedName.FindStringSubmatch(s.Name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DisplayName returns "Sprint NN" for numbered sprints and the raw name
// otherwise.
func (s Sprint) DisplayName() string {
	if n, ok := s.Number(); ok {
		return fmt.Sprintf("Sprint %02d", n)
	}
	return s.Name
}

// IsActual reports whether the sprint follows the numbered naming scheme, as
// opposed to ad-hoc containers like "Backlog grooming".
func (s Sprint) IsActual() bool {
	return strings.HasPrefix(s.DisplayName(), "Sprint ")
}

// EffectiveEnd is the completion date if the sprint was closed, else its
// planned end.
func (s Sprint) EffectiveEnd() *time.Time {
	if s.CompletedAt != nil {
		return s.CompletedAt
	}
	return s.EndedAt
}

// withCalendarDates fills missing boundaries of a numbered, non-future sprint
// from the generated calendar window with the same number.
func (s Sprint) withCalendarDates(cal *Calendar) Sprint {
	if cal == nil || s.State == StateFuture || (s.StartedAt != nil && s.EndedAt != nil) {
		return s
	}
	n, ok := s.Number()
	if !ok {
		return s
	}
	w, ok := cal.ByNumber(n)
	if !ok {
		return s
	}
	if s.StartedAt == nil {
		start := w.Start
		s.StartedAt = &start
	}
	if s.EndedAt == nil {
		end := w.End
		s.EndedAt = &end
	}
	return s
}
