// Package changelog replays an issue's field-change history into the time
// spent in each workflow category.
package changelog

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedMembership is returned when a sprint membership payload holds
// something other than comma separated integers.
var ErrMalformedMembership = errors.New("changelog: malformed sprint membership")

// Kind identifies the field an Event changed.
type Kind int

const (
	// KindOther is any field the replay does not care about.
	KindOther Kind = iota
	// KindStatus events carry raw status labels in From and To.
	KindStatus
	// KindSprint events carry comma joined sprint ids in From and To.
	KindSprint
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindSprint:
		return "sprint"
	default:
		return "other"
	}
}

// Event is one immutable field transition from the tracker's audit log.
type Event struct {
	OccurredAt time.Time
	Kind       Kind
	From       string
	To         string
}

// SprintIDs parses the membership list of a KindSprint event, i.e. the
// sprints the issue belongs to after the change. An empty list is valid.
func (e Event) SprintIDs() ([]int, error) {
	return parseIDs(e.To)
}

// PriorSprintIDs parses the membership list of a KindSprint event before the
// change.
func (e Event) PriorSprintIDs() ([]int, error) {
	return parseIDs(e.From)
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedMembership, s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Sorted returns a copy of events ordered by OccurredAt. Events sharing a
// timestamp keep their emission order.
func Sorted(events []Event) []Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b Event) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})
	return out
}

// IsSorted reports whether events are in non-decreasing time order.
func IsSorted(events []Event) bool {
	return slices.IsSortedFunc(events, func(a, b Event) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})
}
