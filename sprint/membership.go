package sprint

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"jira-flow-metrics/changelog"
)

// Change is one changelog entry of an issue's sprint membership. From is the
// membership before the entry, IDs the membership after it.
type Change struct {
	At   time.Time
	From []int
	IDs  []int
}

// History is an issue's membership changes in ascending time order.
type History []Change

// HistoryFrom extracts the sprint membership changes from an issue's events.
// A payload that is not a list of integers fails the whole history: the
// issue cannot be classified reliably.
func HistoryFrom(events []changelog.Event) (History, error) {
	var h History
	for _, ev := range changelog.Sorted(events) {
		if ev.Kind != changelog.KindSprint {
			continue
		}
		from, err := ev.PriorSprintIDs()
		if err != nil {
			return nil, fmt.Errorf("membership change at %s: %w", ev.OccurredAt.Format(time.RFC3339), err)
		}
		ids, err := ev.SprintIDs()
		if err != nil {
			return nil, fmt.Errorf("membership change at %s: %w", ev.OccurredAt.Format(time.RFC3339), err)
		}
		h = append(h, Change{At: ev.OccurredAt, From: from, IDs: ids})
	}
	return h, nil
}

// AsOf returns the membership at t: the one set by the last change at or
// before t, or else the membership the first later change started from. The
// boolean is false when the history is empty.
func (h History) AsOf(t time.Time) ([]int, bool) {
	var (
		last  Change
		found bool
	)
	for _, c := range h {
		if c.At.After(t) {
			break
		}
		last, found = c, true
	}
	if !found && len(h) > 0 {
		// The first later change still tells what the membership was before it.
		return h[0].From, true
	}
	return last.IDs, found
}

// IDs is every sprint id mentioned by any change, in first-seen order.
func (h History) IDs() []int {
	return lo.Uniq(lo.FlatMap(h, func(c Change, _ int) []int { return append(append([]int{}, c.From...), c.IDs...) }))
}
