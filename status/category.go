// Package status maps tracker-specific status labels onto a small closed set
// of workflow categories.
package status

import (
	"fmt"
	"strings"
)

// Category is a normalized workflow state.
type Category int

// Categories in workflow order. Unknown is the zero value and never
// produced by a Map lookup.
const (
	Unknown Category = iota
	Todo
	InProgress
	Hold
	QA
	Done
)

// Categories lists every real category in workflow order.
var Categories = []Category{Todo, InProgress, Hold, QA, Done}

var categoryNames = map[Category]string{
	Todo:       "TODO",
	InProgress: "IN_PROGRESS",
	Hold:       "HOLD",
	QA:         "QA",
	Done:       "DONE",
}

// String returns the configuration key of c, e.g. IN_PROGRESS.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// NotStarted reports whether work has not begun while in c.
func (c Category) NotStarted() bool {
	return c == Todo || c == Hold
}

// ParseCategory resolves a configuration key such as "in_progress".
func ParseCategory(s string) (Category, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if name == key {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("status: unknown category %q", s)
}
