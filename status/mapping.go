package status

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateStatus is returned when one raw status is listed under two
// categories.
var ErrDuplicateStatus = errors.New("status: raw status mapped to more than one category")

// Map resolves normalized raw statuses to categories. It is immutable after
// construction and safe to share.
type Map struct {
	byStatus map[string]Category
}

// NewMap builds a Map from a category key to the raw status labels of that
// category, e.g. {"IN_PROGRESS": {"In Progress", "In Review"}}. Labels are
// normalized before indexing, so "In Progress" and "IN-PROGRESS" collide.
func NewMap(mapping map[string][]string) (*Map, error) {
	m := &Map{byStatus: make(map[string]Category)}

	// Deterministic iteration so the reported conflict is stable.
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		cat, err := ParseCategory(key)
		if err != nil {
			return nil, err
		}
		for _, raw := range mapping[key] {
			norm := Normalize(raw)
			if norm == "" {
				continue
			}
			if prev, ok := m.byStatus[norm]; ok && prev != cat {
				return nil, fmt.Errorf("%w: %q is both %s and %s", ErrDuplicateStatus, raw, prev, cat)
			}
			m.byStatus[norm] = cat
		}
	}

	return m, nil
}

// CategoryOf returns the category of an already normalized status. The
// boolean is false for empty or unmapped statuses.
func (m *Map) CategoryOf(normalized string) (Category, bool) {
	if m == nil || normalized == "" {
		return Unknown, false
	}
	cat, ok := m.byStatus[normalized]
	return cat, ok
}

// Lookup normalizes raw and returns its category.
func (m *Map) Lookup(raw string) (Category, bool) {
	return m.CategoryOf(Normalize(raw))
}

// Statuses returns the normalized statuses of cat, sorted.
func (m *Map) Statuses(cat Category) []string {
	var out []string
	for s, c := range m.byStatus {
		if c == cat {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
