package sprint

import (
	"sort"

	"github.com/samber/lo"
)

// Catalog indexes the tracker's sprints by id. Sprints without dates are
// completed from the calendar when their name carries a number.
type Catalog struct {
	byID map[int]Sprint
}

// NewCatalog builds a catalog. cal may be nil, which disables the date
// fallback. Later duplicates of an id replace earlier ones.
func NewCatalog(sprints []Sprint, cal *Calendar) *Catalog {
	c := &Catalog{byID: make(map[int]Sprint, len(sprints))}
	for _, s := range sprints {
		c.byID[s.ID] = s.withCalendarDates(cal)
	}
	return c
}

// Get returns the sprint with the given id.
func (c *Catalog) Get(id int) (Sprint, bool) {
	if c == nil {
		return Sprint{}, false
	}
	s, ok := c.byID[id]
	return s, ok
}

// Len is the number of known sprints.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}

// Sprints returns every known sprint ordered by id.
func (c *Catalog) Sprints() []Sprint {
	if c == nil {
		return nil
	}
	out := lo.Values(c.byID)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve splits ids into known sprints (ordered by id) and orphan ids.
func (c *Catalog) Resolve(ids []int) (found []Sprint, orphans []int) {
	for _, id := range lo.Uniq(ids) {
		if s, ok := c.Get(id); ok {
			found = append(found, s)
			continue
		}
		orphans = append(orphans, id)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	sort.Ints(orphans)
	return found, orphans
}
