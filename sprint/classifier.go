package sprint

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Subject is the part of an issue the classifier looks at.
type Subject struct {
	Key        string
	CreatedAt  time.Time
	ResolvedAt *time.Time
	// CurrentSprintIDs is the membership at fetch time. It may lag behind
	// History.
	CurrentSprintIDs []int
	History          History
}

// SprintIDs is the union of the current membership and every sprint the
// history mentions.
func (s Subject) SprintIDs() []int {
	return lo.Uniq(append(append([]int{}, s.CurrentSprintIDs...), s.History.IDs()...))
}

// Verdict is the classification of one issue against one sprint.
type Verdict struct {
	Sprint    Sprint
	Committed bool
	Delivered bool
}

// Classifier decides sprint commitment and delivery.
type Classifier struct {
	catalog *Catalog
	log     zerolog.Logger
}

// NewClassifier returns a classifier over the given catalog.
func NewClassifier(catalog *Catalog, log zerolog.Logger) *Classifier {
	return &Classifier{catalog: catalog, log: log}
}

// Classify returns one verdict per known sprint of s, ordered by sprint id,
// and the ids that match no known sprint. Orphans are logged.
func (c *Classifier) Classify(s Subject) ([]Verdict, []int) {
	sprints, orphans := c.catalog.Resolve(s.SprintIDs())
	for _, id := range orphans {
		c.log.Warn().Str("issue", s.Key).Int("sprint_id", id).Msg("sprint: orphan sprint id")
	}

	verdicts := make([]Verdict, 0, len(sprints))
	for _, sp := range sprints {
		verdicts = append(verdicts, Verdict{
			Sprint:    sp,
			Committed: IsCommitted(s, sp),
			Delivered: IsDelivered(s, sp),
		})
	}
	return verdicts, orphans
}

// IsCommitted reports whether s belonged to sp when sp started. The
// membership history decides when it has one; otherwise the current
// membership counts. Either way the issue must have existed at the start.
func IsCommitted(s Subject, sp Sprint) bool {
	if sp.StartedAt == nil {
		return false
	}
	start := *sp.StartedAt
	if s.CreatedAt.After(start) {
		return false
	}

	if ids, ok := s.History.AsOf(start); ok {
		return lo.Contains(ids, sp.ID)
	}
	return lo.Contains(s.CurrentSprintIDs, sp.ID)
}

// IsDelivered reports whether s was resolved between the start of sp and its
// effective end.
func IsDelivered(s Subject, sp Sprint) bool {
	end := sp.EffectiveEnd()
	if end == nil || s.ResolvedAt == nil || sp.StartedAt == nil {
		return false
	}
	resolved := *s.ResolvedAt
	return !resolved.Before(*sp.StartedAt) && !resolved.After(*end)
}
