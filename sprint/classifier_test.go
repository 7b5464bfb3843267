package sprint

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-flow-metrics/changelog"
)

func at(s string) *time.Time {
	t := date(s)
	return &t
}

func closedSprint(id int, start, end string) Sprint {
	return Sprint{ID: id, Name: "Sprint 1", State: StateClosed, StartedAt: at(start), EndedAt: at(end)}
}

func membership(when string, to string) changelog.Event {
	return move(when, "", to)
}

func move(when, from, to string) changelog.Event {
	return changelog.Event{OccurredAt: date(when), Kind: changelog.KindSprint, From: from, To: to}
}

func history(t *testing.T, events ...changelog.Event) History {
	t.Helper()
	h, err := HistoryFrom(events)
	require.NoError(t, err)
	return h
}

func TestIsCommitted(t *testing.T) {
	t.Parallel()

	sp := closedSprint(10, "2024-03-04", "2024-03-18")

	tests := []struct {
		name    string
		subject Subject
		want    bool
	}{
		{
			name: "member before start",
			subject: Subject{
				CreatedAt: date("2024-02-01"),
				History:   history(t, membership("2024-03-01", "10")),
			},
			want: true,
		},
		{
			name: "added on start day",
			subject: Subject{
				CreatedAt: date("2024-02-01"),
				History:   history(t, membership("2024-03-04", "9, 10")),
			},
			want: true,
		},
		{
			name: "last change before start excludes sprint",
			subject: Subject{
				CreatedAt:        date("2024-02-01"),
				CurrentSprintIDs: []int{10},
				History: history(t,
					membership("2024-02-20", "10"),
					membership("2024-03-01", "9"),
					membership("2024-03-06", "10"),
				),
			},
			want: false,
		},
		{
			name: "only added after start",
			subject: Subject{
				CreatedAt:        date("2024-02-01"),
				CurrentSprintIDs: []int{10},
				History:          history(t, membership("2024-03-06", "10")),
			},
			want: false,
		},
		{
			name: "carried over, first change after start",
			subject: Subject{
				CreatedAt:        date("2024-02-01"),
				CurrentSprintIDs: []int{10, 11},
				History:          history(t, move("2024-03-18", "10", "10, 11")),
			},
			want: true,
		},
		{
			name: "moved in from another sprint after start",
			subject: Subject{
				CreatedAt:        date("2024-02-01"),
				CurrentSprintIDs: []int{10},
				History:          history(t, move("2024-03-06", "9", "10")),
			},
			want: false,
		},
		{
			name: "history before start, created after start",
			subject: Subject{
				CreatedAt: date("2024-03-05"),
				History:   history(t, membership("2024-03-05", "10")),
			},
			want: false,
		},
		{
			name: "no history, current member created before start",
			subject: Subject{
				CreatedAt:        date("2024-02-01"),
				CurrentSprintIDs: []int{10},
			},
			want: true,
		},
		{
			name: "no history, created after start",
			subject: Subject{
				CreatedAt:        date("2024-03-05"),
				CurrentSprintIDs: []int{10},
			},
			want: false,
		},
		{
			name: "no history, not a member",
			subject: Subject{
				CreatedAt:        date("2024-02-01"),
				CurrentSprintIDs: []int{11},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCommitted(tt.subject, sp))
		})
	}
}

func TestIsCommitted_FutureSprint(t *testing.T) {
	t.Parallel()

	sp := Sprint{ID: 12, Name: "Sprint 12", State: StateFuture}
	s := Subject{CreatedAt: date("2024-01-01"), CurrentSprintIDs: []int{12}}
	assert.False(t, IsCommitted(s, sp))
	assert.False(t, IsDelivered(s, sp))
}

func TestIsDelivered(t *testing.T) {
	t.Parallel()

	sp := closedSprint(10, "2024-03-04", "2024-03-18")
	completed := sp
	completed.CompletedAt = at("2024-03-20")

	tests := []struct {
		name     string
		sprint   Sprint
		resolved *time.Time
		want     bool
	}{
		{"unresolved", sp, nil, false},
		{"resolved inside", sp, at("2024-03-10"), true},
		{"resolved at start", sp, at("2024-03-04"), true},
		{"resolved at end", sp, at("2024-03-18"), true},
		{"resolved before start", sp, at("2024-03-01"), false},
		{"resolved after end", sp, at("2024-03-19"), false},
		{"completion extends end", completed, at("2024-03-19"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Subject{CreatedAt: date("2024-02-01"), ResolvedAt: tt.resolved}
			assert.Equal(t, tt.want, IsDelivered(s, tt.sprint))
		})
	}
}

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog([]Sprint{
		closedSprint(10, "2024-03-04", "2024-03-18"),
		closedSprint(11, "2024-03-18", "2024-04-01"),
	}, nil)
	c := NewClassifier(catalog, zerolog.Nop())

	s := Subject{
		Key:              "PRJ-1",
		CreatedAt:        date("2024-02-01"),
		ResolvedAt:       at("2024-03-25"),
		CurrentSprintIDs: []int{11},
		History: history(t,
			membership("2024-03-01", "10"),
			membership("2024-03-17", "10, 99"),
			membership("2024-03-17", "11"),
		),
	}

	verdicts, orphans := c.Classify(s)
	assert.Equal(t, []int{99}, orphans)
	require.Len(t, verdicts, 2)

	assert.Equal(t, 10, verdicts[0].Sprint.ID)
	assert.True(t, verdicts[0].Committed)
	assert.False(t, verdicts[0].Delivered)

	assert.Equal(t, 11, verdicts[1].Sprint.ID)
	assert.True(t, verdicts[1].Committed)
	assert.True(t, verdicts[1].Delivered)
}

func TestHistoryFrom(t *testing.T) {
	t.Parallel()

	h, err := HistoryFrom([]changelog.Event{
		membership("2024-03-05", "11"),
		{OccurredAt: date("2024-03-02"), Kind: changelog.KindStatus, From: "To Do", To: "Done"},
		membership("2024-03-01", "10"),
		membership("2024-03-09", ""),
	})
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, []int{10, 11}, h.IDs())

	ids, ok := h.AsOf(date("2024-03-06"))
	require.True(t, ok)
	assert.Equal(t, []int{11}, ids)

	ids, ok = h.AsOf(date("2024-02-28"))
	require.True(t, ok)
	assert.Empty(t, ids, "membership the first change started from")

	_, ok = History(nil).AsOf(date("2024-02-28"))
	assert.False(t, ok)

	h, err = HistoryFrom([]changelog.Event{move("2024-03-18", "10", "10, 11")})
	require.NoError(t, err)
	assert.Equal(t, []int{10}, h[0].From)
	assert.Equal(t, []int{10, 11}, h.IDs())
	ids, ok = h.AsOf(date("2024-03-04"))
	require.True(t, ok)
	assert.Equal(t, []int{10}, ids)

	_, err = HistoryFrom([]changelog.Event{membership("2024-03-01", "Sprint 4")})
	require.ErrorIs(t, err, changelog.ErrMalformedMembership)

	_, err = HistoryFrom([]changelog.Event{move("2024-03-01", "Sprint 3", "10")})
	require.ErrorIs(t, err, changelog.ErrMalformedMembership)
}

func TestSprint_Names(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		display string
		actual  bool
	}{
		{"Sprint 7", "Sprint 07", true},
		{"sprint 12 - payments", "Sprint 12", true},
		{"Team A Sprint 3", "Sprint 03", true},
		{"Hardening", "Hardening", false},
	}
	for _, tt := range tests {
		s := Sprint{Name: tt.name}
		assert.Equal(t, tt.display, s.DisplayName(), tt.name)
		assert.Equal(t, tt.actual, s.IsActual(), tt.name)
	}
}

func TestCatalog_CalendarFallback(t *testing.T) {
	t.Parallel()

	cal, err := NewCalendar(date("2024-01-01"), 14, date("2025-01-01"))
	require.NoError(t, err)

	catalog := NewCatalog([]Sprint{
		{ID: 1, Name: "Sprint 3", State: StateClosed},
		{ID: 2, Name: "Sprint 4", State: StateFuture},
		{ID: 3, Name: "Spike week", State: StateActive},
	}, cal)

	s, ok := catalog.Get(1)
	require.True(t, ok)
	require.NotNil(t, s.StartedAt)
	require.NotNil(t, s.EndedAt)
	assert.Equal(t, date("2024-01-29"), *s.StartedAt)
	assert.Equal(t, date("2024-02-12"), *s.EndedAt)

	s, _ = catalog.Get(2)
	assert.Nil(t, s.StartedAt)

	s, _ = catalog.Get(3)
	assert.Nil(t, s.StartedAt)

	assert.Equal(t, 3, catalog.Len())
	assert.Equal(t, []int{1, 2, 3}, []int{catalog.Sprints()[0].ID, catalog.Sprints()[1].ID, catalog.Sprints()[2].ID})
}
