package changelog

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"jira-flow-metrics/status"
	"jira-flow-metrics/worktime"
)

// Accumulator is the time spent in one category.
type Accumulator struct {
	Calendar time.Duration
	Business time.Duration
}

func (a Accumulator) add(b Accumulator) Accumulator {
	return Accumulator{Calendar: a.Calendar + b.Calendar, Business: a.Business + b.Business}
}

// Durations holds one Accumulator per category.
type Durations struct {
	Todo       Accumulator
	InProgress Accumulator
	Hold       Accumulator
	QA         Accumulator
	Done       Accumulator
}

// Of returns the accumulator of c. Unknown yields the zero value.
func (d Durations) Of(c status.Category) Accumulator {
	switch c {
	case status.Todo:
		return d.Todo
	case status.InProgress:
		return d.InProgress
	case status.Hold:
		return d.Hold
	case status.QA:
		return d.QA
	case status.Done:
		return d.Done
	default:
		return Accumulator{}
	}
}

// Total sums every category.
func (d Durations) Total() Accumulator {
	return d.Todo.add(d.InProgress).add(d.Hold).add(d.QA).add(d.Done)
}

func (d Durations) with(c status.Category, a Accumulator) Durations {
	switch c {
	case status.Todo:
		d.Todo = d.Todo.add(a)
	case status.InProgress:
		d.InProgress = d.InProgress.add(a)
	case status.Hold:
		d.Hold = d.Hold.add(a)
	case status.QA:
		d.QA = d.QA.add(a)
	case status.Done:
		d.Done = d.Done.add(a)
	}
	return d
}

// Input is everything Replay needs about one issue.
type Input struct {
	Key        string
	CreatedAt  time.Time
	ResolvedAt *time.Time
	Events     []Event

	// Now closes the last open interval of unresolved issues.
	Now time.Time
}

// Result is the outcome of one replay.
type Result struct {
	// StartedAt is the first move from a not-started category into
	// IN_PROGRESS, or CreatedAt for issues resolved without one. Nil when
	// the issue is open and was never started.
	StartedAt *time.Time
	Durations Durations
	// End is the instant the replay closed the last interval at.
	End time.Time
	// Unmapped lists raw statuses the status map did not recognize.
	Unmapped []string
}

// Replayer folds status events into per-category durations. It holds only
// read-only configuration and may be shared.
type Replayer struct {
	statuses *status.Map
	calendar worktime.Calendar
	log      zerolog.Logger
}

// NewReplayer returns a Replayer for the given status map and work calendar.
func NewReplayer(statuses *status.Map, calendar worktime.Calendar, log zerolog.Logger) *Replayer {
	return &Replayer{statuses: statuses, calendar: calendar, log: log}
}

// state is the fold accumulator. Every step returns a new value.
type state struct {
	current   status.Category
	lastAt    time.Time
	durations Durations
	startedAt *time.Time
	unmapped  []string
}

// Replay walks the status events of in from creation to resolution (or
// in.Now). Events are sorted by time first, so callers may pass them in any
// order. Every instant between creation and the end is attributed to exactly
// one category. Changes after the end still move the current category but
// accrue nothing.
func (r *Replayer) Replay(in Input) (Result, error) {
	events := Sorted(in.Events)

	end := in.Now
	if in.ResolvedAt != nil {
		end = *in.ResolvedAt
	}
	if end.Before(in.CreatedAt) {
		r.log.Debug().Str("issue", in.Key).Time("end", end).Time("created", in.CreatedAt).
			Msg("replay: end precedes creation")
		end = in.CreatedAt
	}

	st := state{current: status.Todo, lastAt: in.CreatedAt}
	for _, ev := range events {
		var err error
		st, err = r.step(st, ev, end)
		if err != nil {
			return Result{}, fmt.Errorf("replay %s: %w", in.Key, err)
		}
	}

	tail, err := r.span(st.lastAt, end)
	if err != nil {
		return Result{}, fmt.Errorf("replay %s: %w", in.Key, err)
	}
	st.durations = st.durations.with(st.current, tail)

	startedAt := st.startedAt
	if startedAt == nil && in.ResolvedAt != nil {
		created := in.CreatedAt
		startedAt = &created
	}

	for _, raw := range st.unmapped {
		r.log.Warn().Str("issue", in.Key).Str("status", raw).Msg("replay: unmapped status")
	}

	return Result{
		StartedAt: startedAt,
		Durations: st.durations,
		End:       end,
		Unmapped:  st.unmapped,
	}, nil
}

func (r *Replayer) step(st state, ev Event, end time.Time) (state, error) {
	if ev.Kind != KindStatus {
		return st, nil
	}

	from, fromOK := r.statuses.Lookup(ev.From)
	to, toOK := r.statuses.Lookup(ev.To)
	if !fromOK {
		st.unmapped = appendUnique(st.unmapped, ev.From)
	}
	if !toOK {
		st.unmapped = appendUnique(st.unmapped, ev.To)
	}

	if st.current == status.Unknown {
		switch {
		case fromOK:
			st.current = from
		case toOK:
			st.current = to
		}
	}

	at := ev.OccurredAt
	if at.After(end) {
		at = end
	}
	if at.After(st.lastAt) {
		acc, err := r.span(st.lastAt, at)
		if err != nil {
			return st, err
		}
		st.durations = st.durations.with(st.current, acc)
		st.lastAt = at
	}

	if st.startedAt == nil && fromOK && from.NotStarted() && toOK && to == status.InProgress {
		started := ev.OccurredAt
		st.startedAt = &started
	}

	if toOK {
		st.current = to
	}

	return st, nil
}

func (r *Replayer) span(from, to time.Time) (Accumulator, error) {
	if !to.After(from) {
		return Accumulator{}, nil
	}
	business, err := r.calendar.Business(from, to)
	if err != nil {
		return Accumulator{}, err
	}
	return Accumulator{Calendar: to.Sub(from), Business: business}, nil
}

func appendUnique(list []string, s string) []string {
	if s == "" || lo.Contains(list, s) {
		return list
	}
	return append(list, s)
}
