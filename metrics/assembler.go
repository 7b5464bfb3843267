package metrics

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"jira-flow-metrics/changelog"
	"jira-flow-metrics/jira"
	"jira-flow-metrics/sprint"
	"jira-flow-metrics/worktime"
)

// AssemblerOptions wires the collaborators of an Assembler. They are shared
// read-only across issues.
type AssemblerOptions struct {
	Replayer        *changelog.Replayer
	Classifier      *sprint.Classifier
	Calendar        *sprint.Calendar
	WorkCalendar    worktime.Calendar
	CalendarBuckets Buckets
	BusinessBuckets Buckets
	Users           Users
	Log             zerolog.Logger
}

// Assembler turns one issue into its flat report records.
type Assembler struct {
	opts AssemblerOptions
}

// NewAssembler returns an Assembler. Empty bucket sets fall back to
// DefaultBucketBounds.
func NewAssembler(opts AssemblerOptions) *Assembler {
	if len(opts.CalendarBuckets.bounds) == 0 {
		opts.CalendarBuckets = MustBuckets(DefaultBucketBounds)
	}
	if len(opts.BusinessBuckets.bounds) == 0 {
		opts.BusinessBuckets = MustBuckets(DefaultBucketBounds)
	}
	return &Assembler{opts: opts}
}

// IssueMetrics is everything derived for one issue.
type IssueMetrics struct {
	Issue    jira.Issue
	Assignee string
	Replay   changelog.Result
	// LeadTime runs from the start to the resolution. Nil while unresolved.
	LeadTime *changelog.Accumulator

	CreatedSprint  *sprint.Window
	StartedSprint  *sprint.Window
	ResolvedSprint *sprint.Window

	Verdicts []sprint.Verdict
	Orphans  []int
}

// Resolved reports whether the issue has a resolution date.
func (m IssueMetrics) Resolved() bool { return m.Issue.ResolvedAt != nil }

// Committed reports whether the issue was committed to any of its sprints.
func (m IssueMetrics) Committed() bool {
	return lo.SomeBy(m.Verdicts, func(v sprint.Verdict) bool { return v.Committed })
}

// Delivered reports whether the issue was delivered in any of its sprints.
func (m IssueMetrics) Delivered() bool {
	return lo.SomeBy(m.Verdicts, func(v sprint.Verdict) bool { return v.Delivered })
}

// Assemble replays the changelog of issue and classifies it against its
// sprints. now closes the open interval of unresolved issues. An error means
// the issue's data cannot be trusted and the issue should be skipped.
func (a *Assembler) Assemble(issue jira.Issue, now time.Time) (IssueMetrics, error) {
	res, err := a.opts.Replayer.Replay(changelog.Input{
		Key:        issue.Key,
		CreatedAt:  issue.CreatedAt,
		ResolvedAt: issue.ResolvedAt,
		Events:     issue.Events,
		Now:        now,
	})
	if err != nil {
		return IssueMetrics{}, err
	}

	history, err := sprint.HistoryFrom(issue.Events)
	if err != nil {
		return IssueMetrics{}, fmt.Errorf("issue %s: %w", issue.Key, err)
	}

	m := IssueMetrics{
		Issue:    issue,
		Assignee: a.opts.Users.JiraName(issue.AssigneeName()),
		Replay:   res,
	}

	if issue.ResolvedAt != nil && res.StartedAt != nil {
		lead, err := a.span(*res.StartedAt, *issue.ResolvedAt)
		if err != nil {
			return IssueMetrics{}, fmt.Errorf("issue %s: lead time: %w", issue.Key, err)
		}
		m.LeadTime = &lead
	}

	m.CreatedSprint = a.window(&issue.CreatedAt)
	m.StartedSprint = a.window(res.StartedAt)
	m.ResolvedSprint = a.window(issue.ResolvedAt)

	if a.opts.Classifier != nil {
		m.Verdicts, m.Orphans = a.opts.Classifier.Classify(sprint.Subject{
			Key:              issue.Key,
			CreatedAt:        issue.CreatedAt,
			ResolvedAt:       issue.ResolvedAt,
			CurrentSprintIDs: issue.SprintIDs(),
			History:          history,
		})
	}

	return m, nil
}

func (a *Assembler) span(from, to time.Time) (changelog.Accumulator, error) {
	if !to.After(from) {
		return changelog.Accumulator{}, nil
	}
	business, err := a.opts.WorkCalendar.Business(from, to)
	if err != nil {
		return changelog.Accumulator{}, err
	}
	return changelog.Accumulator{Calendar: to.Sub(from), Business: business}, nil
}

func (a *Assembler) window(t *time.Time) *sprint.Window {
	w, ok := a.opts.Calendar.FindPtr(t)
	if !ok {
		return nil
	}
	return &w
}

// IssueRecord renders m as one issue report row.
func (a *Assembler) IssueRecord(m IssueMetrics) Record {
	issue := m.Issue
	r := a.identity(m)

	r["createdWeek"] = worktime.Week(issue.CreatedAt)
	r["createdSprint"] = label(m.CreatedSprint)
	r["startedAt"] = m.Replay.StartedAt
	r["startedSprint"] = label(m.StartedSprint)
	if issue.ResolvedAt != nil {
		r["resolvedWeek"] = worktime.Week(*issue.ResolvedAt)
		r["resolvedMonth"] = worktime.Month(*issue.ResolvedAt)
		r["resolvedQuarter"] = worktime.Quarter(*issue.ResolvedAt)
	}
	r["resolvedSprint"] = label(m.ResolvedSprint)

	if lead := m.LeadTime; lead != nil {
		days := worktime.RoundedDays24h(lead.Calendar)
		businessDays := a.opts.WorkCalendar.RoundedDays(lead.Business)

		r["leadTimeSeconds"] = worktime.Seconds(lead.Calendar)
		r["leadTimeHours"] = worktime.Hours(lead.Calendar)
		r["leadTimeDays"] = days
		r["leadTimeBucket"] = a.opts.CalendarBuckets.Label(days)
		r["businessLeadTimeSeconds"] = worktime.Seconds(lead.Business)
		r["businessLeadTimeHours"] = worktime.Hours(lead.Business)
		r["businessLeadTimeDays"] = businessDays
		r["businessLeadTimeBucket"] = a.opts.BusinessBuckets.Label(businessDays)
	}

	d := m.Replay.Durations
	for prefix, acc := range map[string]changelog.Accumulator{
		"todo":       d.Todo,
		"inProgress": d.InProgress,
		"hold":       d.Hold,
		"qa":         d.QA,
		"done":       d.Done,
	} {
		r[prefix+"Days"] = worktime.RoundedDays24h(acc.Calendar)
		r[prefix+"BusinessDays"] = a.opts.WorkCalendar.RoundedDays(acc.Business)
	}

	r["sprintCount"] = len(m.Verdicts)
	r["isCommitted"] = m.Committed()
	r["isDelivered"] = m.Delivered()

	return r
}

// SprintRecords renders one row per sprint the issue belongs or belonged to.
func (a *Assembler) SprintRecords(m IssueMetrics) []Record {
	estimation := m.Issue.Estimation

	return lo.Map(m.Verdicts, func(v sprint.Verdict, _ int) Record {
		r := a.identity(m)

		r["sprintId"] = v.Sprint.ID
		r["sprintName"] = v.Sprint.DisplayName()
		r["sprintStartedAt"] = v.Sprint.StartedAt
		r["sprintEndedAt"] = v.Sprint.EndedAt
		r["sprintCompletedAt"] = v.Sprint.CompletedAt
		r["isCommitted"] = v.Committed
		r["isDelivered"] = v.Delivered
		r["sprintCommittedStoryPoints"] = lo.Ternary(v.Committed, estimation, 0)
		r["sprintDeliveredStoryPoint"] = lo.Ternary(v.Delivered, estimation, 0)
		r["sprintGoal"] = v.Sprint.Goal

		return r
	})
}

func (a *Assembler) identity(m IssueMetrics) Record {
	issue := m.Issue
	r := Record{
		"id":          issue.ID,
		"key":         issue.Key,
		"type":        issue.Type,
		"status":      issue.Status,
		"summary":     issue.Summary,
		"estimation":  issue.Estimation,
		"timeSpent":   issue.TimeSpent,
		"reporter":    a.opts.Users.JiraName(issue.Reporter.Name),
		"assignee":    m.Assignee,
		"priority":    issue.Priority,
		"link":        issue.Link,
		"createdAt":   issue.CreatedAt,
		"resolvedAt":  issue.ResolvedAt,
		"epicKey":     nil,
		"epicSummary": nil,
	}
	if issue.Epic != nil {
		r["epicKey"] = issue.Epic.Key
		r["epicSummary"] = issue.Epic.Summary
	}
	return r
}

func label(w *sprint.Window) any {
	if w == nil {
		return nil
	}
	return w.Label
}
