// Package report turns fetched issues and pull requests into report rows and
// writes them as CSV, JSON and console tables.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"jira-flow-metrics/changelog"
	"jira-flow-metrics/jira"
	"jira-flow-metrics/metrics"
	"jira-flow-metrics/sprint"
	"jira-flow-metrics/status"
	"jira-flow-metrics/telemetry"
	"jira-flow-metrics/worktime"
)

// Report names used for logging and telemetry labels.
const (
	Issues       = "issues"
	Sprints      = "sprints"
	PullRequests = "pullrequests"
)

// IssueSource yields issue snapshots with their changelog.
type IssueSource interface {
	FetchIssues(ctx context.Context) ([]jira.Issue, error)
}

// SprintSource yields the sprints of a board, including those no fetched
// issue references.
type SprintSource interface {
	BoardSprints(ctx context.Context) ([]sprint.Sprint, error)
}

// PullRequestSource yields pull requests of one code host.
type PullRequestSource interface {
	FetchPullRequests(ctx context.Context) ([]metrics.PullRequest, error)
}

// Sources groups the collaborators of one run. Sprints and PullRequests are
// optional.
type Sources struct {
	Issues       IssueSource
	Sprints      SprintSource
	PullRequests []PullRequestSource
}

// Options holds the run-wide calculation settings.
type Options struct {
	Statuses        *status.Map
	WorkCalendar    worktime.Calendar
	Calendar        *sprint.Calendar
	CalendarBuckets metrics.Buckets
	BusinessBuckets metrics.Buckets
	Users           metrics.Users
	Recorder        *telemetry.Recorder
	Log             zerolog.Logger
}

// Report is the outcome of one run.
type Report struct {
	Issues             []metrics.IssueMetrics `json:"-"`
	IssueRecords       []metrics.Record       `json:"issues"`
	SprintRecords      []metrics.Record       `json:"sprints"`
	PullRequests       []metrics.PullRequest  `json:"-"`
	PullRequestRecords []metrics.Record       `json:"pull_requests"`
	Catalog            *sprint.Catalog        `json:"-"`
	Summary            metrics.TeamMetrics    `json:"summary"`
}

// Processor assembles report rows. It holds no per-run state and can be
// reused.
type Processor struct {
	opts Options
	log  zerolog.Logger
}

// NewProcessor returns a Processor.
func NewProcessor(opts Options) *Processor {
	return &Processor{opts: opts, log: opts.Log.With().Str("component", "report").Logger()}
}

// Run fetches from every source and computes the full report. A source that
// fails aborts the run, while an entity that cannot be computed is skipped.
func (p *Processor) Run(ctx context.Context, src Sources, now time.Time) (*Report, error) {
	var issues []jira.Issue
	if src.Issues != nil {
		var err error
		if issues, err = src.Issues.FetchIssues(ctx); err != nil {
			return nil, fmt.Errorf("fetch issues: %w", err)
		}
		p.log.Info().Int("count", len(issues)).Msg("fetched issues")
	}

	var boardSprints []sprint.Sprint
	if src.Sprints != nil {
		var err error
		if boardSprints, err = src.Sprints.BoardSprints(ctx); err != nil {
			return nil, fmt.Errorf("fetch sprints: %w", err)
		}
	}

	var prs []metrics.PullRequest
	for _, s := range src.PullRequests {
		fetched, err := s.FetchPullRequests(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch pull requests: %w", err)
		}
		prs = append(prs, fetched...)
	}

	rep := p.ProcessIssues(issues, boardSprints, now)
	rep.PullRequests, rep.PullRequestRecords = p.ProcessPullRequests(prs)
	rep.Summary = metrics.CalculateTeamMetrics(rep.Issues, rep.PullRequests, p.opts.CalendarBuckets, p.opts.WorkCalendar, now)
	return rep, nil
}

// Catalog merges the board sprints with the sprints the issues reference.
// A board entry wins over an issue's copy of the same sprint.
func (p *Processor) Catalog(issues []jira.Issue, boardSprints []sprint.Sprint) *sprint.Catalog {
	all := append([]sprint.Sprint(nil), boardSprints...)
	for _, issue := range issues {
		all = append(all, issue.Sprints...)
	}
	all = lo.UniqBy(all, func(s sprint.Sprint) int { return s.ID })
	return sprint.NewCatalog(all, p.opts.Calendar)
}

// ProcessIssues computes issue and sprint rows. now closes the open interval
// of unresolved issues.
func (p *Processor) ProcessIssues(issues []jira.Issue, boardSprints []sprint.Sprint, now time.Time) *Report {
	defer p.opts.Recorder.Time(Issues)()

	catalog := p.Catalog(issues, boardSprints)
	assembler := metrics.NewAssembler(metrics.AssemblerOptions{
		Replayer:        changelog.NewReplayer(p.opts.Statuses, p.opts.WorkCalendar, p.log),
		Classifier:      sprint.NewClassifier(catalog, p.log),
		Calendar:        p.opts.Calendar,
		WorkCalendar:    p.opts.WorkCalendar,
		CalendarBuckets: p.opts.CalendarBuckets,
		BusinessBuckets: p.opts.BusinessBuckets,
		Users:           p.opts.Users,
		Log:             p.log,
	})

	rep := &Report{Catalog: catalog}
	for _, issue := range issues {
		m, err := assembler.Assemble(issue, now)
		if err != nil {
			p.log.Warn().Err(err).Str("issue", issue.Key).Msg("skipping issue")
			p.opts.Recorder.Skipped(Issues)
			continue
		}

		rep.Issues = append(rep.Issues, m)
		rep.IssueRecords = append(rep.IssueRecords, assembler.IssueRecord(m))
		sprintRows := assembler.SprintRecords(m)
		rep.SprintRecords = append(rep.SprintRecords, sprintRows...)

		p.opts.Recorder.Processed(Issues)
		for range sprintRows {
			p.opts.Recorder.Processed(Sprints)
		}
		p.opts.Recorder.UnmappedStatuses(len(m.Replay.Unmapped))
		p.opts.Recorder.OrphanSprints(len(m.Orphans))
		if m.LeadTime != nil {
			p.opts.Recorder.LeadTime(m.LeadTime.Calendar)
		}
	}

	p.log.Info().
		Int("issues", len(rep.IssueRecords)).
		Int("sprint_rows", len(rep.SprintRecords)).
		Int("skipped", len(issues)-len(rep.Issues)).
		Msg("processed issues")
	return rep
}

// ProcessPullRequests computes pull request rows. With a configured user
// list, pull requests of other authors are dropped.
func (p *Processor) ProcessPullRequests(prs []metrics.PullRequest) ([]metrics.PullRequest, []metrics.Record) {
	defer p.opts.Recorder.Time(PullRequests)()

	var kept []metrics.PullRequest
	var records []metrics.Record
	for _, pr := range prs {
		user := p.author(pr.Author)
		if user == nil && p.opts.Users.Restricted() {
			p.log.Debug().Str("author", pr.Author).Int("number", pr.Number).Msg("ignoring pull request of unknown author")
			continue
		}

		r, err := metrics.PullRequestRecord(pr, user, p.opts.WorkCalendar)
		if err != nil {
			p.log.Warn().Err(err).Str("repository", pr.Repository).Int("number", pr.Number).Msg("skipping pull request")
			p.opts.Recorder.Skipped(PullRequests)
			continue
		}
		if user != nil {
			pr.Author = user.Name
		}
		kept = append(kept, pr)
		records = append(records, r)
		p.opts.Recorder.Processed(PullRequests)
	}
	return kept, records
}

func (p *Processor) author(handle string) *metrics.User {
	if u, ok := p.opts.Users.ByGitHub(handle); ok {
		return &u
	}
	if u, ok := p.opts.Users.ByBitbucket(handle); ok {
		return &u
	}
	return nil
}
