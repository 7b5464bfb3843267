// Package app wires the configured clients and calculators into a report
// pipeline shared by the CLI and the web service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"jira-flow-metrics/bitbucket"
	"jira-flow-metrics/config"
	"jira-flow-metrics/github"
	"jira-flow-metrics/jira"
	"jira-flow-metrics/report"
	"jira-flow-metrics/telemetry"
)

// Pipeline is one configured report run.
type Pipeline struct {
	Jira      *jira.Client
	Processor *report.Processor
	Sources   report.Sources
	Columns   report.Columns
}

// Selection limits a run to some of the reports.
type Selection struct {
	Issues       bool
	PullRequests bool
}

// All selects every report.
var All = Selection{Issues: true, PullRequests: true}

// New builds the pipeline for cfg. now fixes the horizon of the sprint
// calendar.
func New(cfg *config.Config, sel Selection, rec *telemetry.Recorder, log zerolog.Logger, now time.Time) (*Pipeline, error) {
	statuses, err := cfg.StatusMap()
	if err != nil {
		return nil, err
	}
	types, err := cfg.TypeMapper()
	if err != nil {
		return nil, err
	}
	users, err := cfg.Team()
	if err != nil {
		return nil, err
	}
	work, err := cfg.BusinessCalendar()
	if err != nil {
		return nil, err
	}
	cal, err := cfg.SprintCalendar(now)
	if err != nil {
		return nil, err
	}
	calendarBuckets, businessBuckets, err := cfg.Buckets()
	if err != nil {
		return nil, err
	}

	jc := jira.NewClient(jira.Options{
		URL:             cfg.Jira.URL,
		Username:        cfg.Jira.Username,
		Token:           cfg.Jira.Token(),
		IsCloud:         cfg.Jira.IsCloud,
		JQL:             cfg.Jira.JQL,
		Projects:        cfg.Jira.Projects,
		IssueTypes:      cfg.Jira.IssueTypes,
		UpdatedFrom:     cfg.Jira.UpdatedFrom,
		BoardID:         cfg.Jira.BoardID,
		BatchSize:       cfg.Jira.BatchSize,
		EstimationField: cfg.Jira.EstimationField,
		SprintField:     cfg.Jira.SprintField,
		TypeMapper:      types,
		Timeout:         cfg.Jira.Timeout,
		Recorder:        rec,
	}, log)

	p := &Pipeline{
		Jira: jc,
		Processor: report.NewProcessor(report.Options{
			Statuses:        statuses,
			WorkCalendar:    work,
			Calendar:        cal,
			CalendarBuckets: calendarBuckets,
			BusinessBuckets: businessBuckets,
			Users:           users,
			Recorder:        rec,
			Log:             log,
		}),
		Columns: report.Columns{
			Issues:       cfg.IssueColumns(),
			Sprints:      cfg.SprintColumns(),
			PullRequests: cfg.PullRequestColumns(),
		},
	}

	if sel.Issues {
		p.Sources.Issues = jc
		if cfg.Jira.BoardID > 0 {
			p.Sources.Sprints = jc
		}
	}

	if sel.PullRequests {
		if cfg.GitHub.Enabled() {
			gc, err := github.NewClient(github.Options{
				Organization: cfg.GitHub.Organization,
				Repositories: cfg.GitHub.Repositories,
				Token:        cfg.GitHub.Token(),
				BaseURL:      cfg.GitHub.BaseURL,
				ClosedFrom:   cfg.GitHub.ClosedFrom,
				BatchSize:    cfg.GitHub.BatchSize,
				Timeout:      cfg.GitHub.Timeout,
				Recorder:     rec,
			}, log)
			if err != nil {
				return nil, fmt.Errorf("github client: %w", err)
			}
			p.Sources.PullRequests = append(p.Sources.PullRequests, gc)
		}
		if cfg.Bitbucket.Enabled() {
			var since time.Time
			if cfg.Bitbucket.DaysBack > 0 {
				since = now.AddDate(0, 0, -cfg.Bitbucket.DaysBack)
			}
			p.Sources.PullRequests = append(p.Sources.PullRequests, bitbucket.NewClient(bitbucket.Options{
				URL:          cfg.Bitbucket.URL,
				Token:        cfg.Bitbucket.Token(),
				Project:      cfg.Bitbucket.Project,
				Repositories: cfg.Bitbucket.Repositories,
				Since:        since,
				Timeout:      cfg.Bitbucket.Timeout,
				Recorder:     rec,
			}, log))
		}
	}

	return p, nil
}

// Run executes the pipeline.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (*report.Report, error) {
	return p.Processor.Run(ctx, p.Sources, now)
}
