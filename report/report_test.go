package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-flow-metrics/changelog"
	"jira-flow-metrics/jira"
	"jira-flow-metrics/metrics"
	"jira-flow-metrics/sprint"
	"jira-flow-metrics/status"
	"jira-flow-metrics/telemetry"
	"jira-flow-metrics/worktime"
)

func ts(day, hour int) time.Time {
	return time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

type issueSource []jira.Issue

func (s issueSource) FetchIssues(context.Context) ([]jira.Issue, error) { return s, nil }

type sprintSource []sprint.Sprint

func (s sprintSource) BoardSprints(context.Context) ([]sprint.Sprint, error) { return s, nil }

type prSource []metrics.PullRequest

func (s prSource) FetchPullRequests(context.Context) ([]metrics.PullRequest, error) { return s, nil }

type failingSource struct{}

func (failingSource) FetchIssues(context.Context) ([]jira.Issue, error) {
	return nil, errors.New("jira down")
}

func newProcessor(t *testing.T, rec *telemetry.Recorder) *Processor {
	t.Helper()

	statuses, err := status.NewMap(map[string][]string{
		"TODO":        {"To Do"},
		"IN_PROGRESS": {"In Progress"},
		"DONE":        {"Done"},
	})
	require.NoError(t, err)

	cal, err := sprint.FromAnchor(1, ts(1, 0), 14, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	return NewProcessor(Options{
		Statuses:        statuses,
		WorkCalendar:    worktime.Default(),
		Calendar:        cal,
		CalendarBuckets: metrics.MustBuckets(metrics.DefaultBucketBounds),
		BusinessBuckets: metrics.MustBuckets(metrics.DefaultBucketBounds),
		Users: metrics.NewUsers([]metrics.User{
			{Name: "Ada Lovelace", GitHub: "ada", Jira: "ada", Seniority: metrics.Senior, Role: metrics.Backend},
		}),
		Recorder: rec,
		Log:      zerolog.Nop(),
	})
}

func deliveredIssue() jira.Issue {
	return jira.Issue{
		ID:         1,
		Key:        "PRJ-1",
		Type:       "Story",
		Status:     "Done",
		Estimation: 5,
		Assignee:   &jira.Person{Name: "ada"},
		CreatedAt:  ts(1, 9),
		ResolvedAt: ptr(ts(10, 17)),
		Sprints:    []sprint.Sprint{{ID: 7, Name: "PRJ Sprint 7"}},
		Events: []changelog.Event{
			{OccurredAt: ts(1, 9), Kind: changelog.KindSprint, To: "7"},
			{OccurredAt: ts(3, 9), Kind: changelog.KindStatus, From: "To Do", To: "In Progress"},
			{OccurredAt: ts(10, 17), Kind: changelog.KindStatus, From: "In Progress", To: "Done"},
		},
	}
}

func brokenIssue() jira.Issue {
	return jira.Issue{
		Key:       "PRJ-2",
		CreatedAt: ts(2, 9),
		Events: []changelog.Event{
			{OccurredAt: ts(3, 9), Kind: changelog.KindSprint, To: "seven"},
		},
	}
}

func boardSprints() sprintSource {
	return sprintSource{{
		ID:          7,
		Name:        "PRJ Sprint 7",
		State:       sprint.StateClosed,
		StartedAt:   ptr(ts(1, 10)),
		EndedAt:     ptr(ts(15, 10)),
		CompletedAt: ptr(ts(15, 12)),
	}}
}

func TestProcessor_Run(t *testing.T) {
	t.Parallel()

	rec := telemetry.NewRecorder()
	p := newProcessor(t, rec)

	prs := prSource{
		{Number: 1, Author: "ada", State: "MERGED", CreatedAt: ts(2, 9), ClosedAt: ptr(ts(3, 9)), MergedAt: ptr(ts(3, 9))},
		{Number: 2, Author: "mallory", State: "MERGED", CreatedAt: ts(2, 9), ClosedAt: ptr(ts(3, 9))},
	}

	rep, err := p.Run(context.Background(), Sources{
		Issues:       issueSource{deliveredIssue(), brokenIssue()},
		Sprints:      boardSprints(),
		PullRequests: []PullRequestSource{prs},
	}, ts(20, 0))
	require.NoError(t, err)

	// The malformed membership payload skips PRJ-2.
	require.Len(t, rep.Issues, 1)
	require.Len(t, rep.IssueRecords, 1)
	assert.Equal(t, "PRJ-1", rep.IssueRecords[0]["key"])
	assert.Equal(t, "Ada Lovelace", rep.IssueRecords[0]["assignee"])

	require.Len(t, rep.SprintRecords, 1)
	row := rep.SprintRecords[0]
	assert.Equal(t, true, row["isCommitted"])
	assert.Equal(t, true, row["isDelivered"])
	assert.Equal(t, 5.0, row["sprintCommittedStoryPoints"])
	assert.Equal(t, "Sprint 07", row["sprintName"])

	require.Len(t, rep.PullRequestRecords, 1, "authors outside the user list are dropped")
	assert.Equal(t, "Ada Lovelace", rep.PullRequestRecords[0]["author"])
	assert.Equal(t, "senior", rep.PullRequestRecords[0]["authorSeniority"])

	assert.Equal(t, 1, rep.Summary.Issues.TotalIssues)
	assert.Equal(t, 1, rep.Summary.PullRequests.MergedPRs)
	require.Len(t, rep.Summary.Sprints, 1)
	assert.Equal(t, 1, rep.Summary.Sprints[0].Delivered)
	assert.Equal(t, 1, rep.Catalog.Len())

	scrape := httptest.NewRecorder()
	rec.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `jiraflow_entities_processed_total{report="issues"} 1`)
	assert.Contains(t, scrape.Body.String(), `jiraflow_entities_skipped_total{report="issues"} 1`)
	assert.Contains(t, scrape.Body.String(), `jiraflow_entities_processed_total{report="pullrequests"} 1`)
}

func TestProcessor_RunSourceFailure(t *testing.T) {
	t.Parallel()

	_, err := newProcessor(t, nil).Run(context.Background(), Sources{Issues: failingSource{}}, ts(20, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jira down")
}

func TestProcessor_Catalog(t *testing.T) {
	t.Parallel()

	p := newProcessor(t, nil)
	issues := []jira.Issue{
		{Sprints: []sprint.Sprint{{ID: 7, Name: "stale copy"}, {ID: 8, Name: "PRJ Sprint 8"}}},
	}

	catalog := p.Catalog(issues, boardSprints())
	assert.Equal(t, 2, catalog.Len())
	sp, ok := catalog.Get(7)
	require.True(t, ok)
	assert.Equal(t, "PRJ Sprint 7", sp.Name)

	// Sprint 8 has no dates and takes them from the calendar window.
	sp, ok = catalog.Get(8)
	require.True(t, ok)
	require.NotNil(t, sp.StartedAt)
	assert.Equal(t, "2024-04-08", sp.StartedAt.Format(time.DateOnly))
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	records := []metrics.Record{
		{"key": "PRJ-1", "isDelivered": true, "createdAt": ts(1, 9), "summary": "a, b"},
		{"key": "PRJ-2", "isDelivered": false},
	}
	require.NoError(t, WriteCSV(&buf, []string{"key", "summary", "isDelivered", "createdAt"}, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"key", "summary", "isDelivered", "createdAt"},
		{"PRJ-1", "a, b", "YES", "2024-01-01"},
		{"PRJ-2", "", "NO", ""},
	}, rows)
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	p := newProcessor(t, nil)
	rep := p.ProcessIssues([]jira.Issue{deliveredIssue()}, boardSprints(), ts(20, 0))
	rep.Summary = metrics.CalculateTeamMetrics(rep.Issues, nil, metrics.MustBuckets(metrics.DefaultBucketBounds), worktime.Default(), ts(20, 0))

	dir := filepath.Join(t.TempDir(), "out")
	written, err := WriteFiles(dir, rep, Columns{
		Issues:  metrics.IssueColumns,
		Sprints: metrics.SprintColumns,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, IssuesFile),
		filepath.Join(dir, SprintsFile),
		filepath.Join(dir, SummaryJSONFile),
		filepath.Join(dir, SummaryCSVFile),
	}, written)

	data, err := os.ReadFile(filepath.Join(dir, IssuesFile))
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, metrics.IssueColumns, rows[0])

	summary, err := os.ReadFile(filepath.Join(dir, SummaryCSVFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Issues,Total Issues,1")
}

func TestConsole(t *testing.T) {
	t.Parallel()

	p := newProcessor(t, nil)
	rep := p.ProcessIssues([]jira.Issue{deliveredIssue()}, boardSprints(), ts(20, 0))
	summary := metrics.CalculateTeamMetrics(rep.Issues, nil, metrics.MustBuckets(metrics.DefaultBucketBounds), worktime.Default(), ts(20, 0))

	var buf bytes.Buffer
	PrintMetricsSummary(&buf, summary)
	out := buf.String()
	assert.Contains(t, out, "JIRA FLOW METRICS REPORT")
	assert.Contains(t, out, "Total issues")
	assert.Contains(t, out, "Sprint 07")

	buf.Reset()
	cal, err := sprint.FromAnchor(1, ts(1, 0), 14, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	PrintSprintCalendar(&buf, cal, ts(20, 0))
	assert.Contains(t, buf.String(), "Sprint 02")
	assert.Contains(t, buf.String(), "2024-01-15")

	buf.Reset()
	PrintSprints(&buf, rep.Catalog.Sprints())
	assert.Contains(t, buf.String(), "PRJ Sprint 7")
	assert.Contains(t, buf.String(), "closed")

	buf.Reset()
	PrintFields(&buf, []jira.Field{{ID: "customfield_10016", Name: "Story Points", Custom: true}})
	assert.Contains(t, buf.String(), "customfield_10016")
	assert.Contains(t, buf.String(), "YES")
}

func TestSortedKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"[1] 0 to 7 days", "[2] 7 to 14 days", "[6] 35+ days"},
		sortedKeys(map[string]int{"[6] 35+ days": 1, "[1] 0 to 7 days": 3, "[2] 7 to 14 days": 2}))
	assert.Empty(t, sortedKeys(map[string]int(nil)))
}
