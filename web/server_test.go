package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-flow-metrics/config"
	"jira-flow-metrics/metrics"
	"jira-flow-metrics/report"
	"jira-flow-metrics/telemetry"
)

func sampleReport() *report.Report {
	return &report.Report{
		IssueRecords: []metrics.Record{
			{"key": "PRJ-1", "isDelivered": true},
			{"key": "PRJ-2", "isDelivered": false},
		},
		SprintRecords: []metrics.Record{
			{"key": "PRJ-1", "sprintName": "Sprint 07"},
		},
		Summary: metrics.TeamMetrics{
			Issues: metrics.IssueSummary{TotalIssues: 2, ResolvedIssues: 1},
		},
	}
}

func newServer(t *testing.T, refresh RefreshFunc) *Server {
	t.Helper()

	s, err := NewServer(Options{
		Refresh:  refresh,
		Columns:  report.Columns{Issues: []string{"key", "isDelivered"}},
		Recorder: telemetry.NewRecorder(),
		Timeout:  time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_NotReady(t *testing.T) {
	t.Parallel()

	s := newServer(t, func(context.Context) (*report.Report, error) { return sampleReport(), nil })

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["ready"])

	for _, path := range []string{"/api/issues", "/api/issues.csv", "/api/sprints", "/api/summary"} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestServer_Reports(t *testing.T) {
	t.Parallel()

	s := newServer(t, func(context.Context) (*report.Report, error) { return sampleReport(), nil })
	require.NoError(t, s.Refresh(context.Background()))

	rec := get(t, s, "/api/issues")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["count"])
	rows := body["data"].([]any)
	assert.Equal(t, "PRJ-1", rows[0].(map[string]any)["key"])

	rec = get(t, s, "/api/issues.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "issues.csv")
	assert.Equal(t, "key,isDelivered\nPRJ-1,YES\nPRJ-2,NO\n", rec.Body.String())

	rec = get(t, s, "/api/pullrequests")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["count"])

	rec = get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(2), summary["issues"].(map[string]any)["total_issues"])

	rec = get(t, s, "/health")
	assert.Equal(t, true, decode(t, rec)["ready"])
}

func TestServer_FailedRefreshKeepsReport(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := newServer(t, func(context.Context) (*report.Report, error) {
		if calls.Add(1) > 1 {
			return nil, errors.New("jira unavailable")
		}
		return sampleReport(), nil
	})
	require.NoError(t, s.Refresh(context.Background()))

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "jira unavailable")

	rec = get(t, s, "/api/issues")
	assert.Equal(t, http.StatusOK, rec.Code)

	health := decode(t, get(t, s, "/health"))
	assert.Equal(t, "jira unavailable", health["last_error"])
}

func TestServer_Reconfigure(t *testing.T) {
	t.Parallel()

	s := newServer(t, func(context.Context) (*report.Report, error) { return sampleReport(), nil })
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.Reconfigure(Options{
		Refresh: func(context.Context) (*report.Report, error) {
			rep := sampleReport()
			rep.IssueRecords = rep.IssueRecords[:1]
			return rep, nil
		},
		Columns: report.Columns{Issues: []string{"key"}},
	}))

	// Columns apply at once, rows after the next refresh.
	assert.Equal(t, "key\nPRJ-1\nPRJ-2\n", get(t, s, "/api/issues.csv").Body.String())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, "key\nPRJ-1\n", get(t, s, "/api/issues.csv").Body.String())
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	s := newServer(t, func(context.Context) (*report.Report, error) { return sampleReport(), nil })
	s.rec.Processed(report.Issues)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `jiraflow_entities_processed_total{report="issues"} 1`))
}

func TestNewServer_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Options{}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewServer(Options{
		Refresh:     func(context.Context) (*report.Report, error) { return nil, nil },
		RefreshCron: "every tuesday",
	}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh schedule")
}

func TestNewServer_DescriptorSchedule(t *testing.T) {
	t.Parallel()

	_, err := config.CronParser.Parse("@hourly")
	require.NoError(t, err)

	s, err := NewServer(Options{
		Refresh:     func(context.Context) (*report.Report, error) { return sampleReport(), nil },
		RefreshCron: "@hourly",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestServer_ReconfigureSchedule(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	refresh := func(context.Context) (*report.Report, error) { return sampleReport(), nil }
	s, err := NewServer(Options{
		Refresh:     refresh,
		RefreshCron: "@hourly",
		Timeout:     time.Second,
	}, zerolog.New(&logs))
	require.NoError(t, err)
	first := s.cron.Entries()[0].ID

	require.NoError(t, s.Reconfigure(Options{Refresh: refresh, RefreshCron: "*/5 * * * *", Timeout: time.Second}))
	require.Len(t, s.cron.Entries(), 1)
	assert.NotEqual(t, first, s.cron.Entries()[0].ID)
	assert.Equal(t, "*/5 * * * *", s.schedule)

	err = s.Reconfigure(Options{Refresh: refresh, RefreshCron: "every tuesday"})
	require.Error(t, err)
	assert.Equal(t, "*/5 * * * *", s.schedule)
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.Reconfigure(Options{Refresh: refresh, Timeout: time.Minute}))
	assert.Empty(t, s.cron.Entries())
	assert.Contains(t, logs.String(), "restart to apply")

	require.Error(t, s.Reconfigure(Options{}))
}
