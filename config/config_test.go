package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-flow-metrics/metrics"
	"jira-flow-metrics/status"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "jira-flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "jira:\n  url: https://example.atlassian.net\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.atlassian.net", cfg.Jira.URL)
	assert.Equal(t, DefaultJiraBatchSize, cfg.Jira.BatchSize)
	assert.Equal(t, DefaultHTTPTimeout, cfg.Jira.Timeout)
	assert.Equal(t, DefaultSprintLengthDays, cfg.Sprints.LengthDays)
	assert.Equal(t, 6*time.Hour, cfg.WorkCalendar.LunchThreshold)
	assert.Equal(t, time.Minute, cfg.Server.Timeout)
	assert.Equal(t, metrics.DefaultBucketBounds, cfg.LeadTime.CalendarBuckets)
	assert.Equal(t, DefaultStatusMapping(), cfg.Statuses)
	assert.Equal(t, metrics.IssueColumns, cfg.IssueColumns())
}

func TestLoadConfig_StatusMappingReplacesDefault(t *testing.T) {
	path := writeConfig(t, `
status_mapping:
  IN_PROGRESS: ["Doing"]
  DONE: ["Shipped"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	m, err := cfg.StatusMap()
	require.NoError(t, err)

	cat, ok := m.CategoryOf(status.Normalize("Doing"))
	require.True(t, ok)
	assert.Equal(t, status.InProgress, cat)

	_, ok = m.CategoryOf(status.Normalize("In Progress"))
	assert.False(t, ok, "defaults must not leak into a configured mapping")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "jira:\n  url: https://file.example\n")
	t.Setenv("JIRAFLOW_JIRA_URL", "https://env.example")
	t.Setenv("JIRAFLOW_SPRINTS_LENGTH_DAYS", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example", cfg.Jira.URL)
	assert.Equal(t, 7, cfg.Sprints.LengthDays)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "duplicate status",
			body: "status_mapping:\n  TODO: [\"Open\"]\n  DONE: [\"open\"]\n",
			want: "status_mapping",
		},
		{
			name: "unknown category",
			body: "status_mapping:\n  LATER: [\"Someday\"]\n",
			want: "status_mapping",
		},
		{
			name: "bad anchor date",
			body: "sprints:\n  anchor:\n    number: 1\n    start_date: 01/02/2024\n",
			want: "sprints.anchor.start_date",
		},
		{
			name: "non positive sprint length",
			body: "sprints:\n  length_days: 0\n",
			want: "sprints.length_days",
		},
		{
			name: "unknown column",
			body: "output:\n  issue_columns: [\"key\", \"velocity\"]\n",
			want: "output.issue_columns",
		},
		{
			name: "bad seniority",
			body: "users:\n  - name: Ada\n    seniority: principal\n    role: backend\n",
			want: "seniority",
		},
		{
			name: "descending buckets",
			body: "lead_time:\n  calendar_buckets: [14, 7]\n",
			want: "lead_time.calendar_buckets",
		},
		{
			name: "bad cron",
			body: "server:\n  refresh_cron: every hour\n",
			want: "server.refresh_cron",
		},
		{
			name: "work hours",
			body: "work_calendar:\n  start_hour: 18\n  end_hour: 9\n",
			want: "work_calendar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_CronDescriptor(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  refresh_cron: \"@hourly\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "@hourly", cfg.Server.RefreshCron)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestWriteSample_LoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, WriteSample(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := Sample()
	assert.Equal(t, want.Jira.URL, cfg.Jira.URL)
	assert.Equal(t, want.Sprints, cfg.Sprints)
	assert.Equal(t, want.WorkCalendar, cfg.WorkCalendar)
	assert.Equal(t, want.Server, cfg.Server)

	team, err := cfg.Team()
	require.NoError(t, err)
	u, ok := team.ByGitHub("ada")
	require.True(t, ok)
	assert.Equal(t, metrics.Senior, u.Seniority)
}

func TestSprintCalendar(t *testing.T) {
	t.Parallel()

	cfg := Sample()
	cfg.Sprints.Anchor = AnchorConfig{Number: 38, StartDate: "2024-09-12"}

	cal, err := cfg.SprintCalendar(time.Date(2024, time.September, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	w, ok := cal.Find(time.Date(2024, time.September, 14, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 38, w.Number)

	assert.Equal(t, "2023-04-13", cal.First().Format(dateLayout))
}
