package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"jira-flow-metrics/metrics"
)

// Sample returns a complete configuration with placeholder values.
func Sample() Config {
	return Config{
		Log: LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Jira: JiraConfig{
			URL:             "https://yoursite.atlassian.net",
			Username:        "you@company.com",
			TokenEnv:        "JIRA_API_TOKEN",
			IsCloud:         true,
			Projects:        []string{"PROJ"},
			IssueTypes:      []string{"Story", "Bug", "Task"},
			UpdatedFrom:     "2024-01-01",
			BoardID:         1,
			BatchSize:       DefaultJiraBatchSize,
			EstimationField: DefaultEstimationField,
			SprintField:     DefaultSprintField,
			Timeout:         DefaultHTTPTimeout,
		},
		GitHub: GitHubConfig{
			Organization: "your-org",
			Repositories: []string{"backend", "frontend"},
			TokenEnv:     "GITHUB_TOKEN",
			ClosedFrom:   "2024-01-01",
			BatchSize:    DefaultGitHubBatchSize,
			Timeout:      DefaultHTTPTimeout,
		},
		Bitbucket: BitbucketConfig{
			TokenEnv: "BITBUCKET_TOKEN",
			DaysBack: 30,
			Timeout:  DefaultHTTPTimeout,
		},
		Statuses:   DefaultStatusMapping(),
		IssueTypes: "Support(Support;Incident),Tech(Tech;Task)",
		Users: []UserConfig{
			{Name: "Ada Lovelace", GitHub: "ada", Jira: "Ada Lovelace", Seniority: "senior", Role: "backend"},
		},
		Sprints: SprintConfig{
			LengthDays: DefaultSprintLengthDays,
			Anchor:     AnchorConfig{Number: 1, StartDate: "2024-01-01"},
		},
		WorkCalendar: WorkCalendarConfig{
			StartHour:      DefaultWorkStartHour,
			EndHour:        DefaultWorkEndHour,
			LunchThreshold: 6 * time.Hour,
			Lunch:          time.Hour,
			Timezone:       DefaultTimezone,
		},
		LeadTime: LeadTimeConfig{
			CalendarBuckets: metrics.DefaultBucketBounds,
			BusinessBuckets: metrics.DefaultBucketBounds,
		},
		Output: OutputConfig{Dir: DefaultOutputDir},
		Server: ServerConfig{
			Port:        DefaultServerPort,
			RefreshCron: DefaultRefreshCron,
			Timeout:     time.Minute,
		},
	}
}

// WriteSample writes the sample configuration as YAML to path.
func WriteSample(path string) error {
	cfg := Sample()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal sample config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
