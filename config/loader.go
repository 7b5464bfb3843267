package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"jira-flow-metrics/metrics"
)

// configName is the config file name without extension.
const configName = "jira-flow"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix, e.g. JIRAFLOW_JIRA_URL.
const envPrefix = "JIRAFLOW"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise ./jira-flow.yaml is used when present.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Maps are merged key by key by viper, so a default mapping would leak
	// into a configured one.
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = DefaultStatusMapping()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("jira.url", "")
	v.SetDefault("jira.username", "")
	v.SetDefault("jira.token_env", "JIRA_API_TOKEN")
	v.SetDefault("jira.is_cloud", true)
	v.SetDefault("jira.batch_size", DefaultJiraBatchSize)
	v.SetDefault("jira.estimation_field", DefaultEstimationField)
	v.SetDefault("jira.sprint_field", DefaultSprintField)
	v.SetDefault("jira.timeout", DefaultHTTPTimeout)

	v.SetDefault("github.token_env", "GITHUB_TOKEN")
	v.SetDefault("github.batch_size", DefaultGitHubBatchSize)
	v.SetDefault("github.timeout", DefaultHTTPTimeout)

	v.SetDefault("bitbucket.token_env", "BITBUCKET_TOKEN")
	v.SetDefault("bitbucket.days_back", 30)
	v.SetDefault("bitbucket.timeout", DefaultHTTPTimeout)

	v.SetDefault("sprints.length_days", DefaultSprintLengthDays)
	v.SetDefault("sprints.anchor.number", 1)
	v.SetDefault("sprints.anchor.start_date", "2024-01-01")

	v.SetDefault("work_calendar.start_hour", DefaultWorkStartHour)
	v.SetDefault("work_calendar.end_hour", DefaultWorkEndHour)
	v.SetDefault("work_calendar.lunch_threshold", "6h")
	v.SetDefault("work_calendar.lunch", "1h")
	v.SetDefault("work_calendar.timezone", DefaultTimezone)

	v.SetDefault("lead_time.calendar_buckets", metrics.DefaultBucketBounds)
	v.SetDefault("lead_time.business_buckets", metrics.DefaultBucketBounds)

	v.SetDefault("output.dir", DefaultOutputDir)

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.refresh_cron", DefaultRefreshCron)
	v.SetDefault("server.timeout", "60s")
}

// DefaultStatusMapping is used when the configuration maps no status.
func DefaultStatusMapping() map[string][]string {
	return map[string][]string{
		"TODO":        {"To Do", "Backlog", "Open"},
		"IN_PROGRESS": {"In Progress", "In Review"},
		"HOLD":        {"Blocked", "On Hold"},
		"QA":          {"QA", "In QA"},
		"DONE":        {"Done", "Closed", "Resolved"},
	}
}
