package config

import (
	"errors"
	"os"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Default values.
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
	DefaultJiraBatchSize    = 100
	DefaultEstimationField  = "customfield_10016"
	DefaultSprintField      = "customfield_10020"
	DefaultSprintLengthDays = 14
	DefaultWorkStartHour    = 9
	DefaultWorkEndHour      = 18
	DefaultTimezone         = "UTC"
	DefaultOutputDir        = "output"
	DefaultServerPort       = 8080
	DefaultRefreshCron      = "0 */6 * * *"
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultGitHubBatchSize  = 100
)

// Config represents the application configuration. Secrets are never stored
// here: the *_env fields name the environment variables holding them.
type Config struct {
	Log          LogConfig           `mapstructure:"log" yaml:"log"`
	Jira         JiraConfig          `mapstructure:"jira" yaml:"jira"`
	GitHub       GitHubConfig        `mapstructure:"github" yaml:"github"`
	Bitbucket    BitbucketConfig     `mapstructure:"bitbucket" yaml:"bitbucket"`
	Statuses     map[string][]string `mapstructure:"status_mapping" yaml:"status_mapping"`
	IssueTypes   string              `mapstructure:"issue_types" yaml:"issue_types"`
	Users        []UserConfig        `mapstructure:"users" yaml:"users"`
	Sprints      SprintConfig        `mapstructure:"sprints" yaml:"sprints"`
	WorkCalendar WorkCalendarConfig  `mapstructure:"work_calendar" yaml:"work_calendar"`
	LeadTime     LeadTimeConfig      `mapstructure:"lead_time" yaml:"lead_time"`
	Output       OutputConfig        `mapstructure:"output" yaml:"output"`
	Server       ServerConfig        `mapstructure:"server" yaml:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type JiraConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`           // e.g., https://yoursite.atlassian.net
	Username string `mapstructure:"username" yaml:"username"` // Email for cloud, username for DC
	TokenEnv string `mapstructure:"token_env" yaml:"token_env"`
	IsCloud  bool   `mapstructure:"is_cloud" yaml:"is_cloud"`
	// JQL selects the issues. When empty it is built from the project keys,
	// issue types and updated_from.
	JQL             string        `mapstructure:"jql" yaml:"jql"`
	Projects        []string      `mapstructure:"projects" yaml:"projects"`
	IssueTypes      []string      `mapstructure:"issue_types" yaml:"issue_types"`
	UpdatedFrom     string        `mapstructure:"updated_from" yaml:"updated_from"`
	BoardID         int           `mapstructure:"board_id" yaml:"board_id"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size"`
	EstimationField string        `mapstructure:"estimation_field" yaml:"estimation_field"`
	SprintField     string        `mapstructure:"sprint_field" yaml:"sprint_field"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Token resolves the API token from the environment.
func (j JiraConfig) Token() string {
	if j.TokenEnv == "" {
		return ""
	}
	return os.Getenv(j.TokenEnv)
}

type GitHubConfig struct {
	Organization string        `mapstructure:"organization" yaml:"organization"`
	Repositories []string      `mapstructure:"repositories" yaml:"repositories"`
	TokenEnv     string        `mapstructure:"token_env" yaml:"token_env"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	ClosedFrom   string        `mapstructure:"closed_from" yaml:"closed_from"`
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Token resolves the API token from the environment.
func (g GitHubConfig) Token() string {
	if g.TokenEnv == "" {
		return ""
	}
	return os.Getenv(g.TokenEnv)
}

// Enabled reports whether pull requests should be fetched from GitHub.
func (g GitHubConfig) Enabled() bool {
	return g.Organization != "" && len(g.Repositories) > 0
}

type BitbucketConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"` // e.g., https://bitbucket.company.com
	TokenEnv     string        `mapstructure:"token_env" yaml:"token_env"`
	Project      string        `mapstructure:"project" yaml:"project"`
	Repositories []string      `mapstructure:"repositories" yaml:"repositories"`
	DaysBack     int           `mapstructure:"days_back" yaml:"days_back"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Token resolves the access token from the environment.
func (b BitbucketConfig) Token() string {
	if b.TokenEnv == "" {
		return ""
	}
	return os.Getenv(b.TokenEnv)
}

// Enabled reports whether pull requests should be fetched from Bitbucket.
func (b BitbucketConfig) Enabled() bool {
	return b.URL != "" && b.Project != "" && len(b.Repositories) > 0
}

type UserConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	GitHub    string `mapstructure:"github" yaml:"github"`
	Bitbucket string `mapstructure:"bitbucket" yaml:"bitbucket,omitempty"`
	Jira      string `mapstructure:"jira" yaml:"jira"`
	Seniority string `mapstructure:"seniority" yaml:"seniority"`
	Role      string `mapstructure:"role" yaml:"role"`
}

type SprintConfig struct {
	LengthDays int          `mapstructure:"length_days" yaml:"length_days"`
	Anchor     AnchorConfig `mapstructure:"anchor" yaml:"anchor"`
}

// AnchorConfig is any known sprint: its number and first day (yyyy-MM-dd).
type AnchorConfig struct {
	Number    int    `mapstructure:"number" yaml:"number"`
	StartDate string `mapstructure:"start_date" yaml:"start_date"`
}

type WorkCalendarConfig struct {
	StartHour      int           `mapstructure:"start_hour" yaml:"start_hour"`
	EndHour        int           `mapstructure:"end_hour" yaml:"end_hour"`
	LunchThreshold time.Duration `mapstructure:"lunch_threshold" yaml:"lunch_threshold"`
	Lunch          time.Duration `mapstructure:"lunch" yaml:"lunch"`
	Timezone       string        `mapstructure:"timezone" yaml:"timezone"`
}

type LeadTimeConfig struct {
	CalendarBuckets []float64 `mapstructure:"calendar_buckets" yaml:"calendar_buckets"`
	BusinessBuckets []float64 `mapstructure:"business_buckets" yaml:"business_buckets"`
}

type OutputConfig struct {
	Dir                string   `mapstructure:"dir" yaml:"dir"`
	IssueColumns       []string `mapstructure:"issue_columns" yaml:"issue_columns,omitempty"`
	SprintColumns      []string `mapstructure:"sprint_columns" yaml:"sprint_columns,omitempty"`
	PullRequestColumns []string `mapstructure:"pull_request_columns" yaml:"pull_request_columns,omitempty"`
}

type ServerConfig struct {
	Port        int           `mapstructure:"port" yaml:"port"`
	RefreshCron string        `mapstructure:"refresh_cron" yaml:"refresh_cron"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}
