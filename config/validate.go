package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"jira-flow-metrics/jira"
	"jira-flow-metrics/metrics"
	"jira-flow-metrics/sprint"
	"jira-flow-metrics/status"
	"jira-flow-metrics/worktime"
)

const dateLayout = "2006-01-02"

// CronParser reads server.refresh_cron: five fields or a descriptor such as
// @hourly. The web server schedules with the same parser.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks every setting that would otherwise fail mid-run. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Sprints.LengthDays <= 0 {
		errs = append(errs, fmt.Errorf("sprints.length_days must be positive, got %d", c.Sprints.LengthDays))
	}
	if c.Sprints.Anchor.Number < 1 {
		errs = append(errs, fmt.Errorf("sprints.anchor.number must be at least 1, got %d", c.Sprints.Anchor.Number))
	}
	if _, err := time.Parse(dateLayout, c.Sprints.Anchor.StartDate); err != nil {
		errs = append(errs, fmt.Errorf("sprints.anchor.start_date %q is not yyyy-MM-dd", c.Sprints.Anchor.StartDate))
	}

	if _, err := c.StatusMap(); err != nil {
		errs = append(errs, fmt.Errorf("status_mapping: %w", err))
	}
	if _, err := c.TypeMapper(); err != nil {
		errs = append(errs, fmt.Errorf("issue_types: %w", err))
	}
	if _, err := c.Team(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BusinessCalendar(); err != nil {
		errs = append(errs, fmt.Errorf("work_calendar: %w", err))
	}

	if _, err := metrics.NewBuckets(c.LeadTime.CalendarBuckets); err != nil {
		errs = append(errs, fmt.Errorf("lead_time.calendar_buckets: %w", err))
	}
	if _, err := metrics.NewBuckets(c.LeadTime.BusinessBuckets); err != nil {
		errs = append(errs, fmt.Errorf("lead_time.business_buckets: %w", err))
	}

	for name, cols := range map[string]struct{ got, known []string }{
		"output.issue_columns":        {c.Output.IssueColumns, metrics.IssueColumns},
		"output.sprint_columns":       {c.Output.SprintColumns, metrics.SprintColumns},
		"output.pull_request_columns": {c.Output.PullRequestColumns, metrics.PullRequestColumns},
	} {
		if err := metrics.ValidateColumns(cols.got, cols.known); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Jira.BatchSize <= 0 || c.Jira.BatchSize > 100 {
		errs = append(errs, fmt.Errorf("jira.batch_size must be between 1 and 100, got %d", c.Jira.BatchSize))
	}
	if c.Jira.UpdatedFrom != "" {
		if _, err := time.Parse(dateLayout, c.Jira.UpdatedFrom); err != nil {
			errs = append(errs, fmt.Errorf("jira.updated_from %q is not yyyy-MM-dd", c.Jira.UpdatedFrom))
		}
	}
	if c.GitHub.ClosedFrom != "" {
		if _, err := time.Parse(dateLayout, c.GitHub.ClosedFrom); err != nil {
			errs = append(errs, fmt.Errorf("github.closed_from %q is not yyyy-MM-dd", c.GitHub.ClosedFrom))
		}
	}

	if c.Server.RefreshCron != "" {
		if _, err := CronParser.Parse(c.Server.RefreshCron); err != nil {
			errs = append(errs, fmt.Errorf("server.refresh_cron: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// StatusMap builds the raw status to category map.
func (c *Config) StatusMap() (*status.Map, error) {
	return status.NewMap(c.Statuses)
}

// TypeMapper parses the issue type grouping.
func (c *Config) TypeMapper() (jira.TypeMapper, error) {
	return jira.ParseTypeMapper(c.IssueTypes)
}

// Team parses the configured team members.
func (c *Config) Team() (metrics.Users, error) {
	list := make([]metrics.User, 0, len(c.Users))
	for i, u := range c.Users {
		seniority, err := metrics.ParseSeniority(u.Seniority)
		if err != nil {
			return metrics.Users{}, fmt.Errorf("users[%d] %s: %w", i, u.Name, err)
		}
		role, err := metrics.ParseRole(u.Role)
		if err != nil {
			return metrics.Users{}, fmt.Errorf("users[%d] %s: %w", i, u.Name, err)
		}
		list = append(list, metrics.User{
			Name:      u.Name,
			GitHub:    u.GitHub,
			Bitbucket: u.Bitbucket,
			Jira:      u.Jira,
			Seniority: seniority,
			Role:      role,
		})
	}
	return metrics.NewUsers(list), nil
}

// BusinessCalendar builds the business hours calendar.
func (c *Config) BusinessCalendar() (worktime.Calendar, error) {
	loc, err := time.LoadLocation(c.WorkCalendar.Timezone)
	if err != nil {
		return worktime.Calendar{}, fmt.Errorf("timezone: %w", err)
	}
	cal := worktime.Calendar{
		StartHour:      c.WorkCalendar.StartHour,
		EndHour:        c.WorkCalendar.EndHour,
		LunchThreshold: c.WorkCalendar.LunchThreshold,
		Lunch:          c.WorkCalendar.Lunch,
		Location:       loc,
	}
	if err := cal.Validate(); err != nil {
		return worktime.Calendar{}, err
	}
	return cal, nil
}

// SprintCalendar builds the sprint calendar up to the end of the year after
// now.
func (c *Config) SprintCalendar(now time.Time) (*sprint.Calendar, error) {
	loc := time.UTC
	if wc, err := c.BusinessCalendar(); err == nil {
		loc = wc.Location
	}
	start, err := time.ParseInLocation(dateLayout, c.Sprints.Anchor.StartDate, loc)
	if err != nil {
		return nil, fmt.Errorf("sprints.anchor.start_date: %w", err)
	}
	return sprint.FromAnchor(c.Sprints.Anchor.Number, start, c.Sprints.LengthDays, sprint.Horizon(now.In(loc)))
}

// Buckets returns the calendar and business lead time buckets.
func (c *Config) Buckets() (calendar, business metrics.Buckets, err error) {
	if calendar, err = metrics.NewBuckets(c.LeadTime.CalendarBuckets); err != nil {
		return
	}
	business, err = metrics.NewBuckets(c.LeadTime.BusinessBuckets)
	return
}

// IssueColumns is the configured issue column order, or the default one.
func (c *Config) IssueColumns() []string {
	return orDefault(c.Output.IssueColumns, metrics.IssueColumns)
}

// SprintColumns is the configured sprint column order, or the default one.
func (c *Config) SprintColumns() []string {
	return orDefault(c.Output.SprintColumns, metrics.SprintColumns)
}

// PullRequestColumns is the configured pull request column order, or the
// default one.
func (c *Config) PullRequestColumns() []string {
	return orDefault(c.Output.PullRequestColumns, metrics.PullRequestColumns)
}

func orDefault(cols, def []string) []string {
	if len(cols) == 0 {
		return def
	}
	return cols
}
