package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jira-flow-metrics/changelog"
	"jira-flow-metrics/sprint"
	"jira-flow-metrics/telemetry"
)

// MaxBatchSize is the largest page Jira serves.
const MaxBatchSize = 100

const (
	defaultTimeout   = 30 * time.Second
	defaultPagePause = 100 * time.Millisecond
	defaultBackoff   = 300 * time.Millisecond
	maxAttempts      = 3
)

// Options configures a Client.
type Options struct {
	URL      string // e.g., https://yoursite.atlassian.net
	Username string // Email for cloud, username for DC
	Token    string
	IsCloud  bool

	// JQL selects the issues. When empty it is built from Projects,
	// IssueTypes and UpdatedFrom.
	JQL         string
	Projects    []string
	IssueTypes  []string
	UpdatedFrom string

	BoardID         int
	BatchSize       int
	EstimationField string
	SprintField     string
	TypeMapper      TypeMapper
	Timeout         time.Duration

	// PagePause is the delay between two pages, Backoff the first retry
	// delay. Zero means the defaults.
	PagePause time.Duration
	Backoff   time.Duration

	Recorder *telemetry.Recorder
}

// Client handles Jira API operations
type Client struct {
	opts   Options
	http   *http.Client
	log    zerolog.Logger
	mapper mapper
}

// NewClient creates a new Jira client
func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.BatchSize <= 0 || opts.BatchSize > MaxBatchSize {
		opts.BatchSize = MaxBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PagePause <= 0 {
		opts.PagePause = defaultPagePause
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
		log:  log.With().Str("component", "jira").Logger(),
		mapper: mapper{
			origin:          opts.URL,
			cloud:           opts.IsCloud,
			estimationField: opts.EstimationField,
			sprintField:     opts.SprintField,
			types:           opts.TypeMapper,
		},
	}
}

// BuildJQL selects issues of the given projects and types updated since
// updatedFrom, newest first. Empty arguments drop their clause.
func BuildJQL(projects, issueTypes []string, updatedFrom string) string {
	var clauses []string
	if len(projects) > 0 {
		clauses = append(clauses, fmt.Sprintf("project IN (%s)", quoteAll(projects)))
	}
	if updatedFrom != "" {
		clauses = append(clauses, fmt.Sprintf("updated >= %s", updatedFrom))
	}
	if len(issueTypes) > 0 {
		clauses = append(clauses, fmt.Sprintf("issuetype IN (%s)", quoteAll(issueTypes)))
	}
	if len(clauses) == 0 {
		return "ORDER BY created DESC"
	}
	return strings.Join(clauses, " AND ") + " ORDER BY created DESC"
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(strings.TrimSpace(v))
	}
	return strings.Join(quoted, ",")
}

// JQL returns the query the client searches with.
func (c *Client) JQL() string {
	if c.opts.JQL != "" {
		return c.opts.JQL
	}
	return BuildJQL(c.opts.Projects, c.opts.IssueTypes, c.opts.UpdatedFrom)
}

type searchResponse struct {
	StartAt int        `json:"startAt"`
	Total   int        `json:"total"`
	Issues  []issueDTO `json:"issues"`
}

type changelogResponse struct {
	StartAt int          `json:"startAt"`
	IsLast  bool         `json:"isLast"`
	Values  []historyDTO `json:"values"`
}

type sprintsResponse struct {
	IsLast bool        `json:"isLast"`
	Values []sprintDTO `json:"values"`
}

// FetchIssues retrieves every issue matching the query together with its
// complete changelog. Issues whose payload cannot be mapped are logged and
// skipped.
func (c *Client) FetchIssues(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	err := c.EachIssue(ctx, func(issue Issue) error {
		issues = append(issues, issue)
		return nil
	})
	return issues, err
}

// EachIssue streams issues page by page to fn. An error from fn stops the
// walk and is returned.
func (c *Client) EachIssue(ctx context.Context, fn func(Issue) error) error {
	jql := c.JQL()
	c.log.Info().Str("jql", jql).Msg("searching issues")

	for startAt := 0; ; startAt += c.opts.BatchSize {
		page, err := c.searchPage(ctx, jql, startAt)
		if err != nil {
			return err
		}

		for _, dto := range page.Issues {
			issue, err := c.mapper.toIssue(dto)
			if err != nil {
				c.log.Warn().Err(err).Str("issue", dto.Key).Msg("skipping unreadable issue")
				c.opts.Recorder.Skipped("fetch")
				continue
			}
			if issue.Events, err = c.Changelog(ctx, issue.Key); err != nil {
				if ctx.Err() != nil {
					return err
				}
				c.log.Warn().Err(err).Str("issue", issue.Key).Msg("skipping issue without changelog")
				c.opts.Recorder.Skipped("fetch")
				continue
			}
			if err := fn(issue); err != nil {
				return err
			}
		}

		c.log.Debug().Int("start_at", startAt).Int("count", len(page.Issues)).Int("total", page.Total).Msg("fetched issue page")
		if len(page.Issues) < c.opts.BatchSize {
			return nil
		}
		if err := c.pause(ctx); err != nil {
			return err
		}
	}
}

func (c *Client) searchPage(ctx context.Context, jql string, startAt int) (searchResponse, error) {
	fields := []string{
		"summary", "status", "priority", "resolution", "issuetype", "reporter",
		"assignee", "parent", "created", "resolutiondate", "aggregatetimespent",
	}
	if c.opts.EstimationField != "" {
		fields = append(fields, c.opts.EstimationField)
	}
	if c.opts.SprintField != "" {
		fields = append(fields, c.opts.SprintField)
	}
	body := map[string]any{
		"jql":        jql,
		"startAt":    startAt,
		"maxResults": c.opts.BatchSize,
		"fields":     fields,
	}

	var page searchResponse
	err := c.do(ctx, http.MethodPost, c.apiURL(c.apiPath("search"), nil), body, &page)
	if err != nil {
		return searchResponse{}, fmt.Errorf("search issues at %d: %w", startAt, err)
	}
	return page, nil
}

// Changelog fetches every changelog page of one issue and maps it to events
// in emission order.
func (c *Client) Changelog(ctx context.Context, key string) ([]changelog.Event, error) {
	if key == "" {
		return nil, errors.New("jira: empty issue key")
	}

	var histories []historyDTO
	for startAt := 0; ; startAt += c.opts.BatchSize {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(c.opts.BatchSize))

		var page changelogResponse
		path := "/rest/api/2/issue/" + url.PathEscape(key) + "/changelog"
		if err := c.do(ctx, http.MethodGet, c.apiURL(path, q), nil, &page); err != nil {
			return nil, fmt.Errorf("changelog of %s: %w", key, err)
		}
		histories = append(histories, page.Values...)

		if page.IsLast || len(page.Values) < c.opts.BatchSize {
			break
		}
		if err := c.pause(ctx); err != nil {
			return nil, err
		}
	}

	return c.mapper.toEvents(histories)
}

// BoardSprints lists every sprint of the configured board.
func (c *Client) BoardSprints(ctx context.Context) ([]sprint.Sprint, error) {
	if c.opts.BoardID <= 0 {
		return nil, errors.New("jira: invalid board id")
	}

	var sprints []sprint.Sprint
	for startAt := 0; ; startAt += c.opts.BatchSize {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(c.opts.BatchSize))

		var page sprintsResponse
		path := "/rest/agile/1.0/board/" + strconv.Itoa(c.opts.BoardID) + "/sprint"
		if err := c.do(ctx, http.MethodGet, c.apiURL(path, q), nil, &page); err != nil {
			return nil, fmt.Errorf("sprints of board %d: %w", c.opts.BoardID, err)
		}
		for _, dto := range page.Values {
			s, err := toSprint(dto)
			if err != nil {
				c.log.Warn().Err(err).Int("sprint", dto.ID).Msg("skipping unreadable sprint")
				continue
			}
			sprints = append(sprints, s)
		}

		if page.IsLast || len(page.Values) < c.opts.BatchSize {
			return sprints, nil
		}
		if err := c.pause(ctx); err != nil {
			return nil, err
		}
	}
}

// Fields lists all fields sorted by name, for discovering custom field ids.
func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var dtos []fieldDTO
	if err := c.do(ctx, http.MethodGet, c.apiURL(c.apiPath("field"), nil), nil, &dtos); err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}

	fields := make([]Field, 0, len(dtos))
	for _, dto := range dtos {
		fields = append(fields, toField(dto))
	}
	slices.SortStableFunc(fields, func(a, b Field) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return fields, nil
}

func (c *Client) apiPath(resource string) string {
	if c.opts.IsCloud {
		return "/rest/api/3/" + resource
	}
	return "/rest/api/2/" + resource
}

func (c *Client) apiURL(path string, q url.Values) string {
	u := strings.TrimRight(c.opts.URL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.opts.PagePause):
		return nil
	}
}

// do sends one request and decodes the JSON answer into out. Rate limits and
// server errors are retried with exponential backoff.
func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	if c.opts.URL == "" {
		return errors.New("jira: empty base URL")
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.opts.Backoff * time.Duration(1<<(attempt-1))
			c.log.Debug().Err(lastErr).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retry, err := c.attempt(ctx, method, u, payload, out)
		c.opts.Recorder.Fetch("jira", err)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, u string, payload []byte, out any) (retry bool, err error) {
	var r io.Reader
	if payload != nil {
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Token)
	} else if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode jira response: %w", err)
	}
	return false, nil
}
