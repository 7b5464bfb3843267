package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"

	"jira-flow-metrics/metrics"
	"jira-flow-metrics/telemetry"
)

const (
	defaultBatchSize = 100
	defaultTimeout   = 30 * time.Second
	defaultBackoff   = 300 * time.Millisecond
	maxAttempts      = 3
)

// Options configures a Client.
type Options struct {
	Organization string
	Repositories []string
	Token        string
	// BaseURL points at a GitHub Enterprise server, e.g.
	// https://github.company.com. Empty means github.com.
	BaseURL string
	// ClosedFrom limits the search to pull requests merged after this
	// yyyy-MM-dd date.
	ClosedFrom string
	BatchSize  int
	Timeout    time.Duration
	Backoff    time.Duration

	Recorder *telemetry.Recorder
}

// Client fetches merged pull requests with their review counts.
type Client struct {
	opts Options
	gh   *gh.Client
	log  zerolog.Logger
}

// NewClient creates a new GitHub client
func NewClient(opts Options, log zerolog.Logger) (*Client, error) {
	if opts.BatchSize <= 0 || opts.BatchSize > defaultBatchSize {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	client := gh.NewClient(&http.Client{Timeout: opts.Timeout})
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" && opts.BaseURL != "https://github.com" {
		var err error
		if client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL); err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
	}

	return &Client{
		opts: opts,
		gh:   client,
		log:  log.With().Str("component", "github").Logger(),
	}, nil
}

// SearchQuery selects the merged pull requests of one repository.
func (c *Client) SearchQuery(repository string) string {
	q := fmt.Sprintf("is:pr is:merged repo:%s/%s", c.opts.Organization, repository)
	if c.opts.ClosedFrom != "" {
		q += " closed:>" + c.opts.ClosedFrom
	}
	return q
}

// FetchPullRequests retrieves the pull requests of every configured
// repository. A pull request whose details cannot be loaded is logged and
// skipped.
func (c *Client) FetchPullRequests(ctx context.Context) ([]metrics.PullRequest, error) {
	var prs []metrics.PullRequest
	for _, repo := range c.opts.Repositories {
		repoPRs, err := c.PullRequests(ctx, repo)
		if err != nil {
			return nil, err
		}
		prs = append(prs, repoPRs...)
	}
	return prs, nil
}

// PullRequests retrieves the merged pull requests of one repository.
func (c *Client) PullRequests(ctx context.Context, repository string) ([]metrics.PullRequest, error) {
	numbers, err := c.search(ctx, repository)
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("repository", repository).Int("count", len(numbers)).Msg("found pull requests")

	prs := make([]metrics.PullRequest, 0, len(numbers))
	for _, n := range numbers {
		pr, err := c.PullRequest(ctx, repository, n)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str("repository", repository).Int("number", n).Msg("skipping pull request")
			c.opts.Recorder.Skipped("pullrequests")
			continue
		}
		prs = append(prs, pr)
	}
	return prs, nil
}

func (c *Client) search(ctx context.Context, repository string) ([]int, error) {
	query := c.SearchQuery(repository)
	opts := &gh.SearchOptions{
		Sort:        "created",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: c.opts.BatchSize},
	}

	var numbers []int
	for {
		var result *gh.IssuesSearchResult
		resp, err := c.retry(ctx, func() (*gh.Response, error) {
			var resp *gh.Response
			var err error
			result, resp, err = c.gh.Search.Issues(ctx, query, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		for _, issue := range result.Issues {
			numbers = append(numbers, issue.GetNumber())
		}
		if resp == nil || resp.NextPage == 0 {
			return numbers, nil
		}
		opts.Page = resp.NextPage
	}
}

// PullRequest loads one pull request with its review state counts.
func (c *Client) PullRequest(ctx context.Context, repository string, number int) (metrics.PullRequest, error) {
	var pr *gh.PullRequest
	_, err := c.retry(ctx, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		pr, resp, err = c.gh.PullRequests.Get(ctx, c.opts.Organization, repository, number)
		return resp, err
	})
	if err != nil {
		return metrics.PullRequest{}, fmt.Errorf("get pull request %s#%d: %w", repository, number, err)
	}

	reviews, err := c.reviewCounts(ctx, repository, number)
	if err != nil {
		return metrics.PullRequest{}, err
	}

	return toPullRequest(pr, repository, reviews), nil
}

func (c *Client) reviewCounts(ctx context.Context, repository string, number int) (map[string]int, error) {
	counts := make(map[string]int)
	opts := &gh.ListOptions{PerPage: c.opts.BatchSize}
	for {
		var reviews []*gh.PullRequestReview
		resp, err := c.retry(ctx, func() (*gh.Response, error) {
			var resp *gh.Response
			var err error
			reviews, resp, err = c.gh.PullRequests.ListReviews(ctx, c.opts.Organization, repository, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("list reviews of %s#%d: %w", repository, number, err)
		}
		for _, r := range reviews {
			counts[strings.ToUpper(r.GetState())]++
		}
		if resp == nil || resp.NextPage == 0 {
			return counts, nil
		}
		opts.Page = resp.NextPage
	}
}

// retry runs call up to maxAttempts times while GitHub answers with a rate
// limit or a server error.
func (c *Client) retry(ctx context.Context, call func() (*gh.Response, error)) (*gh.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.opts.Backoff * time.Duration(1<<(attempt-1))
			c.log.Debug().Err(lastErr).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := call()
		c.opts.Recorder.Fetch("github", err)
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return resp, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		return code == http.StatusTooManyRequests || code >= 500
	}
	return false
}

func toPullRequest(pr *gh.PullRequest, repository string, reviews map[string]int) metrics.PullRequest {
	return metrics.PullRequest{
		ID:             pr.GetID(),
		Number:         pr.GetNumber(),
		URL:            pr.GetURL(),
		Link:           pr.GetHTMLURL(),
		Title:          pr.GetTitle(),
		Author:         pr.GetUser().GetLogin(),
		Repository:     repository,
		State:          state(pr),
		CreatedAt:      pr.GetCreatedAt().Time,
		UpdatedAt:      pr.GetUpdatedAt().Time,
		ClosedAt:       pr.ClosedAt.GetTime(),
		MergedAt:       pr.MergedAt.GetTime(),
		Comments:       pr.GetComments(),
		ReviewComments: pr.GetReviewComments(),
		Additions:      pr.GetAdditions(),
		Deletions:      pr.GetDeletions(),
		ChangedFiles:   pr.GetChangedFiles(),
		Commits:        pr.GetCommits(),
		Reviews:        reviews,
	}
}

func state(pr *gh.PullRequest) string {
	switch {
	case pr.MergedAt != nil:
		return "MERGED"
	case pr.GetState() == "closed":
		return "CLOSED"
	default:
		return "OPEN"
	}
}
