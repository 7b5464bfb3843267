package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jira-flow-metrics/metrics"
	"jira-flow-metrics/telemetry"
)

const (
	defaultLimit   = 100
	defaultTimeout = 30 * time.Second
)

// Options configures a Client for a Bitbucket Server / Data Center instance.
type Options struct {
	URL          string // e.g., https://bitbucket.company.com
	Token        string
	Project      string
	Repositories []string
	// Since drops pull requests created before it. Zero keeps everything.
	Since   time.Time
	Limit   int
	Timeout time.Duration

	Recorder *telemetry.Recorder
}

// Client handles Bitbucket API operations
type Client struct {
	opts Options
	http *http.Client
	log  zerolog.Logger
}

// Bitbucket API responses
type bitbucketPRsResponse struct {
	Size       int  `json:"size"`
	Limit      int  `json:"limit"`
	IsLastPage bool `json:"isLastPage"`
	Start      int  `json:"start"`
	Values     []struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		State       string `json:"state"` // OPEN, MERGED, DECLINED
		CreatedDate int64  `json:"createdDate"`
		UpdatedDate int64  `json:"updatedDate"`
		ClosedDate  int64  `json:"closedDate"`
		Author      struct {
			User struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"author"`
		Reviewers []struct {
			User struct {
				Name string `json:"name"`
			} `json:"user"`
			Approved bool   `json:"approved"`
			Status   string `json:"status"` // APPROVED, NEEDS_WORK, UNAPPROVED
		} `json:"reviewers"`
		Properties struct {
			CommentCount int `json:"commentCount"`
		} `json:"properties"`
		Links struct {
			Self []struct {
				Href string `json:"href"`
			} `json:"self"`
		} `json:"links"`
	} `json:"values"`
	NextPageStart int `json:"nextPageStart"`
}

type bitbucketPRDiffResponse struct {
	Diffs []struct {
		Hunks []struct {
			Segments []struct {
				Type  string `json:"type"` // ADDED, REMOVED, CONTEXT
				Lines []struct {
					Line string `json:"line"`
				} `json:"lines"`
			} `json:"segments"`
		} `json:"hunks"`
	} `json:"diffs"`
}

type bitbucketCommitsResponse struct {
	Size       int  `json:"size"`
	IsLastPage bool `json:"isLastPage"`
}

// NewClient creates a new Bitbucket client
func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
		log:  log.With().Str("component", "bitbucket").Logger(),
	}
}

// get makes an authenticated GET request and decodes the JSON answer
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := strings.TrimRight(c.opts.URL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	err = func() error {
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}()
	c.opts.Recorder.Fetch("bitbucket", err)
	return err
}

func (c *Client) repoPath(repo string, rest ...string) string {
	parts := append([]string{"/rest/api/1.0/projects", url.PathEscape(c.opts.Project), "repos", url.PathEscape(repo)}, rest...)
	return strings.Join(parts, "/")
}

// FetchPullRequests retrieves the pull requests of every configured
// repository.
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

// PullRequests retrieves the pull requests of one repository in any state,
// with line counts from the diff.
func (c *Client) PullRequests(ctx context.Context, repo string) ([]metrics.PullRequest, error) {
	var prs []metrics.PullRequest
	start := 0

	for {
		q := url.Values{}
		q.Set("state", "ALL")
		q.Set("limit", strconv.Itoa(c.opts.Limit))
		q.Set("start", strconv.Itoa(start))

		var response bitbucketPRsResponse
		if err := c.get(ctx, c.repoPath(repo, "pull-requests"), q, &response); err != nil {
			return nil, fmt.Errorf("error fetching PRs of %s: %w", repo, err)
		}

		for _, v := range response.Values {
			createdAt := fromMillis(v.CreatedDate)
			if !c.opts.Since.IsZero() && createdAt.Before(c.opts.Since) {
				continue
			}

			pr := metrics.PullRequest{
				ID:         int64(v.ID),
				Number:     v.ID,
				Title:      v.Title,
				Author:     v.Author.User.Name,
				Repository: repo,
				State:      v.State,
				CreatedAt:  createdAt,
				UpdatedAt:  fromMillis(v.UpdatedDate),
				Comments:   v.Properties.CommentCount,
				Reviews:    make(map[string]int),
			}
			if len(v.Links.Self) > 0 {
				pr.Link = v.Links.Self[0].Href
			}
			pr.URL = c.opts.URL + c.repoPath(repo, "pull-requests", strconv.Itoa(v.ID))

			if v.ClosedDate > 0 {
				t := fromMillis(v.ClosedDate)
				pr.ClosedAt = &t
				if v.State == "MERGED" {
					pr.MergedAt = &t
				}
			}

			for _, reviewer := range v.Reviewers {
				switch {
				case reviewer.Approved || reviewer.Status == "APPROVED":
					pr.Reviews[metrics.ReviewApproved]++
				case reviewer.Status == "NEEDS_WORK":
					pr.Reviews[metrics.ReviewChangesRequested]++
				default:
					pr.Reviews[metrics.ReviewPending]++
				}
			}

			if err := c.countLines(ctx, repo, &pr); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.log.Warn().Err(err).Str("repository", repo).Int("pr", v.ID).Msg("diff unavailable, line counts left at zero")
			}
			if err := c.countCommits(ctx, repo, &pr); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.log.Warn().Err(err).Str("repository", repo).Int("pr", v.ID).Msg("commits unavailable")
			}

			prs = append(prs, pr)
		}

		if response.IsLastPage || len(response.Values) == 0 {
			break
		}
		start = response.NextPageStart
	}

	c.log.Info().Str("repository", repo).Int("count", len(prs)).Msg("fetched pull requests")
	return prs, nil
}

// countLines fetches the diff of pr and counts added and removed lines and
// touched files.
func (c *Client) countLines(ctx context.Context, repo string, pr *metrics.PullRequest) error {
	var diffResp bitbucketPRDiffResponse
	if err := c.get(ctx, c.repoPath(repo, "pull-requests", strconv.Itoa(pr.Number), "diff"), nil, &diffResp); err != nil {
		return err
	}

	pr.ChangedFiles = len(diffResp.Diffs)
	for _, diff := range diffResp.Diffs {
		for _, hunk := range diff.Hunks {
			for _, segment := range hunk.Segments {
				switch segment.Type {
				case "ADDED":
					pr.Additions += len(segment.Lines)
				case "REMOVED":
					pr.Deletions += len(segment.Lines)
				}
			}
		}
	}
	return nil
}

func (c *Client) countCommits(ctx context.Context, repo string, pr *metrics.PullRequest) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.opts.Limit))

	var resp bitbucketCommitsResponse
	if err := c.get(ctx, c.repoPath(repo, "pull-requests", strconv.Itoa(pr.Number), "commits"), q, &resp); err != nil {
		return err
	}
	pr.Commits = resp.Size
	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
