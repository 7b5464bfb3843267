package bitbucket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-flow-metrics/metrics"
)

func millis(t time.Time) int64 { return t.UnixMilli() }

func TestClient_FetchPullRequests(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	closed := created.Add(26 * time.Hour)
	old := time.Date(2023, time.January, 2, 9, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/1.0/projects/PRJ/repos/api/pull-requests", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "ALL", r.URL.Query().Get("state"))

		switch r.URL.Query().Get("start") {
		case "0":
			fmt.Fprintf(w, `{"isLastPage": false, "nextPageStart": 1, "values": [
				{"id": 7, "title": "Add checkout", "state": "MERGED", "createdDate": %d, "updatedDate": %d, "closedDate": %d,
				 "author": {"user": {"name": "ada"}},
				 "reviewers": [{"user": {"name": "bob"}, "approved": true, "status": "APPROVED"}, {"user": {"name": "eve"}, "status": "NEEDS_WORK"}],
				 "properties": {"commentCount": 4},
				 "links": {"self": [{"href": "https://bitbucket.example/projects/PRJ/repos/api/pull-requests/7"}]}}
			]}`, millis(created), millis(closed), millis(closed))
		default:
			fmt.Fprintf(w, `{"isLastPage": true, "values": [
				{"id": 3, "title": "Ancient", "state": "DECLINED", "createdDate": %d, "author": {"user": {"name": "ada"}}}
			]}`, millis(old))
		}
	})
	mux.HandleFunc("/rest/api/1.0/projects/PRJ/repos/api/pull-requests/7/diff", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"diffs": [
			{"hunks": [{"segments": [
				{"type": "ADDED", "lines": [{"line": "a"}, {"line": "b"}]},
				{"type": "CONTEXT", "lines": [{"line": "c"}]},
				{"type": "REMOVED", "lines": [{"line": "d"}]}
			]}]},
			{"hunks": [{"segments": [{"type": "ADDED", "lines": [{"line": "e"}]}]}]}
		]}`)
	})
	mux.HandleFunc("/rest/api/1.0/projects/PRJ/repos/api/pull-requests/7/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"size": 2, "isLastPage": true, "values": [{}, {}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(Options{
		URL:          srv.URL,
		Token:        "secret",
		Project:      "PRJ",
		Repositories: []string{"api"},
		Since:        time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}, zerolog.Nop())

	prs, err := c.FetchPullRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, prs, 1, "pull requests created before Since are dropped")

	pr := prs[0]
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "ada", pr.Author)
	assert.Equal(t, "api", pr.Repository)
	assert.Equal(t, "MERGED", pr.State)
	assert.Equal(t, "https://bitbucket.example/projects/PRJ/repos/api/pull-requests/7", pr.Link)
	assert.Equal(t, 4, pr.Comments)
	assert.Equal(t, 3, pr.Additions)
	assert.Equal(t, 1, pr.Deletions)
	assert.Equal(t, 2, pr.ChangedFiles)
	assert.Equal(t, 2, pr.Commits)
	assert.Equal(t, map[string]int{metrics.ReviewApproved: 1, metrics.ReviewChangesRequested: 1}, pr.Reviews)
	require.NotNil(t, pr.MergedAt)
	assert.True(t, pr.MergedAt.Equal(closed))

	lead, ok := pr.LeadTime()
	require.True(t, ok)
	assert.Equal(t, 26*time.Hour, lead)
}

func TestClient_DiffFailureKeepsPullRequest(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/1.0/projects/PRJ/repos/web/pull-requests", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"isLastPage": true, "values": [{"id": 1, "state": "OPEN", "createdDate": 1704100000000}]}`)
	})
	mux.HandleFunc("/rest/api/1.0/projects/PRJ/repos/web/pull-requests/1/diff", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	})
	mux.HandleFunc("/rest/api/1.0/projects/PRJ/repos/web/pull-requests/1/commits", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(Options{URL: srv.URL, Project: "PRJ", Repositories: []string{"web"}}, zerolog.Nop())
	prs, err := c.FetchPullRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, "OPEN", prs[0].State)
	assert.Zero(t, prs[0].Additions)
	_, ok := prs[0].LeadTime()
	assert.False(t, ok)
}

func TestClient_ListFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{URL: srv.URL, Project: "PRJ", Repositories: []string{"web"}}, zerolog.Nop())
	_, err := c.FetchPullRequests(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
