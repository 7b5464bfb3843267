package metrics

import (
	"time"

	"jira-flow-metrics/worktime"
)

// Review states counted per pull request.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewCommented        = "COMMENTED"
	ReviewDismissed        = "DISMISSED"
	ReviewPending          = "PENDING"
)

// ReviewStates lists the counted review states in column order.
var ReviewStates = []string{ReviewApproved, ReviewChangesRequested, ReviewCommented, ReviewDismissed, ReviewPending}

// PullRequest is a pull request from any code host.
type PullRequest struct {
	ID             int64          `json:"id"`
	Number         int            `json:"number"`
	URL            string         `json:"url"`
	Link           string         `json:"link"`
	Title          string         `json:"title"`
	Author         string         `json:"author"`
	Repository     string         `json:"repository"`
	State          string         `json:"state"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ClosedAt       *time.Time     `json:"closed_at,omitempty"`
	MergedAt       *time.Time     `json:"merged_at,omitempty"`
	Comments       int            `json:"comments"`
	ReviewComments int            `json:"review_comments"`
	Additions      int            `json:"additions"`
	Deletions      int            `json:"deletions"`
	ChangedFiles   int            `json:"changed_files"`
	Commits        int            `json:"commits"`
	Reviews        map[string]int `json:"reviews"`
}

// LeadTime is the time from creation to closing. The boolean is false while
// the pull request is open.
func (pr PullRequest) LeadTime() (time.Duration, bool) {
	if pr.ClosedAt == nil || pr.ClosedAt.Before(pr.CreatedAt) {
		return 0, false
	}
	return pr.ClosedAt.Sub(pr.CreatedAt), true
}

// PullRequestRecord renders pr as one pull request report row. user is the
// configured author when known.
func PullRequestRecord(pr PullRequest, user *User, cal worktime.Calendar) (Record, error) {
	r := Record{
		"id":                  pr.ID,
		"url":                 pr.URL,
		"title":               pr.Title,
		"number":              pr.Number,
		"link":                pr.Link,
		"author":              pr.Author,
		"repository":          pr.Repository,
		"countComments":       pr.Comments,
		"countReviewComments": pr.ReviewComments,
		"totalComments":       pr.Comments + pr.ReviewComments,
		"additions":           pr.Additions,
		"deletions":           pr.Deletions,
		"changed_files":       pr.ChangedFiles,
		"commits":             pr.Commits,
	}

	periods(r, "createdAt", &pr.CreatedAt)
	periods(r, "updatedAt", &pr.UpdatedAt)
	periods(r, "closedAt", pr.ClosedAt)

	if lead, ok := pr.LeadTime(); ok {
		business, err := cal.Business(pr.CreatedAt, *pr.ClosedAt)
		if err != nil {
			return nil, err
		}
		r["leadTimeMs"] = lead.Milliseconds()
		r["leadTimeDays"] = worktime.RoundedDays24h(lead)
		r["businessLeadTimeDays"] = cal.RoundedDays(business)
	}

	for _, state := range ReviewStates {
		r[state] = pr.Reviews[state]
	}

	if user != nil {
		r["author"] = user.Name
		r["authorSeniority"] = string(user.Seniority)
		r["authorRole"] = string(user.Role)
	}

	return r, nil
}

func periods(r Record, prefix string, t *time.Time) {
	if t == nil || t.IsZero() {
		return
	}
	r[prefix] = *t
	r[prefix+"Week"] = worktime.Week(*t)
	r[prefix+"Month"] = worktime.Month(*t)
	r[prefix+"Quarter"] = worktime.Quarter(*t)
}
