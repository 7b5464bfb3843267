package metrics

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"jira-flow-metrics/status"
	"jira-flow-metrics/worktime"
)

// Metric structures
type IssueSummary struct {
	TotalIssues             int                `json:"total_issues"`
	ResolvedIssues          int                `json:"resolved_issues"`
	OpenIssues              int                `json:"open_issues"`
	AvgLeadTimeDays         float64            `json:"avg_lead_time_days"`
	AvgBusinessLeadTimeDays float64            `json:"avg_business_lead_time_days"`
	Throughput              float64            `json:"throughput_per_week"`
	TotalEstimation         float64            `json:"total_estimation"`
	ResolvedEstimation      float64            `json:"resolved_estimation"`
	IssuesByAssignee        map[string]int     `json:"issues_by_assignee"`
	LeadTimeBuckets         map[string]int     `json:"lead_time_buckets"`
	AvgDaysInCategory       map[string]float64 `json:"avg_days_in_category"`
	UnmappedStatuses        int                `json:"unmapped_statuses"`
	OrphanSprints           int                `json:"orphan_sprints"`
}

type SprintSummary struct {
	ID              int        `json:"id"`
	Name            string     `json:"name"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Issues          int        `json:"issues"`
	Committed       int        `json:"committed"`
	Delivered       int        `json:"delivered"`
	CommittedPoints float64    `json:"committed_points"`
	DeliveredPoints float64    `json:"delivered_points"`
}

type PRSummary struct {
	TotalPRs         int            `json:"total_prs"`
	MergedPRs        int            `json:"merged_prs"`
	ClosedPRs        int            `json:"closed_prs"`
	OpenPRs          int            `json:"open_prs"`
	AvgLeadTimeHours float64        `json:"avg_lead_time_hours"`
	AvgPRSize        float64        `json:"avg_pr_size"`
	PRsByAuthor      map[string]int `json:"prs_by_author"`
	MergeSuccessRate float64        `json:"merge_success_rate"`
}

type TeamMetrics struct {
	Issues       IssueSummary    `json:"issues"`
	Sprints      []SprintSummary `json:"sprints"`
	PullRequests PRSummary       `json:"pull_requests"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// CalculateIssueSummary aggregates assembled issues.
func CalculateIssueSummary(items []IssueMetrics, buckets Buckets, cal worktime.Calendar) IssueSummary {
	summary := IssueSummary{
		IssuesByAssignee:  make(map[string]int),
		LeadTimeBuckets:   make(map[string]int),
		AvgDaysInCategory: make(map[string]float64),
	}

	if len(items) == 0 {
		return summary
	}

	summary.TotalIssues = len(items)
	var totalLead, totalBusinessLead float64
	var leadCount int

	var minDate, maxDate time.Time
	for i, m := range items {
		issue := m.Issue
		if i == 0 || issue.CreatedAt.Before(minDate) {
			minDate = issue.CreatedAt
		}
		if issue.ResolvedAt != nil && issue.ResolvedAt.After(maxDate) {
			maxDate = *issue.ResolvedAt
		}

		assignee := m.Assignee
		if assignee == "" {
			assignee = "Unassigned"
		}
		summary.IssuesByAssignee[assignee]++
		summary.TotalEstimation += issue.Estimation
		summary.UnmappedStatuses += len(m.Replay.Unmapped)
		summary.OrphanSprints += len(m.Orphans)

		if issue.ResolvedAt != nil {
			summary.ResolvedIssues++
			summary.ResolvedEstimation += issue.Estimation
		}

		if m.LeadTime != nil {
			days := worktime.RoundedDays24h(m.LeadTime.Calendar)
			totalLead += days
			totalBusinessLead += cal.RoundedDays(m.LeadTime.Business)
			leadCount++
			summary.LeadTimeBuckets[buckets.Label(days)]++
		}

		for _, c := range status.Categories {
			summary.AvgDaysInCategory[c.String()] += m.Replay.Durations.Of(c).Calendar.Hours() / 24
		}
	}

	summary.OpenIssues = summary.TotalIssues - summary.ResolvedIssues
	if leadCount > 0 {
		summary.AvgLeadTimeDays = totalLead / float64(leadCount)
		summary.AvgBusinessLeadTimeDays = totalBusinessLead / float64(leadCount)
	}
	for k, v := range summary.AvgDaysInCategory {
		summary.AvgDaysInCategory[k] = v / float64(summary.TotalIssues)
	}

	weeksDiff := maxDate.Sub(minDate).Hours() / 24 / 7
	if weeksDiff > 0 {
		summary.Throughput = float64(summary.ResolvedIssues) / weeksDiff
	}

	return summary
}

// CalculateSprintSummary aggregates commitment and delivery per sprint,
// ordered by sprint id.
func CalculateSprintSummary(items []IssueMetrics) []SprintSummary {
	byID := make(map[int]*SprintSummary)
	for _, m := range items {
		for _, v := range m.Verdicts {
			s, ok := byID[v.Sprint.ID]
			if !ok {
				s = &SprintSummary{
					ID:        v.Sprint.ID,
					Name:      v.Sprint.DisplayName(),
					StartedAt: v.Sprint.StartedAt,
					EndedAt:   v.Sprint.EffectiveEnd(),
				}
				byID[v.Sprint.ID] = s
			}
			s.Issues++
			if v.Committed {
				s.Committed++
				s.CommittedPoints += m.Issue.Estimation
			}
			if v.Delivered {
				s.Delivered++
				s.DeliveredPoints += m.Issue.Estimation
			}
		}
	}

	out := lo.MapToSlice(byID, func(_ int, s *SprintSummary) SprintSummary { return *s })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CalculatePRSummary computes metrics from pull requests
func CalculatePRSummary(prs []PullRequest) PRSummary {
	summary := PRSummary{
		PRsByAuthor: make(map[string]int),
	}

	if len(prs) == 0 {
		return summary
	}

	summary.TotalPRs = len(prs)
	var totalLeadTime, totalSize float64
	var leadTimeCount int

	for _, pr := range prs {
		summary.PRsByAuthor[pr.Author]++

		switch pr.State {
		case "MERGED":
			summary.MergedPRs++
		case "DECLINED", "CLOSED":
			summary.ClosedPRs++
		case "OPEN":
			summary.OpenPRs++
		}

		if lead, ok := pr.LeadTime(); ok {
			totalLeadTime += lead.Hours()
			leadTimeCount++
		}

		totalSize += float64(pr.Additions + pr.Deletions)
	}

	if leadTimeCount > 0 {
		summary.AvgLeadTimeHours = totalLeadTime / float64(leadTimeCount)
	}
	summary.AvgPRSize = totalSize / float64(summary.TotalPRs)
	summary.MergeSuccessRate = float64(summary.MergedPRs) / float64(summary.TotalPRs) * 100

	return summary
}

// CalculateTeamMetrics combines all metrics
func CalculateTeamMetrics(items []IssueMetrics, prs []PullRequest, buckets Buckets, cal worktime.Calendar, now time.Time) TeamMetrics {
	return TeamMetrics{
		Issues:       CalculateIssueSummary(items, buckets, cal),
		Sprints:      CalculateSprintSummary(items),
		PullRequests: CalculatePRSummary(prs),
		GeneratedAt:  now,
	}
}
