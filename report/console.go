package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"jira-flow-metrics/jira"
	"jira-flow-metrics/metrics"
	"jira-flow-metrics/sprint"
	"jira-flow-metrics/status"
	"jira-flow-metrics/worktime"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	return tbl
}

func heading(w io.Writer, title string) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "\n%s\n", title)
}

// PrintMetricsSummary displays a formatted summary to the console
func PrintMetricsSummary(w io.Writer, m metrics.TeamMetrics) {
	color.New(color.Bold).Fprintln(w, strings.Repeat("=", 60))
	color.New(color.Bold).Fprintln(w, "JIRA FLOW METRICS REPORT")
	fmt.Fprintf(w, "Generated %s\n", humanize.Time(m.GeneratedAt))
	color.New(color.Bold).Fprintln(w, strings.Repeat("=", 60))

	heading(w, "ISSUES")
	issues := m.Issues
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Total issues", humanize.Comma(int64(issues.TotalIssues))},
		{"Resolved", humanize.Comma(int64(issues.ResolvedIssues))},
		{"Open", humanize.Comma(int64(issues.OpenIssues))},
		{"Avg lead time (days)", humanize.FtoaWithDigits(issues.AvgLeadTimeDays, 2)},
		{"Avg business lead time (days)", humanize.FtoaWithDigits(issues.AvgBusinessLeadTimeDays, 2)},
		{"Throughput (per week)", humanize.FtoaWithDigits(issues.Throughput, 2)},
		{"Estimation (resolved / total)", fmt.Sprintf("%s / %s",
			humanize.FtoaWithDigits(issues.ResolvedEstimation, 1), humanize.FtoaWithDigits(issues.TotalEstimation, 1))},
	})
	for _, c := range status.Categories {
		tbl.AppendRow(table.Row{"Avg days in " + c.String(), humanize.FtoaWithDigits(issues.AvgDaysInCategory[c.String()], 2)})
	}
	tbl.Render()

	if issues.UnmappedStatuses > 0 || issues.OrphanSprints > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d unmapped status transitions, %d orphan sprint references\n",
			issues.UnmappedStatuses, issues.OrphanSprints)
	}

	if len(issues.LeadTimeBuckets) > 0 {
		heading(w, "LEAD TIME DISTRIBUTION")
		tbl = newTable(w)
		tbl.AppendHeader(table.Row{"Bucket", "Issues"})
		for _, label := range sortedKeys(issues.LeadTimeBuckets) {
			tbl.AppendRow(table.Row{label, issues.LeadTimeBuckets[label]})
		}
		tbl.Render()
	}

	if len(issues.IssuesByAssignee) > 0 {
		heading(w, "ISSUES BY ASSIGNEE")
		tbl = newTable(w)
		tbl.AppendHeader(table.Row{"Assignee", "Issues"})
		for _, name := range sortedKeys(issues.IssuesByAssignee) {
			tbl.AppendRow(table.Row{name, issues.IssuesByAssignee[name]})
		}
		tbl.Render()
	}

	if len(m.Sprints) > 0 {
		heading(w, "SPRINTS")
		tbl = newTable(w)
		tbl.AppendHeader(table.Row{"Sprint", "Start", "End", "Issues", "Committed", "Delivered", "Committed SP", "Delivered SP"})
		for _, s := range m.Sprints {
			tbl.AppendRow(table.Row{
				s.Name, metrics.FormatValue(s.StartedAt), metrics.FormatValue(s.EndedAt),
				s.Issues, s.Committed, s.Delivered,
				humanize.FtoaWithDigits(s.CommittedPoints, 1), humanize.FtoaWithDigits(s.DeliveredPoints, 1),
			})
		}
		tbl.Render()
	}

	if prs := m.PullRequests; prs.TotalPRs > 0 {
		heading(w, "PULL REQUESTS")
		tbl = newTable(w)
		tbl.AppendHeader(table.Row{"Metric", "Value"})
		tbl.AppendRows([]table.Row{
			{"Total PRs", fmt.Sprintf("%d (merged %d, closed %d, open %d)", prs.TotalPRs, prs.MergedPRs, prs.ClosedPRs, prs.OpenPRs)},
			{"Avg lead time (hours)", humanize.FtoaWithDigits(prs.AvgLeadTimeHours, 2)},
			{"Avg PR size (lines)", humanize.FtoaWithDigits(prs.AvgPRSize, 0)},
			{"Merge success rate", fmt.Sprintf("%.2f%%", prs.MergeSuccessRate)},
		})
		for _, author := range sortedKeys(prs.PRsByAuthor) {
			tbl.AppendRow(table.Row{"  " + author, prs.PRsByAuthor[author]})
		}
		tbl.Render()
	}
}

// PrintSprintCalendar lists the generated sprint windows and marks the one
// containing now.
func PrintSprintCalendar(w io.Writer, cal *sprint.Calendar, now time.Time) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Sprint", "Start", "End", ""})
	current, hasCurrent := cal.Find(now)
	for _, win := range cal.Windows() {
		marker := ""
		if hasCurrent && win.Number == current.Number {
			marker = color.GreenString("current")
		}
		tbl.AppendRow(table.Row{win.Label, worktime.Date(win.Start), worktime.Date(win.End), marker})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d sprints", len(cal.Windows())), "", fmt.Sprintf("%d days each", cal.LengthDays()), ""})
	tbl.Render()
}

// PrintSprints lists tracker sprints with their normalized names.
func PrintSprints(w io.Writer, sprints []sprint.Sprint) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"ID", "Name", "Sprint", "State", "Start", "End", "Completed"})
	for _, s := range sprints {
		tbl.AppendRow(table.Row{
			s.ID, s.Name, s.DisplayName(), string(s.State),
			metrics.FormatValue(s.StartedAt), metrics.FormatValue(s.EndedAt), metrics.FormatValue(s.CompletedAt),
		})
	}
	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d sprints", len(sprints))})
	tbl.Render()
}

// PrintFields lists tracker fields, for picking the estimation and sprint
// field ids.
func PrintFields(w io.Writer, fields []jira.Field) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Name", "ID", "Key", "Custom"})
	for _, f := range fields {
		tbl.AppendRow(table.Row{f.Name, f.ID, f.Key, metrics.FormatValue(f.Custom)})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d fields", len(fields))})
	tbl.Render()
}
