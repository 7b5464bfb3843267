package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"jira-flow-metrics/metrics"
)

// Output file names inside the output directory.
const (
	IssuesFile       = "issues.csv"
	SprintsFile      = "sprints.csv"
	PullRequestsFile = "pullrequests.csv"
	SummaryJSONFile  = "summary.json"
	SummaryCSVFile   = "summary.csv"
)

// Columns selects and orders the columns of each tabular report.
type Columns struct {
	Issues       []string
	Sprints      []string
	PullRequests []string
}

// WriteCSV writes a header row of columns followed by one row per record.
func WriteCSV(w io.Writer, columns []string, records []metrics.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(r.Row(columns)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile is WriteCSV into a new file at path.
func WriteCSVFile(path string, columns []string, records []metrics.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, columns, records); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// WriteFiles writes every report of rep into dir, creating it if needed.
// Reports without rows are skipped. It returns the written paths.
func WriteFiles(dir string, rep *Report, cols Columns) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for _, out := range []struct {
		name    string
		columns []string
		records []metrics.Record
	}{
		{IssuesFile, cols.Issues, rep.IssueRecords},
		{SprintsFile, cols.Sprints, rep.SprintRecords},
		{PullRequestsFile, cols.PullRequests, rep.PullRequestRecords},
	} {
		if len(out.records) == 0 {
			continue
		}
		path := filepath.Join(dir, out.name)
		if err := WriteCSVFile(path, out.columns, out.records); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	jsonPath := filepath.Join(dir, SummaryJSONFile)
	if err := ExportToJSON(rep.Summary, jsonPath); err != nil {
		return written, err
	}
	written = append(written, jsonPath)

	csvPath := filepath.Join(dir, SummaryCSVFile)
	if err := ExportToCSV(rep.Summary, csvPath); err != nil {
		return written, err
	}
	return append(written, csvPath), nil
}

// ExportToJSON saves metrics to a JSON file
func ExportToJSON(m metrics.TeamMetrics, filename string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// ExportToCSV saves the team summary as category, metric, value rows.
func ExportToCSV(m metrics.TeamMetrics, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteSummaryCSV(file, m); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteSummaryCSV writes the team summary as category, metric, value rows.
func WriteSummaryCSV(w io.Writer, m metrics.TeamMetrics) error {
	writer := csv.NewWriter(w)
	f2 := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

	rows := [][]string{
		{"Metric Category", "Metric Name", "Value"},
		{"Issues", "Total Issues", strconv.Itoa(m.Issues.TotalIssues)},
		{"Issues", "Resolved Issues", strconv.Itoa(m.Issues.ResolvedIssues)},
		{"Issues", "Open Issues", strconv.Itoa(m.Issues.OpenIssues)},
		{"Issues", "Avg Lead Time (days)", f2(m.Issues.AvgLeadTimeDays)},
		{"Issues", "Avg Business Lead Time (days)", f2(m.Issues.AvgBusinessLeadTimeDays)},
		{"Issues", "Throughput (per week)", f2(m.Issues.Throughput)},
		{"Issues", "Total Estimation", f2(m.Issues.TotalEstimation)},
		{"Issues", "Resolved Estimation", f2(m.Issues.ResolvedEstimation)},
		{"Issues", "Unmapped Statuses", strconv.Itoa(m.Issues.UnmappedStatuses)},
		{"Issues", "Orphan Sprints", strconv.Itoa(m.Issues.OrphanSprints)},
	}
	for _, label := range sortedKeys(m.Issues.LeadTimeBuckets) {
		rows = append(rows, []string{"Lead Time", label, strconv.Itoa(m.Issues.LeadTimeBuckets[label])})
	}
	for _, s := range m.Sprints {
		rows = append(rows,
			[]string{"Sprints", s.Name + " Committed", strconv.Itoa(s.Committed)},
			[]string{"Sprints", s.Name + " Delivered", strconv.Itoa(s.Delivered)},
		)
	}
	rows = append(rows,
		[]string{"Pull Requests", "Total PRs", strconv.Itoa(m.PullRequests.TotalPRs)},
		[]string{"Pull Requests", "Merged PRs", strconv.Itoa(m.PullRequests.MergedPRs)},
		[]string{"Pull Requests", "Avg Lead Time (hours)", f2(m.PullRequests.AvgLeadTimeHours)},
		[]string{"Pull Requests", "Avg PR Size (lines)", f2(m.PullRequests.AvgPRSize)},
		[]string{"Pull Requests", "Merge Success Rate (%)", f2(m.PullRequests.MergeSuccessRate)},
	)

	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
