package metrics

// Column orders below are consumed positionally by pivot tables and charts
// built on top of the exports. Append new columns, never reorder.

// IssueColumns is the default column order of the issue report.
var IssueColumns = []string{
	"id",
	"key",
	"type",
	"status",
	"summary",
	"estimation",
	"timeSpent",
	"reporter",
	"assignee",
	"priority",
	"epicKey",
	"epicSummary",
	"link",
	"createdAt",
	"createdWeek",
	"createdSprint",
	"startedAt",
	"startedSprint",
	"resolvedAt",
	"resolvedWeek",
	"resolvedMonth",
	"resolvedQuarter",
	"resolvedSprint",
	"leadTimeSeconds",
	"leadTimeHours",
	"leadTimeDays",
	"leadTimeBucket",
	"businessLeadTimeSeconds",
	"businessLeadTimeHours",
	"businessLeadTimeDays",
	"businessLeadTimeBucket",
	"todoDays",
	"todoBusinessDays",
	"inProgressDays",
	"inProgressBusinessDays",
	"holdDays",
	"holdBusinessDays",
	"qaDays",
	"qaBusinessDays",
	"doneDays",
	"doneBusinessDays",
	"sprintCount",
	"isCommitted",
	"isDelivered",
}

// SprintColumns is the default column order of the issue x sprint report.
var SprintColumns = []string{
	"id",
	"type",
	"key",
	"status",
	"summary",
	"estimation",
	"timeSpent",
	"reporter",
	"assignee",
	"createdAt",
	"resolvedAt",
	"priority",
	"epicKey",
	"epicSummary",
	"link",
	"sprintId",
	"sprintName",
	"sprintStartedAt",
	"sprintEndedAt",
	"sprintCompletedAt",
	"isCommitted",
	"isDelivered",
	"sprintCommittedStoryPoints",
	"sprintDeliveredStoryPoint",
	"sprintGoal",
}

// PullRequestColumns is the default column order of the pull request report.
var PullRequestColumns = []string{
	"id",
	"url",
	"title",
	"number",
	"link",
	"author",
	"repository",
	"createdAt",
	"createdAtWeek",
	"createdAtMonth",
	"createdAtQuarter",
	"updatedAt",
	"updatedAtWeek",
	"updatedAtMonth",
	"updatedAtQuarter",
	"closedAt",
	"closedAtWeek",
	"closedAtMonth",
	"closedAtQuarter",
	"countComments",
	"countReviewComments",
	"totalComments",
	"additions",
	"deletions",
	"changed_files",
	"commits",
	"leadTimeMs",
	"leadTimeDays",
	"businessLeadTimeDays",
	"APPROVED",
	"CHANGES_REQUESTED",
	"COMMENTED",
	"DISMISSED",
	"PENDING",
	"authorSeniority",
	"authorRole",
}
