package jira

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jira-flow-metrics/changelog"
	"jira-flow-metrics/sprint"
)

// Jira renders timestamps as 2024-01-02T10:00:00.000+0000, which RFC 3339
// rejects because of the offset without colon.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type namedDTO struct {
	Name string `json:"name"`
}

type userDTO struct {
	DisplayName  string `json:"displayName"`
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress"`
}

func (u *userDTO) person(cloud bool) *Person {
	if u == nil {
		return nil
	}
	name := u.DisplayName
	if !cloud && u.Name != "" {
		name = u.Name
	}
	return &Person{Name: name, Email: u.EmailAddress}
}

type parentDTO struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary   string    `json:"summary"`
		Status    namedDTO  `json:"status"`
		Priority  *namedDTO `json:"priority"`
		IssueType namedDTO  `json:"issuetype"`
	} `json:"fields"`
}

type fieldsDTO struct {
	Summary            string     `json:"summary"`
	Status             namedDTO   `json:"status"`
	Priority           *namedDTO  `json:"priority"`
	Resolution         *namedDTO  `json:"resolution"`
	IssueType          namedDTO   `json:"issuetype"`
	Reporter           *userDTO   `json:"reporter"`
	Assignee           *userDTO   `json:"assignee"`
	Parent             *parentDTO `json:"parent"`
	Created            string     `json:"created"`
	ResolutionDate     string     `json:"resolutiondate"`
	AggregateTimeSpent *int64     `json:"aggregatetimespent"`
}

type issueDTO struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Fields json.RawMessage `json:"fields"`
}

type sprintDTO struct {
	ID            int    `json:"id"`
	State         string `json:"state"`
	Name          string `json:"name"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	CompleteDate  string `json:"completeDate"`
	OriginBoardID int    `json:"originBoardId"`
	Goal          string `json:"goal"`
}

type changelogItemDTO struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId"`
	From       string `json:"from"`
	FromString string `json:"fromString"`
	To         string `json:"to"`
	ToString   string `json:"toString"`
}

type historyDTO struct {
	ID      string             `json:"id"`
	Created string             `json:"created"`
	Items   []changelogItemDTO `json:"items"`
}

type fieldDTO struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// mapper turns Jira REST payloads into domain values.
type mapper struct {
	origin          string
	cloud           bool
	estimationField string
	sprintField     string
	types           TypeMapper
}

func (m mapper) toIssue(dto issueDTO) (Issue, error) {
	var f fieldsDTO
	if err := json.Unmarshal(dto.Fields, &f); err != nil {
		return Issue{}, fmt.Errorf("issue %s: decode fields: %w", dto.Key, err)
	}
	var custom map[string]json.RawMessage
	if err := json.Unmarshal(dto.Fields, &custom); err != nil {
		return Issue{}, fmt.Errorf("issue %s: decode fields: %w", dto.Key, err)
	}

	created, err := parseTime(f.Created)
	if err != nil {
		return Issue{}, fmt.Errorf("issue %s: created: %w", dto.Key, err)
	}
	resolved, err := parseOptionalTime(f.ResolutionDate)
	if err != nil {
		return Issue{}, fmt.Errorf("issue %s: resolutiondate: %w", dto.Key, err)
	}

	issue := Issue{
		ID:         atoi(dto.ID),
		Key:        dto.Key,
		Link:       m.browse(dto.Key),
		Summary:    f.Summary,
		Type:       m.types.Map(f.IssueType.Name),
		Status:     f.Status.Name,
		Priority:   nameOf(f.Priority),
		Resolution: nameOf(f.Resolution),
		Assignee:   f.Assignee.person(m.cloud),
		CreatedAt:  created,
		ResolvedAt: resolved,
	}
	if r := f.Reporter.person(m.cloud); r != nil {
		issue.Reporter = *r
	}
	if f.AggregateTimeSpent != nil {
		issue.TimeSpent = *f.AggregateTimeSpent
	}

	if raw, ok := custom[m.estimationField]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &issue.Estimation); err != nil {
			return Issue{}, fmt.Errorf("issue %s: %s: %w", dto.Key, m.estimationField, err)
		}
	}

	if raw, ok := custom[m.sprintField]; ok && !isNull(raw) {
		var sprints []sprintDTO
		if err := json.Unmarshal(raw, &sprints); err != nil {
			return Issue{}, fmt.Errorf("issue %s: %s: %w", dto.Key, m.sprintField, err)
		}
		for _, s := range sprints {
			sp, err := toSprint(s)
			if err != nil {
				return Issue{}, fmt.Errorf("issue %s: sprint %d: %w", dto.Key, s.ID, err)
			}
			issue.Sprints = append(issue.Sprints, sp)
		}
	}

	if p := f.Parent; p != nil {
		if p.Fields.IssueType.Name == "Epic" {
			issue.Epic = &Epic{
				ID:       atoi(p.ID),
				Key:      p.Key,
				Summary:  p.Fields.Summary,
				Status:   p.Fields.Status.Name,
				Priority: nameOf(p.Fields.Priority),
			}
		} else {
			issue.ParentKey = p.Key
		}
	}

	return issue, nil
}

func (m mapper) browse(key string) string {
	return strings.TrimRight(m.origin, "/") + "/browse/" + key
}

// toEvents maps every item of every history entry. Status items carry the
// display labels, sprint items the comma joined sprint ids.
func (m mapper) toEvents(histories []historyDTO) ([]changelog.Event, error) {
	var events []changelog.Event
	for _, h := range histories {
		at, err := parseTime(h.Created)
		if err != nil {
			return nil, fmt.Errorf("changelog %s: created: %w", h.ID, err)
		}
		for _, item := range h.Items {
			e := changelog.Event{OccurredAt: at}
			switch {
			case item.FieldID == "status" || (item.FieldID == "" && strings.EqualFold(item.Field, "status")):
				e.Kind = changelog.KindStatus
				e.From, e.To = item.FromString, item.ToString
			case item.FieldID == m.sprintField || (item.FieldID == "" && strings.EqualFold(item.Field, "sprint")):
				e.Kind = changelog.KindSprint
				e.From, e.To = item.From, item.To
			default:
				e.Kind = changelog.KindOther
				e.From, e.To = item.FromString, item.ToString
			}
			events = append(events, e)
		}
	}
	return events, nil
}

func toSprint(dto sprintDTO) (sprint.Sprint, error) {
	s := sprint.Sprint{
		ID:      dto.ID,
		Name:    dto.Name,
		State:   sprint.State(strings.ToLower(dto.State)),
		Goal:    dto.Goal,
		BoardID: dto.OriginBoardID,
	}
	var err error
	if s.StartedAt, err = parseOptionalTime(dto.StartDate); err != nil {
		return sprint.Sprint{}, err
	}
	if s.EndedAt, err = parseOptionalTime(dto.EndDate); err != nil {
		return sprint.Sprint{}, err
	}
	if s.CompletedAt, err = parseOptionalTime(dto.CompleteDate); err != nil {
		return sprint.Sprint{}, err
	}
	return s, nil
}

func toField(dto fieldDTO) Field {
	return Field{ID: dto.ID, Key: dto.Key, Name: dto.Name, Custom: dto.Custom}
}

func nameOf(n *namedDTO) string {
	if n == nil {
		return ""
	}
	return n.Name
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// atoi reads Jira's string ids. Non numeric ids map to 0.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
