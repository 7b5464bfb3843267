package jira

import (
	"time"

	"github.com/samber/lo"

	"jira-flow-metrics/changelog"
	"jira-flow-metrics/sprint"
)

// types.go - Data structures for Jira integration

// Person is a reporter or assignee.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Epic is the epic an issue belongs to.
type Epic struct {
	ID       int    `json:"id"`
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// Issue is the snapshot of one Jira issue at fetch time, with its changelog.
type Issue struct {
	ID         int        `json:"id"`
	Key        string     `json:"key"`
	Link       string     `json:"link"`
	Summary    string     `json:"summary"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	Resolution string     `json:"resolution"`
	Reporter   Person     `json:"reporter"`
	Assignee   *Person    `json:"assignee,omitempty"`
	Epic       *Epic      `json:"epic,omitempty"`
	ParentKey  string     `json:"parent_key,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	// Estimation is in story points.
	Estimation float64 `json:"estimation"`
	// TimeSpent is the aggregated logged work in seconds.
	TimeSpent int64             `json:"time_spent"`
	Sprints   []sprint.Sprint   `json:"sprints"`
	Events    []changelog.Event `json:"-"`
}

// SprintIDs returns the ids of the sprints the issue currently belongs to.
func (i Issue) SprintIDs() []int {
	return lo.Map(i.Sprints, func(s sprint.Sprint, _ int) int { return s.ID })
}

// AssigneeName is the assignee display name or "" when unassigned.
func (i Issue) AssigneeName() string {
	if i.Assignee == nil {
		return ""
	}
	return i.Assignee.Name
}

// Field describes one Jira field, custom or system.
type Field struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}
