package metrics

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Seniority of a team member.
type Seniority string

const (
	Junior      Seniority = "junior"
	Experienced Seniority = "experienced"
	Senior      Seniority = "senior"
)

// Role of a team member.
type Role string

const (
	Frontend  Role = "frontend"
	Backend   Role = "backend"
	Fullstack Role = "fullstack"
	Manager   Role = "manager"
)

var (
	seniorities = []Seniority{Junior, Experienced, Senior}
	roles       = []Role{Frontend, Backend, Fullstack, Manager}
)

// ParseSeniority accepts one of junior, experienced or senior.
func ParseSeniority(s string) (Seniority, error) {
	v := Seniority(strings.ToLower(strings.TrimSpace(s)))
	if !lo.Contains(seniorities, v) {
		return "", fmt.Errorf("invalid seniority %q, expected one of %v", s, seniorities)
	}
	return v, nil
}

// ParseRole accepts one of frontend, backend, fullstack or manager.
func ParseRole(s string) (Role, error) {
	v := Role(strings.ToLower(strings.TrimSpace(s)))
	if !lo.Contains(roles, v) {
		return "", fmt.Errorf("invalid role %q, expected one of %v", s, roles)
	}
	return v, nil
}

// User is a configured team member and their handles on each tool.
type User struct {
	Name      string    `json:"name"`
	GitHub    string    `json:"github"`
	Bitbucket string    `json:"bitbucket,omitempty"`
	Jira      string    `json:"jira"`
	Seniority Seniority `json:"seniority"`
	Role      Role      `json:"role"`
}

// Users looks team members up by handle. An empty Users accepts everyone.
type Users struct {
	list []User
}

// NewUsers wraps the configured users.
func NewUsers(list []User) Users {
	return Users{list: append([]User(nil), list...)}
}

// Restricted reports whether a user list was configured.
func (u Users) Restricted() bool { return len(u.list) > 0 }

// All returns the configured users.
func (u Users) All() []User { return append([]User(nil), u.list...) }

// ByGitHub finds a user by GitHub login.
func (u Users) ByGitHub(handle string) (User, bool) {
	return lo.Find(u.list, func(x User) bool { return strings.EqualFold(x.GitHub, handle) })
}

// ByBitbucket finds a user by Bitbucket nickname or display name.
func (u Users) ByBitbucket(handle string) (User, bool) {
	return lo.Find(u.list, func(x User) bool { return x.Bitbucket != "" && strings.EqualFold(x.Bitbucket, handle) })
}

// ByJira finds a user by the Jira display name.
func (u Users) ByJira(handle string) (User, bool) {
	return lo.Find(u.list, func(x User) bool { return strings.EqualFold(x.Jira, handle) })
}

// JiraName resolves a Jira display name to the configured name, or returns
// it unchanged.
func (u Users) JiraName(handle string) string {
	if x, ok := u.ByJira(handle); ok && handle != "" {
		return x.Name
	}
	return handle
}
