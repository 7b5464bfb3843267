package jira

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var typeGroup = regexp.MustCompile(`(\w+)\(([^)]+)\)`)

// TypeMapper groups Jira issue types, e.g. Incident and Support into
// "Support". Types outside every group pass through unchanged.
type TypeMapper struct {
	groups map[string][]string
	byType map[string]string
}

// NewTypeMapper builds a mapper from group name to member types.
func NewTypeMapper(groups map[string][]string) TypeMapper {
	m := TypeMapper{groups: groups, byType: make(map[string]string)}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	// First group wins on overlap, in name order.
	for _, name := range names {
		for _, t := range groups[name] {
			if _, ok := m.byType[t]; !ok {
				m.byType[t] = name
			}
		}
	}
	return m
}

// ParseTypeMapper reads the compact syntax
// "Support(Support;Incident),Tech(Tech;Task)".
func ParseTypeMapper(s string) (TypeMapper, error) {
	groups := make(map[string][]string)
	s = strings.TrimSpace(s)
	if s == "" {
		return NewTypeMapper(groups), nil
	}

	matches := typeGroup.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return TypeMapper{}, fmt.Errorf("jira: issue type mapping %q has no Group(Type;Type) entry", s)
	}
	for _, m := range matches {
		var members []string
		for _, t := range strings.Split(m[2], ";") {
			if t = strings.TrimSpace(t); t != "" {
				members = append(members, t)
			}
		}
		groups[m[1]] = members
	}
	return NewTypeMapper(groups), nil
}

// Map returns the group of issueType, or issueType itself.
func (m TypeMapper) Map(issueType string) string {
	if g, ok := m.byType[issueType]; ok {
		return g
	}
	return issueType
}

// Groups returns the parsed groups.
func (m TypeMapper) Groups() map[string][]string {
	return m.groups
}
