package jira

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	issueKeyPattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*-[0-9]+$`)
	projectKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// IsIssueKey checks if key looks like a Jira issue key such as "PROJ-123".
// Keys are embedded verbatim in JQL, so anything else is rejected.
func IsIssueKey(key string) bool {
	return issueKeyPattern.MatchString(key)
}

// IsProjectKey checks if key looks like a Jira project key such as "PROJ".
// Keys end up in a search query string, so anything else is rejected.
func IsProjectKey(key string) bool {
	return projectKeyPattern.MatchString(key)
}

// ParseEntityID parses the numeric id Jira returns as a string for some
// resources, e.g. project ids.
func ParseEntityID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entity id %q", s)
	}
	return id, nil
}
