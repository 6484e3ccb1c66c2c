package jira

import (
	"fmt"
	"strings"
	"time"
)

// timeLayout is the timestamp format used by the Jira REST API.
const timeLayout = "2006-01-02T15:04:05.000-0700"

// Time wraps time.Time to decode Jira's timestamp format, which is not
// RFC 3339.
type Time struct {
	time.Time
}

// UnmarshalJSON decodes a Jira timestamp, falling back to RFC 3339 for
// servers that emit it.
func (t *Time) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "" || value == "null" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("invalid Jira timestamp %q", value)
		}
	}
	t.Time = parsed
	return nil
}

// MarshalJSON encodes the timestamp in Jira's format
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(timeLayout) + `"`), nil
}

// Issue represents a Jira issue
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the commonly used fields of an issue
type IssueFields struct {
	Summary   string      `json:"summary"`
	Status    *NamedValue `json:"status,omitempty"`
	Priority  *NamedValue `json:"priority,omitempty"`
	IssueType *NamedValue `json:"issuetype,omitempty"`
	Project   *ProjectRef `json:"project,omitempty"`
	Parent    *IssueRef   `json:"parent,omitempty"`
	Assignee  *User       `json:"assignee,omitempty"`
	Reporter  *User       `json:"reporter,omitempty"`
	Labels    []string    `json:"labels,omitempty"`
	Created   Time        `json:"created"`
	Updated   Time        `json:"updated"`
}

// IssueRef is a lightweight reference to another issue
type IssueRef struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// NamedValue is a Jira entity identified by id and display name
type NamedValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectRef is a lightweight reference to a project
type ProjectRef struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// User represents a Jira user
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Changelog represents one changelog entry of an issue
type Changelog struct {
	ID      string          `json:"id"`
	Author  *User           `json:"author,omitempty"`
	Created Time            `json:"created"`
	Items   []ChangelogItem `json:"items"`
}

// ChangelogItem is a single field change within a changelog entry
type ChangelogItem struct {
	Field      string `json:"field"`
	FieldType  string `json:"fieldtype"`
	From       string `json:"from"`
	FromString string `json:"fromString"`
	To         string `json:"to"`
	ToString   string `json:"toString"`
}

// IssueChangelogs pairs an issue key with its changelog entries
type IssueChangelogs struct {
	Key        string      `json:"key"`
	Changelogs []Changelog `json:"changelog"`
}

// Version represents a project version
type Version struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Released    bool   `json:"released"`
	Archived    bool   `json:"archived"`
	ReleaseDate string `json:"releaseDate"`
}

// Field describes a Jira field, built-in or custom
type Field struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// page is the envelope of Jira's offset-paginated responses. Search responses
// carry items under "issues", every other endpoint under "values".
type page[T any] struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Issues     []T `json:"issues"`
	Values     []T `json:"values"`
}

func (p *page[T]) items() []T {
	if p.Issues != nil {
		return p.Issues
	}
	return p.Values
}
