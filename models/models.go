// Package models defines the stored data structures shared by the fetchers
// and the database layer.
package models

import (
	"database/sql"
	"time"
)

// Issue represents a stored Jira issue
type Issue struct {
	ID         int       `db:"id" json:"id"`
	Key        string    `db:"key" json:"key"`
	ProjectKey string    `db:"project_key" json:"project_key"`
	Summary    string    `db:"summary" json:"summary"`
	Status     string    `db:"status" json:"status"`
	Priority   string    `db:"priority" json:"priority"`
	IssueType  string    `db:"issue_type" json:"issue_type"`
	Assignee   string    `db:"assignee" json:"assignee"`
	Created    time.Time `db:"created" json:"created"`
	Updated    time.Time `db:"updated" json:"updated"`
}

// ChangelogEntry represents a single stored field change of a Jira issue
type ChangelogEntry struct {
	ID        int       `db:"id" json:"id"`
	IssueKey  string    `db:"issue_key" json:"issue_key"`
	ChangeID  string    `db:"change_id" json:"change_id"`
	Author    string    `db:"author" json:"author"`
	Field     string    `db:"field" json:"field"`
	FromValue string    `db:"from_value" json:"from_value"`
	ToValue   string    `db:"to_value" json:"to_value"`
	Created   time.Time `db:"created" json:"created"`
}

// MergeRequest represents a stored GitLab merge request
type MergeRequest struct {
	ID           int          `db:"id" json:"id"`
	IID          int64        `db:"iid" json:"iid"`
	ProjectID    int64        `db:"project_id" json:"project_id"`
	Title        string       `db:"title" json:"title"`
	State        string       `db:"state" json:"state"`
	Author       string       `db:"author" json:"author"`
	SourceBranch string       `db:"source_branch" json:"source_branch"`
	TargetBranch string       `db:"target_branch" json:"target_branch"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	MergedAt     sql.NullTime `db:"merged_at" json:"merged_at"`
	URL          string       `db:"url" json:"url"`
}

// Commit represents a stored commit of a merge request
type Commit struct {
	ID              int       `db:"id" json:"id"`
	SHA             string    `db:"sha" json:"sha"`
	ProjectID       int64     `db:"project_id" json:"project_id"`
	MergeRequestIID int64     `db:"merge_request_iid" json:"merge_request_iid"`
	Message         string    `db:"message" json:"message"`
	AuthorName      string    `db:"author_name" json:"author_name"`
	AuthorEmail     string    `db:"author_email" json:"author_email"`
	Date            time.Time `db:"date" json:"date"`
	URL             string    `db:"url" json:"url"`
}

// Page represents a stored Confluence page
type Page struct {
	ID       int    `db:"id" json:"id"`
	PageID   string `db:"page_id" json:"page_id"`
	SpaceID  string `db:"space_id" json:"space_id"`
	SpaceKey string `db:"space_key" json:"space_key"`
	ParentID string `db:"parent_id" json:"parent_id"`
	Title    string `db:"title" json:"title"`
	Version  int    `db:"version" json:"version"`
}
