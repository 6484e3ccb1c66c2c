// Package fetcher orchestrates fetching platform data and storing it.
package fetcher

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"platformfetch/confluence"
	"platformfetch/gitlab"
	"platformfetch/jira"
	"platformfetch/logger"
	"platformfetch/models"
)

// IssueStore defines the database operations needed to store Jira data
type IssueStore interface {
	StoreIssues(ctx context.Context, issues []models.Issue) error
	StoreChangelogEntries(ctx context.Context, entries []models.ChangelogEntry) error
}

// MergeRequestStore defines the database operations needed to store GitLab data
type MergeRequestStore interface {
	StoreMergeRequests(ctx context.Context, mrs []models.MergeRequest) error
	BatchInsertCommits(ctx context.Context, commits []models.Commit) error
}

// PageStore defines the database operations needed to store Confluence data
type PageStore interface {
	StorePages(ctx context.Context, pages []models.Page) error
}

// JiraClient defines the Jira operations needed by the fetcher
type JiraClient interface {
	SearchIssues(ctx context.Context, jql string, fields []string) ([]jira.Issue, error)
	FetchIssueChangelogs(ctx context.Context, issues []jira.Issue) ([]jira.IssueChangelogs, error)
}

// GitLabClient defines the GitLab operations needed by the fetcher
type GitLabClient interface {
	FetchMergeRequests(ctx context.Context, projectID int64, opts *gitlab.MergeRequestOptions) ([]gitlab.MergeRequest, error)
	FetchCommits(ctx context.Context, projectID, mergeRequestIID int64) ([]gitlab.Commit, error)
}

// ConfluenceClient defines the Confluence operations needed by the fetcher
type ConfluenceClient interface {
	FetchSpaceByKey(ctx context.Context, spaceKey string) (*confluence.Space, error)
	FetchAllPages(ctx context.Context, spaceID string) ([]confluence.Page, error)
}

// SyncJira fetches all issues matching the JQL query together with their
// changelogs and stores them.
func SyncJira(ctx context.Context, store IssueStore, client JiraClient, jql string) error {
	issues, err := client.SearchIssues(ctx, jql, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch issues: %w", err)
	}
	if len(issues) == 0 {
		logger.Info("No issues found", zap.String("jql", jql))
		return nil
	}

	issueModels := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		issueModels = append(issueModels, issueToModel(issue))
	}
	if err := store.StoreIssues(ctx, issueModels); err != nil {
		return fmt.Errorf("failed to store issues: %w", err)
	}

	changelogs, err := client.FetchIssueChangelogs(ctx, issues)
	if err != nil {
		return fmt.Errorf("failed to fetch changelogs: %w", err)
	}

	var entries []models.ChangelogEntry
	for _, issueChangelogs := range changelogs {
		for _, changelog := range issueChangelogs.Changelogs {
			author := ""
			if changelog.Author != nil {
				author = changelog.Author.DisplayName
			}
			for _, item := range changelog.Items {
				entries = append(entries, models.ChangelogEntry{
					IssueKey:  issueChangelogs.Key,
					ChangeID:  changelog.ID,
					Author:    author,
					Field:     item.Field,
					FromValue: item.FromString,
					ToValue:   item.ToString,
					Created:   changelog.Created.Time,
				})
			}
		}
	}
	if err := store.StoreChangelogEntries(ctx, entries); err != nil {
		return fmt.Errorf("failed to store changelog entries: %w", err)
	}

	logger.Info("Jira sync finished",
		zap.Int("issues", len(issues)),
		zap.Int("changelog_entries", len(entries)))
	return nil
}

// SyncGitLab fetches all merge requests of a project created after since,
// together with their commits, and stores them.
func SyncGitLab(ctx context.Context, store MergeRequestStore, client GitLabClient, projectID int64, since time.Time) error {
	var opts *gitlab.MergeRequestOptions
	if !since.IsZero() {
		opts = &gitlab.MergeRequestOptions{CreatedAfter: since}
	}

	mrs, err := client.FetchMergeRequests(ctx, projectID, opts)
	if err != nil {
		return fmt.Errorf("failed to fetch merge requests: %w", err)
	}
	if len(mrs) == 0 {
		logger.Info("No new merge requests found", zap.Int64("project_id", projectID))
		return nil
	}

	mrModels := make([]models.MergeRequest, 0, len(mrs))
	for _, mr := range mrs {
		mrModels = append(mrModels, mergeRequestToModel(mr))
	}
	if err := store.StoreMergeRequests(ctx, mrModels); err != nil {
		return fmt.Errorf("failed to store merge requests: %w", err)
	}

	// Fetch commits per merge request with a worker pool
	const maxWorkers = 5
	sem := make(chan struct{}, maxWorkers)
	errChan := make(chan error, len(mrs))
	commitLists := make([][]models.Commit, len(mrs))
	var wg sync.WaitGroup

	for i, mr := range mrs {
		wg.Add(1)
		go func(i int, mr gitlab.MergeRequest) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire semaphore
			defer func() { <-sem }() // Release semaphore

			commits, err := client.FetchCommits(ctx, mr.ProjectID, mr.IID)
			if err != nil {
				errChan <- fmt.Errorf("failed to fetch commits for merge request %d: %w", mr.IID, err)
				return
			}
			list := make([]models.Commit, 0, len(commits))
			for _, commit := range commits {
				list = append(list, commitToModel(commit, mr))
			}
			commitLists[i] = list
		}(i, mr)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		return err
	}

	var commitModels []models.Commit
	for _, list := range commitLists {
		commitModels = append(commitModels, list...)
	}
	if err := store.BatchInsertCommits(ctx, commitModels); err != nil {
		return fmt.Errorf("failed to store commits: %w", err)
	}

	logger.Info("GitLab sync finished",
		zap.Int64("project_id", projectID),
		zap.Int("merge_requests", len(mrs)),
		zap.Int("commits", len(commitModels)))
	return nil
}

// SyncConfluence fetches every page of the space identified by spaceKey and
// stores them.
func SyncConfluence(ctx context.Context, store PageStore, client ConfluenceClient, spaceKey string) error {
	space, err := client.FetchSpaceByKey(ctx, spaceKey)
	if err != nil {
		return fmt.Errorf("failed to fetch space: %w", err)
	}

	pages, err := client.FetchAllPages(ctx, space.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch pages: %w", err)
	}
	if len(pages) == 0 {
		logger.Info("No pages found", zap.String("space_key", spaceKey))
		return nil
	}

	pageModels := make([]models.Page, 0, len(pages))
	for _, page := range pages {
		pageModels = append(pageModels, models.Page{
			PageID:   page.ID,
			SpaceID:  page.SpaceID,
			SpaceKey: spaceKey,
			ParentID: page.ParentID,
			Title:    page.Title,
			Version:  page.Version.Number,
		})
	}
	if err := store.StorePages(ctx, pageModels); err != nil {
		return fmt.Errorf("failed to store pages: %w", err)
	}

	logger.Info("Confluence sync finished",
		zap.String("space_key", spaceKey),
		zap.Int("pages", len(pages)))
	return nil
}

func issueToModel(issue jira.Issue) models.Issue {
	model := models.Issue{
		Key:     issue.Key,
		Summary: issue.Fields.Summary,
		Created: issue.Fields.Created.Time,
		Updated: issue.Fields.Updated.Time,
	}
	if issue.Fields.Project != nil {
		model.ProjectKey = issue.Fields.Project.Key
	}
	if issue.Fields.Status != nil {
		model.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Priority != nil {
		model.Priority = issue.Fields.Priority.Name
	}
	if issue.Fields.IssueType != nil {
		model.IssueType = issue.Fields.IssueType.Name
	}
	if issue.Fields.Assignee != nil {
		model.Assignee = issue.Fields.Assignee.DisplayName
	}
	return model
}

func mergeRequestToModel(mr gitlab.MergeRequest) models.MergeRequest {
	model := models.MergeRequest{
		IID:          mr.IID,
		ProjectID:    mr.ProjectID,
		Title:        mr.Title,
		State:        mr.State,
		Author:       mr.Author.Username,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		CreatedAt:    mr.CreatedAt,
		URL:          mr.WebURL,
	}
	if mr.MergedAt != nil {
		model.MergedAt = sql.NullTime{Time: *mr.MergedAt, Valid: true}
	}
	return model
}

func commitToModel(commit gitlab.Commit, mr gitlab.MergeRequest) models.Commit {
	date := commit.AuthoredDate
	if date.IsZero() {
		date = commit.CreatedAt
	}
	return models.Commit{
		SHA:             commit.ID,
		ProjectID:       mr.ProjectID,
		MergeRequestIID: mr.IID,
		Message:         commit.Message,
		AuthorName:      commit.AuthorName,
		AuthorEmail:     commit.AuthorEmail,
		Date:            date,
		URL:             commit.WebURL,
	}
}
