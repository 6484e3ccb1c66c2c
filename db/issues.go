package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"platformfetch/models"
)

// StoreIssues upserts Jira issues keyed by issue key
func (db *DB) StoreIssues(ctx context.Context, issues []models.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	safeLogInfo("Storing issues", zap.Int("count", len(issues)))
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO issues (
			key, project_key, summary, status, priority,
			issue_type, assignee, created, updated
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			summary = EXCLUDED.summary,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			issue_type = EXCLUDED.issue_type,
			assignee = EXCLUDED.assignee,
			updated = EXCLUDED.updated
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare issue insert statement: %w", err)
	}
	defer stmt.Close()

	for _, issue := range issues {
		if issue.Key == "" {
			return fmt.Errorf("%w: issue key cannot be empty", ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx,
			issue.Key,
			issue.ProjectKey,
			issue.Summary,
			issue.Status,
			issue.Priority,
			issue.IssueType,
			issue.Assignee,
			issue.Created,
			issue.Updated,
		); err != nil {
			return fmt.Errorf("failed to insert issue %s: %w", issue.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Issues stored successfully", zap.Int("count", len(issues)))
	return nil
}

// StoreChangelogEntries upserts changelog entries keyed by change id and field
func (db *DB) StoreChangelogEntries(ctx context.Context, entries []models.ChangelogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	safeLogInfo("Storing changelog entries", zap.Int("count", len(entries)))
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO changelog_entries (
			issue_key, change_id, author, field, from_value, to_value, created
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (change_id, field) DO NOTHING
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare changelog insert statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx,
			entry.IssueKey,
			entry.ChangeID,
			entry.Author,
			entry.Field,
			entry.FromValue,
			entry.ToValue,
			entry.Created,
		); err != nil {
			return fmt.Errorf("failed to insert changelog entry for %s: %w", entry.IssueKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Changelog entries stored successfully", zap.Int("count", len(entries)))
	return nil
}
