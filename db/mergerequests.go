package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"platformfetch/models"
)

// StoreMergeRequests upserts merge requests keyed by project id and iid
func (db *DB) StoreMergeRequests(ctx context.Context, mrs []models.MergeRequest) error {
	if len(mrs) == 0 {
		return nil
	}

	safeLogInfo("Storing merge requests", zap.Int("count", len(mrs)))
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO merge_requests (
			iid, project_id, title, state, author,
			source_branch, target_branch, created_at, merged_at, url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (project_id, iid) DO UPDATE SET
			title = EXCLUDED.title,
			state = EXCLUDED.state,
			merged_at = EXCLUDED.merged_at
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare merge request insert statement: %w", err)
	}
	defer stmt.Close()

	for _, mr := range mrs {
		if mr.IID == 0 || mr.ProjectID == 0 {
			return fmt.Errorf("%w: merge request iid and project id cannot be zero", ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx,
			mr.IID,
			mr.ProjectID,
			mr.Title,
			mr.State,
			mr.Author,
			mr.SourceBranch,
			mr.TargetBranch,
			mr.CreatedAt,
			mr.MergedAt,
			mr.URL,
		); err != nil {
			return fmt.Errorf("failed to insert merge request %d: %w", mr.IID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Merge requests stored successfully", zap.Int("count", len(mrs)))
	return nil
}

// GetLatestMergeRequestDate retrieves the creation date of the newest stored
// merge request of a project. Used as the watermark for incremental fetches.
func (db *DB) GetLatestMergeRequestDate(ctx context.Context, projectID int64) (time.Time, error) {
	if projectID == 0 {
		return time.Time{}, fmt.Errorf("%w: project id cannot be zero", ErrInvalidInput)
	}

	query := `
		SELECT MAX(created_at) as max_date
		FROM merge_requests
		WHERE project_id = $1
	`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return time.Time{}, err
	}

	var latestDate sql.NullTime
	if err := stmt.GetContext(ctx, &latestDate, projectID); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, fmt.Errorf("%w: project %d", ErrProjectNotFound, projectID)
		}
		return time.Time{}, fmt.Errorf("failed to get latest merge request date for project %d: %w", projectID, err)
	}

	if !latestDate.Valid {
		return time.Time{}, fmt.Errorf("%w: project %d", ErrNoMergeRequestsFound, projectID)
	}

	return latestDate.Time, nil
}

// ListProjectIDs returns the distinct project ids with stored merge requests
func (db *DB) ListProjectIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := `SELECT DISTINCT project_id FROM merge_requests ORDER BY project_id`
	if err := db.conn.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list project ids: %w", err)
	}
	return ids, nil
}

// BatchInsertCommits performs batch insertion of merge request commits
func (db *DB) BatchInsertCommits(ctx context.Context, commits []models.Commit) error {
	if len(commits) == 0 {
		return nil
	}

	safeLogInfo("Starting batch insertion of commits", zap.Int("count", len(commits)))
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO commits (sha, project_id, merge_request_iid, message, author_name, author_email, date, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sha) DO UPDATE SET
			message = EXCLUDED.message,
			author_name = EXCLUDED.author_name,
			author_email = EXCLUDED.author_email,
			date = EXCLUDED.date,
			url = EXCLUDED.url
		WHERE commits.date < EXCLUDED.date
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare commit insert statement: %w", err)
	}
	defer stmt.Close()

	// Use a worker pool for batch processing
	const batchSize = 1000
	const maxWorkers = 5
	sem := make(chan struct{}, maxWorkers)
	errChan := make(chan error, len(commits))
	var wg sync.WaitGroup

	for i := 0; i < len(commits); i += batchSize {
		end := i + batchSize
		if end > len(commits) {
			end = len(commits)
		}

		batch := commits[i:end]
		wg.Add(1)
		go func(batch []models.Commit) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire semaphore
			defer func() { <-sem }() // Release semaphore

			for _, commit := range batch {
				if _, err := stmt.ExecContext(ctx,
					commit.SHA,
					commit.ProjectID,
					commit.MergeRequestIID,
					commit.Message,
					commit.AuthorName,
					commit.AuthorEmail,
					commit.Date,
					commit.URL,
				); err != nil {
					errChan <- fmt.Errorf("failed to insert commit %s: %w", commit.SHA, err)
					return
				}
			}
		}(batch)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors occurred while inserting commits: %v", errs)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Successfully inserted commits", zap.Int("count", len(commits)))
	return nil
}
