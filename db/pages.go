package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"platformfetch/models"
)

// StorePages upserts Confluence pages keyed by page id
func (db *DB) StorePages(ctx context.Context, pages []models.Page) error {
	if len(pages) == 0 {
		return nil
	}

	safeLogInfo("Storing pages", zap.Int("count", len(pages)))
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO pages (page_id, space_id, space_key, parent_id, title, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (page_id) DO UPDATE SET
			title = EXCLUDED.title,
			parent_id = EXCLUDED.parent_id,
			version = EXCLUDED.version
		WHERE pages.version < EXCLUDED.version
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert statement: %w", err)
	}
	defer stmt.Close()

	for _, page := range pages {
		if page.PageID == "" {
			return fmt.Errorf("%w: page id cannot be empty", ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx,
			page.PageID,
			page.SpaceID,
			page.SpaceKey,
			page.ParentID,
			page.Title,
			page.Version,
		); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", page.PageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Pages stored successfully", zap.Int("count", len(pages)))
	return nil
}
