package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// MonitorProjects starts a goroutine that periodically invokes the callback
// for every project with stored merge requests, passing the creation date of
// the newest stored merge request as the incremental fetch watermark.
func (db *DB) MonitorProjects(ctx context.Context, interval time.Duration, callback func(projectID int64, latestDate time.Time) error) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.checkProjects(ctx, callback); err != nil {
					log.Printf("Error checking projects: %v", err)
				}
			}
		}
	}()
}

// checkProjects runs the callback for all known projects
func (db *DB) checkProjects(ctx context.Context, callback func(projectID int64, latestDate time.Time) error) error {
	projectIDs, err := db.ListProjectIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch projects for monitoring: %w", err)
	}

	// Process projects concurrently with a worker pool
	const maxWorkers = 5
	sem := make(chan struct{}, maxWorkers)
	errChan := make(chan error, len(projectIDs))
	var wg sync.WaitGroup

	for _, projectID := range projectIDs {
		wg.Add(1)
		go func(projectID int64) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire semaphore
			defer func() { <-sem }() // Release semaphore

			latestDate, err := db.GetLatestMergeRequestDate(ctx, projectID)
			if err != nil {
				if errors.Is(err, ErrNoMergeRequestsFound) {
					log.Printf("No merge requests found for project %d, skipping...", projectID)
					return
				}
				errChan <- fmt.Errorf("error getting latest date for project %d: %w", projectID, err)
				return
			}

			if err := callback(projectID, latestDate); err != nil {
				errChan <- fmt.Errorf("error processing project %d: %w", projectID, err)
			}
		}(projectID)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors occurred while processing projects: %v", errs)
	}

	return nil
}
