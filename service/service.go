// Package service wires configuration, storage and the platform clients into
// the long-running sync process.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"platformfetch/config"
	"platformfetch/confluence"
	"platformfetch/db"
	"platformfetch/fetcher"
	"platformfetch/gitlab"
	"platformfetch/jira"
	"platformfetch/logger"
)

// Service errors
var (
	ErrServiceInit     = fmt.Errorf("service initialization error")
	ErrServiceShutdown = fmt.Errorf("service shutdown error")
)

// Store bundles the persistence operations the service drives
type Store interface {
	fetcher.IssueStore
	fetcher.MergeRequestStore
	fetcher.PageStore

	MonitorProjects(ctx context.Context, interval time.Duration, callback func(projectID int64, latestDate time.Time) error)
	Close() error
}

// Service represents the main application service
type Service struct {
	config     *config.Config
	database   Store
	jira       fetcher.JiraClient
	confluence fetcher.ConfluenceClient
	gitlab     fetcher.GitLabClient
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewService creates a new service instance
func NewService() (*Service, error) {
	cfg := config.NewConfig()
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("%w: failed to load configuration: %v", ErrServiceInit, err)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize logger: %v", ErrServiceInit, err)
	}

	database, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
	}

	service := &Service{
		config:   cfg,
		database: database,
	}

	if cfg.Jira.URL != "" {
		jiraClient, err := jira.New(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize Jira client: %v", ErrServiceInit, err)
		}
		service.jira = jiraClient
	}
	if cfg.Confluence.URL != "" {
		confluenceClient, err := confluence.New(cfg.Confluence.URL, cfg.Confluence.Username, cfg.Confluence.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize Confluence client: %v", ErrServiceInit, err)
		}
		service.confluence = confluenceClient
	}
	if cfg.GitLab.URL != "" {
		gitlabClient, err := gitlab.New(cfg.GitLab.URL, cfg.GitLab.Token)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize GitLab client: %v", ErrServiceInit, err)
		}
		service.gitlab = gitlabClient
	}

	service.ctx, service.cancel = context.WithCancel(context.Background())

	logger.Info("Service initialized successfully",
		zap.Bool("jira", service.jira != nil),
		zap.Bool("confluence", service.confluence != nil),
		zap.Bool("gitlab", service.gitlab != nil),
		zap.Int("poll_interval", cfg.PollInterval))

	return service, nil
}

// Start runs the initial sync for every configured platform, starts the
// monitoring loop and blocks until a shutdown signal arrives.
func (s *Service) Start() error {
	if err := s.runInitialSync(); err != nil {
		logger.Warn("Error during initial sync", zap.Error(err))
		// Continue despite initial sync error
	}

	s.startMonitoring()

	s.waitForShutdown()

	return nil
}

// runInitialSync fetches the current state of every configured platform. A
// failing platform does not block the others; errors are collected and
// reported after every platform has run.
func (s *Service) runInitialSync() error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("service context cancelled: %w", s.ctx.Err())
	}

	var errs []error

	if s.jira != nil {
		logger.Info("Running initial Jira sync", zap.String("jql", s.config.Jira.JQL))
		if err := fetcher.SyncJira(s.ctx, s.database, s.jira, s.config.Jira.JQL); err != nil {
			logger.Warn("Jira sync failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("jira sync failed: %w", err))
		}
	}

	if s.confluence != nil {
		logger.Info("Running initial Confluence sync", zap.String("space_key", s.config.Confluence.SpaceKey))
		if err := fetcher.SyncConfluence(s.ctx, s.database, s.confluence, s.config.Confluence.SpaceKey); err != nil {
			logger.Warn("Confluence sync failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("confluence sync failed: %w", err))
		}
	}

	if s.gitlab != nil {
		logger.Info("Running initial GitLab sync", zap.Int64("project_id", s.config.GitLab.ProjectID))
		if err := fetcher.SyncGitLab(s.ctx, s.database, s.gitlab, s.config.GitLab.ProjectID, s.config.StartDate); err != nil {
			logger.Warn("GitLab sync failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("gitlab sync failed: %w", err))
		}
	}

	return errors.Join(errs...)
}

// startMonitoring starts the incremental GitLab sync loop
func (s *Service) startMonitoring() {
	if s.gitlab == nil {
		return
	}

	logger.Info("Starting project monitoring",
		zap.Int("poll_interval", s.config.PollInterval))

	s.database.MonitorProjects(
		s.ctx,
		time.Duration(s.config.PollInterval)*time.Second,
		func(projectID int64, latestDate time.Time) error {
			if s.ctx.Err() != nil {
				return fmt.Errorf("service context cancelled: %w", s.ctx.Err())
			}
			return fetcher.SyncGitLab(s.ctx, s.database, s.gitlab, projectID, latestDate)
		},
	)
}

// waitForShutdown waits for the shutdown signal
func (s *Service) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, initiating graceful shutdown")
	s.cancel()
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	s.cancel()
	logger.Sync()
	if err := s.database.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database: %v", ErrServiceShutdown, err)
	}
	return nil
}
