package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"platformfetch/config"
	"platformfetch/confluence"
	"platformfetch/gitlab"
	"platformfetch/jira"
	"platformfetch/logger"
	"platformfetch/models"
)

func init() {
	// Initialize logger for tests
	_ = logger.Initialize("debug")
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) StoreIssues(ctx context.Context, issues []models.Issue) error {
	args := m.Called(ctx, issues)
	return args.Error(0)
}

func (m *MockStore) StoreChangelogEntries(ctx context.Context, entries []models.ChangelogEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockStore) StoreMergeRequests(ctx context.Context, mrs []models.MergeRequest) error {
	args := m.Called(ctx, mrs)
	return args.Error(0)
}

func (m *MockStore) BatchInsertCommits(ctx context.Context, commits []models.Commit) error {
	args := m.Called(ctx, commits)
	return args.Error(0)
}

func (m *MockStore) StorePages(ctx context.Context, pages []models.Page) error {
	args := m.Called(ctx, pages)
	return args.Error(0)
}

func (m *MockStore) MonitorProjects(ctx context.Context, interval time.Duration, callback func(projectID int64, latestDate time.Time) error) {
	m.Called(ctx, interval)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockJiraClient is a mock implementation of fetcher.JiraClient
type MockJiraClient struct {
	mock.Mock
}

func (m *MockJiraClient) SearchIssues(ctx context.Context, jql string, fields []string) ([]jira.Issue, error) {
	args := m.Called(ctx, jql, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]jira.Issue), args.Error(1)
}

func (m *MockJiraClient) FetchIssueChangelogs(ctx context.Context, issues []jira.Issue) ([]jira.IssueChangelogs, error) {
	args := m.Called(ctx, issues)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]jira.IssueChangelogs), args.Error(1)
}

// MockConfluenceClient is a mock implementation of fetcher.ConfluenceClient
type MockConfluenceClient struct {
	mock.Mock
}

func (m *MockConfluenceClient) FetchSpaceByKey(ctx context.Context, spaceKey string) (*confluence.Space, error) {
	args := m.Called(ctx, spaceKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*confluence.Space), args.Error(1)
}

func (m *MockConfluenceClient) FetchAllPages(ctx context.Context, spaceID string) ([]confluence.Page, error) {
	args := m.Called(ctx, spaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]confluence.Page), args.Error(1)
}

// MockGitLabClient is a mock implementation of fetcher.GitLabClient
type MockGitLabClient struct {
	mock.Mock
}

func (m *MockGitLabClient) FetchMergeRequests(ctx context.Context, projectID int64, opts *gitlab.MergeRequestOptions) ([]gitlab.MergeRequest, error) {
	args := m.Called(ctx, projectID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gitlab.MergeRequest), args.Error(1)
}

func (m *MockGitLabClient) FetchCommits(ctx context.Context, projectID, mergeRequestIID int64) ([]gitlab.Commit, error) {
	args := m.Called(ctx, projectID, mergeRequestIID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gitlab.Commit), args.Error(1)
}

func newTestService(store Store, jiraClient *MockJiraClient, confluenceClient *MockConfluenceClient, gitlabClient *MockGitLabClient) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		config: &config.Config{
			Jira:       config.JiraConfig{URL: "https://jira.example.com", JQL: "project = TEST"},
			Confluence: config.ConfluenceConfig{URL: "https://confluence.example.com", SpaceKey: "DOCS"},
			GitLab:     config.GitLabConfig{URL: "https://gitlab.example.com", ProjectID: 42},
			StartDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		database: store,
		ctx:      ctx,
		cancel:   cancel,
	}
	if jiraClient != nil {
		svc.jira = jiraClient
	}
	if confluenceClient != nil {
		svc.confluence = confluenceClient
	}
	if gitlabClient != nil {
		svc.gitlab = gitlabClient
	}
	return svc
}

func TestRunInitialSyncContinuesAfterPlatformFailure(t *testing.T) {
	store := new(MockStore)
	jiraClient := new(MockJiraClient)
	confluenceClient := new(MockConfluenceClient)
	gitlabClient := new(MockGitLabClient)

	svc := newTestService(store, jiraClient, confluenceClient, gitlabClient)
	defer svc.cancel()
	ctx := svc.ctx

	jiraClient.On("SearchIssues", ctx, "project = TEST", []string(nil)).
		Return(nil, errors.New("jira down"))
	confluenceClient.On("FetchSpaceByKey", ctx, "DOCS").
		Return(&confluence.Space{ID: "777", Key: "DOCS"}, nil)
	confluenceClient.On("FetchAllPages", ctx, "777").
		Return([]confluence.Page{
			{ID: "1", SpaceID: "777", Title: "Runbook", Version: confluence.Version{Number: 1}},
		}, nil)
	store.On("StorePages", ctx, mock.Anything).Return(nil)
	gitlabClient.On("FetchMergeRequests", ctx, int64(42),
		&gitlab.MergeRequestOptions{CreatedAfter: svc.config.StartDate}).
		Return([]gitlab.MergeRequest{}, nil)

	err := svc.runInitialSync()

	// The failed platform is reported, the others still ran.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jira sync failed")
	assert.NotContains(t, err.Error(), "confluence sync failed")
	assert.NotContains(t, err.Error(), "gitlab sync failed")
	confluenceClient.AssertExpectations(t)
	gitlabClient.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestRunInitialSyncAllPlatformsSucceed(t *testing.T) {
	store := new(MockStore)
	gitlabClient := new(MockGitLabClient)

	svc := newTestService(store, nil, nil, gitlabClient)
	defer svc.cancel()

	gitlabClient.On("FetchMergeRequests", svc.ctx, int64(42),
		&gitlab.MergeRequestOptions{CreatedAfter: svc.config.StartDate}).
		Return([]gitlab.MergeRequest{}, nil)

	err := svc.runInitialSync()

	assert.NoError(t, err)
	gitlabClient.AssertExpectations(t)
}

func TestRunInitialSyncCancelledContext(t *testing.T) {
	store := new(MockStore)
	jiraClient := new(MockJiraClient)

	svc := newTestService(store, jiraClient, nil, nil)
	svc.cancel()

	err := svc.runInitialSync()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service context cancelled")
	jiraClient.AssertNotCalled(t, "SearchIssues", mock.Anything, mock.Anything, mock.Anything)
}
