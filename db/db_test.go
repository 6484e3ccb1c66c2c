package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platformfetch/models"
)

// setupTestDB creates a new test database connection with a mock
func setupTestDB(t *testing.T) (*DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	database := &DB{conn: sqlxDB}
	database.stmtCache.statements = make(map[string]*sqlx.Stmt)

	cleanup := func() {
		database.Close()
		db.Close()
	}

	return database, mock, cleanup
}

func TestGetLatestMergeRequestDate(t *testing.T) {
	tests := []struct {
		name        string
		projectID   int64
		mockSetup   func(sqlmock.Sqlmock)
		expected    time.Time
		expectedErr error
	}{
		{
			name:      "successful retrieval",
			projectID: 42,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"max_date"}).
					AddRow(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
				mock.ExpectPrepare("SELECT MAX\\(created_at\\)").
					ExpectQuery().
					WithArgs(int64(42)).
					WillReturnRows(rows)
			},
			expected: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "no merge requests",
			projectID: 43,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"max_date"}).
					AddRow(nil)
				mock.ExpectPrepare("SELECT MAX\\(created_at\\)").
					ExpectQuery().
					WithArgs(int64(43)).
					WillReturnRows(rows)
			},
			expectedErr: ErrNoMergeRequestsFound,
		},
		{
			name:        "zero project id",
			projectID:   0,
			mockSetup:   func(mock sqlmock.Sqlmock) {},
			expectedErr: ErrInvalidInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tc.mockSetup(mock)

			latest, err := database.GetLatestMergeRequestDate(context.Background(), tc.projectID)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.True(t, tc.expected.Equal(latest))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStoreMergeRequests(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mrs := []models.MergeRequest{
		{
			IID:          7,
			ProjectID:    42,
			Title:        "Add retry",
			State:        "merged",
			Author:       "dev",
			SourceBranch: "feature/retry",
			TargetBranch: "main",
			CreatedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			URL:          "https://gitlab.example.com/team/platform/-/merge_requests/7",
		},
	}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO merge_requests")
	prepared.ExpectExec().
		WithArgs(
			mrs[0].IID, mrs[0].ProjectID, mrs[0].Title, mrs[0].State, mrs[0].Author,
			mrs[0].SourceBranch, mrs[0].TargetBranch, mrs[0].CreatedAt, mrs[0].MergedAt, mrs[0].URL,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := database.StoreMergeRequests(context.Background(), mrs)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMergeRequestsInvalidInput(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO merge_requests")
	mock.ExpectRollback()

	err := database.StoreMergeRequests(context.Background(), []models.MergeRequest{{}})

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBatchInsertCommits(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	commits := []models.Commit{
		{
			SHA:             "abc123",
			ProjectID:       42,
			MergeRequestIID: 7,
			Message:         "Fix flaky test",
			AuthorName:      "Dev",
			AuthorEmail:     "dev@example.com",
			Date:            time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
			URL:             "https://gitlab.example.com/commit/abc123",
		},
		{
			SHA:             "def456",
			ProjectID:       42,
			MergeRequestIID: 7,
			Message:         "Add retry",
			AuthorName:      "Dev",
			AuthorEmail:     "dev@example.com",
			Date:            time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
			URL:             "https://gitlab.example.com/commit/def456",
		},
	}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO commits")
	for _, commit := range commits {
		prepared.ExpectExec().
			WithArgs(
				commit.SHA, commit.ProjectID, commit.MergeRequestIID, commit.Message,
				commit.AuthorName, commit.AuthorEmail, commit.Date, commit.URL,
			).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	err := database.BatchInsertCommits(context.Background(), commits)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInsertCommitsEmpty(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	err := database.BatchInsertCommits(context.Background(), nil)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIssues(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	issues := []models.Issue{
		{
			Key:        "TEST-1",
			ProjectKey: "TEST",
			Summary:    "Fix the widget",
			Status:     "In Progress",
			Priority:   "High",
			IssueType:  "Bug",
			Assignee:   "Dev",
			Created:    time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			Updated:    time.Date(2024, 1, 16, 10, 30, 0, 0, time.UTC),
		},
	}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO issues")
	prepared.ExpectExec().
		WithArgs(
			issues[0].Key, issues[0].ProjectKey, issues[0].Summary, issues[0].Status,
			issues[0].Priority, issues[0].IssueType, issues[0].Assignee,
			issues[0].Created, issues[0].Updated,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := database.StoreIssues(context.Background(), issues)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreChangelogEntries(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	entries := []models.ChangelogEntry{
		{
			IssueKey:  "TEST-1",
			ChangeID:  "100",
			Author:    "Dev",
			Field:     "status",
			FromValue: "To Do",
			ToValue:   "In Progress",
			Created:   time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		},
	}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO changelog_entries")
	prepared.ExpectExec().
		WithArgs(
			entries[0].IssueKey, entries[0].ChangeID, entries[0].Author,
			entries[0].Field, entries[0].FromValue, entries[0].ToValue, entries[0].Created,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := database.StoreChangelogEntries(context.Background(), entries)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePages(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	pages := []models.Page{
		{
			PageID:   "123",
			SpaceID:  "777",
			SpaceKey: "DOCS",
			ParentID: "1",
			Title:    "Runbook",
			Version:  4,
		},
	}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO pages")
	prepared.ExpectExec().
		WithArgs(
			pages[0].PageID, pages[0].SpaceID, pages[0].SpaceKey,
			pages[0].ParentID, pages[0].Title, pages[0].Version,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := database.StorePages(context.Background(), pages)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjectIDs(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"project_id"}).
		AddRow(int64(42)).
		AddRow(int64(43))
	mock.ExpectQuery("SELECT DISTINCT project_id FROM merge_requests").
		WillReturnRows(rows)

	ids, err := database.ListProjectIDs(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []int64{42, 43}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
