package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	testCases := []struct {
		name          string
		env           map[string]string
		expectedError string
		check         func(*testing.T, *Config)
	}{
		{
			name:          "no platform configured",
			env:           map[string]string{},
			expectedError: "at least one of",
		},
		{
			name: "jira without credentials",
			env: map[string]string{
				"JIRA_URL": "https://jira.example.com",
			},
			expectedError: "JIRA_USERNAME and JIRA_PASSWORD are required",
		},
		{
			name: "jira without jql",
			env: map[string]string{
				"JIRA_URL":      "https://jira.example.com",
				"JIRA_USERNAME": "user",
				"JIRA_PASSWORD": "token",
			},
			expectedError: "JIRA_JQL is required",
		},
		{
			name: "gitlab without project id",
			env: map[string]string{
				"GITLAB_URL":   "https://gitlab.example.com",
				"GITLAB_TOKEN": "token",
			},
			expectedError: "GITLAB_PROJECT_ID is required",
		},
		{
			name: "confluence without space key",
			env: map[string]string{
				"CONFLUENCE_URL":      "https://confluence.example.com",
				"CONFLUENCE_USERNAME": "user",
				"CONFLUENCE_PASSWORD": "token",
			},
			expectedError: "CONFLUENCE_SPACE_KEY is required",
		},
		{
			name: "invalid start date",
			env: map[string]string{
				"GITLAB_URL":        "https://gitlab.example.com",
				"GITLAB_TOKEN":      "token",
				"GITLAB_PROJECT_ID": "42",
				"START_DATE":        "last tuesday",
			},
			expectedError: "invalid START_DATE format",
		},
		{
			name: "all platforms with defaults",
			env: map[string]string{
				"JIRA_URL":             "https://jira.example.com",
				"JIRA_USERNAME":        "user",
				"JIRA_PASSWORD":        "token",
				"JIRA_JQL":             "project = TEST",
				"CONFLUENCE_URL":       "https://confluence.example.com",
				"CONFLUENCE_USERNAME":  "user",
				"CONFLUENCE_PASSWORD":  "token",
				"CONFLUENCE_SPACE_KEY": "DOCS",
				"GITLAB_URL":           "https://gitlab.example.com",
				"GITLAB_TOKEN":         "token",
				"GITLAB_PROJECT_ID":    "42",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "project = TEST", cfg.Jira.JQL)
				assert.Equal(t, "DOCS", cfg.Confluence.SpaceKey)
				assert.Equal(t, int64(42), cfg.GitLab.ProjectID)
				assert.Equal(t, 3600, cfg.PollInterval)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
			},
		},
		{
			name: "overridden defaults",
			env: map[string]string{
				"GITLAB_URL":        "https://gitlab.example.com",
				"GITLAB_TOKEN":      "token",
				"GITLAB_PROJECT_ID": "42",
				"POLL_INTERVAL":     "600",
				"START_DATE":        "2024-06-01T00:00:00Z",
				"LOG_LEVEL":         "debug",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 600, cfg.PollInterval)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			for key, value := range tc.env {
				t.Setenv(key, value)
			}

			cfg := NewConfig()
			err := cfg.Load()

			if tc.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedError)
				return
			}
			require.NoError(t, err)
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}
