// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// JiraConfig holds connection settings for a Jira server
type JiraConfig struct {
	URL      string
	Username string
	Password string
	JQL      string
}

// ConfluenceConfig holds connection settings for a Confluence server
type ConfluenceConfig struct {
	URL      string
	Username string
	Password string
	SpaceKey string
}

// GitLabConfig holds connection settings for a GitLab server
type GitLabConfig struct {
	URL       string
	Token     string
	ProjectID int64
}

// Config holds all configuration for the application
type Config struct {
	Jira         JiraConfig
	Confluence   ConfluenceConfig
	GitLab       GitLabConfig
	PollInterval int
	StartDate    time.Time
	LogLevel     string
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

// Load loads configuration from environment variables.
// A platform is enabled when its URL is set; an enabled platform must carry
// complete credentials.
func (c *Config) Load() error {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Read .env file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	c.Jira = JiraConfig{
		URL:      viper.GetString("JIRA_URL"),
		Username: viper.GetString("JIRA_USERNAME"),
		Password: viper.GetString("JIRA_PASSWORD"),
		JQL:      viper.GetString("JIRA_JQL"),
	}
	if c.Jira.URL != "" {
		if c.Jira.Username == "" || c.Jira.Password == "" {
			return fmt.Errorf("JIRA_USERNAME and JIRA_PASSWORD are required when JIRA_URL is set")
		}
		if c.Jira.JQL == "" {
			return fmt.Errorf("JIRA_JQL is required when JIRA_URL is set")
		}
	}

	c.Confluence = ConfluenceConfig{
		URL:      viper.GetString("CONFLUENCE_URL"),
		Username: viper.GetString("CONFLUENCE_USERNAME"),
		Password: viper.GetString("CONFLUENCE_PASSWORD"),
		SpaceKey: viper.GetString("CONFLUENCE_SPACE_KEY"),
	}
	if c.Confluence.URL != "" {
		if c.Confluence.Username == "" || c.Confluence.Password == "" {
			return fmt.Errorf("CONFLUENCE_USERNAME and CONFLUENCE_PASSWORD are required when CONFLUENCE_URL is set")
		}
		if c.Confluence.SpaceKey == "" {
			return fmt.Errorf("CONFLUENCE_SPACE_KEY is required when CONFLUENCE_URL is set")
		}
	}

	c.GitLab = GitLabConfig{
		URL:       viper.GetString("GITLAB_URL"),
		Token:     viper.GetString("GITLAB_TOKEN"),
		ProjectID: viper.GetInt64("GITLAB_PROJECT_ID"),
	}
	if c.GitLab.URL != "" {
		if c.GitLab.Token == "" {
			return fmt.Errorf("GITLAB_TOKEN is required when GITLAB_URL is set")
		}
		if c.GitLab.ProjectID == 0 {
			return fmt.Errorf("GITLAB_PROJECT_ID is required when GITLAB_URL is set")
		}
	}

	if c.Jira.URL == "" && c.Confluence.URL == "" && c.GitLab.URL == "" {
		return fmt.Errorf("at least one of JIRA_URL, CONFLUENCE_URL or GITLAB_URL is required")
	}

	// Optional fields with defaults
	c.PollInterval = viper.GetInt("POLL_INTERVAL")
	if c.PollInterval == 0 {
		c.PollInterval = 3600 // Default to 1 hour
	}

	startDateStr := viper.GetString("START_DATE")
	if startDateStr == "" {
		c.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	} else {
		var err error
		c.StartDate, err = time.Parse(time.RFC3339, startDateStr)
		if err != nil {
			return fmt.Errorf("invalid START_DATE format: %w", err)
		}
	}

	c.LogLevel = viper.GetString("LOG_LEVEL")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}
