// Package jira provides a client for the Jira REST API (v3). It supports JQL
// issue search, changelog retrieval, project versions and field metadata,
// fetching paginated results in parallel.
package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"platformfetch/httpclient"
	"platformfetch/logger"
)

const (
	// apiVersion is the Jira REST API version used by the client
	apiVersion = 3

	// pageSize is the maximum page size accepted by Jira
	pageSize = 100
)

// Client represents a Jira API client
type Client struct {
	http *httpclient.Client
}

// New constructs a Jira client authenticated with basic auth.
func New(jiraURL, username, password string) (*Client, error) {
	if jiraURL == "" {
		return nil, fmt.Errorf("jira URL is invalid")
	}
	if username == "" {
		return nil, fmt.Errorf("jira username is invalid")
	}
	if password == "" {
		return nil, fmt.Errorf("jira password is invalid")
	}

	base := strings.TrimRight(jiraURL, "/") + fmt.Sprintf("/rest/api/%d/", apiVersion)
	hc, err := httpclient.New(base,
		httpclient.WithBasicAuth(username, password),
		httpclient.WithHeader("Content-Type", "application/json"),
		httpclient.WithHeader("Accept", "application/json"),
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("Jira client created", zap.String("url", jiraURL))
	return &Client{http: hc}, nil
}

// fetchPaginated retrieves every page of an offset-paginated endpoint. The
// first page carries the total; remaining pages are fetched in parallel and
// reassembled in API order.
func fetchPaginated[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var first page[T]
	if _, err := c.http.Get(ctx, path, query, &first); err != nil {
		return nil, err
	}

	results := first.items()
	if first.Total <= pageSize {
		return results, nil
	}

	totalPages := (first.Total + pageSize - 1) / pageSize
	pages := make([][]T, totalPages-1)

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i < totalPages; i++ {
		g.Go(func() error {
			pageQuery := cloneValues(query)
			pageQuery.Set("startAt", strconv.Itoa(i*pageSize))

			var next page[T]
			if _, err := c.http.Get(gctx, path, pageQuery, &next); err != nil {
				return err
			}
			pages[i-1] = next.items()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, items := range pages {
		results = append(results, items...)
	}
	return results, nil
}

func cloneValues(values url.Values) url.Values {
	cloned := make(url.Values, len(values))
	for key, list := range values {
		cloned[key] = append([]string(nil), list...)
	}
	return cloned
}

func fieldsParam(fields []string) string {
	if len(fields) == 0 {
		return "*all"
	}
	return strings.Join(fields, ",")
}

// FetchIssue retrieves a single issue by key. An empty fields list requests
// all fields.
func (c *Client) FetchIssue(ctx context.Context, key string, fields []string) (*Issue, error) {
	query := url.Values{}
	query.Set("fields", fieldsParam(fields))

	var issue Issue
	if _, err := c.http.Get(ctx, "issue/"+key, query, &issue); err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", key, err)
	}
	return &issue, nil
}

// ValidateJQL checks a JQL query against the server's parser and returns an
// error describing the first problem found.
func (c *Client) ValidateJQL(ctx context.Context, jql string) error {
	body := map[string]any{"queries": []string{jql}}

	var result struct {
		Queries []struct {
			Errors []string `json:"errors"`
		} `json:"queries"`
	}
	if err := c.http.Post(ctx, "jql/parse", nil, body, &result); err != nil {
		return fmt.Errorf("failed to validate JQL: %w", err)
	}

	if len(result.Queries) > 0 && len(result.Queries[0].Errors) > 0 {
		return fmt.Errorf("invalid JQL: %s", result.Queries[0].Errors[0])
	}
	return nil
}

// SearchIssues retrieves every issue matching the JQL query. An empty fields
// list requests all fields.
func (c *Client) SearchIssues(ctx context.Context, jql string, fields []string) ([]Issue, error) {
	logger.Info("Searching issues", zap.String("jql", jql))

	query := url.Values{}
	query.Set("jql", jql)
	query.Set("fields", fieldsParam(fields))
	query.Set("startAt", "0")
	query.Set("maxResults", strconv.Itoa(pageSize))
	query.Set("expand", "renderedFields")

	issues, err := fetchPaginated[Issue](ctx, c, "search", query)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	logger.Info("Issue search finished", zap.Int("count", len(issues)))
	return issues, nil
}

// FetchChangelogs retrieves all changelog entries of an issue
func (c *Client) FetchChangelogs(ctx context.Context, key string) ([]Changelog, error) {
	query := url.Values{}
	query.Set("startAt", "0")
	query.Set("maxResults", strconv.Itoa(pageSize))

	changelogs, err := fetchPaginated[Changelog](ctx, c, fmt.Sprintf("issue/%s/changelog", key), query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changelogs for %s: %w", key, err)
	}
	return changelogs, nil
}

// FetchIssueChangelogs retrieves the changelogs of every given issue in
// parallel. Results are aligned with the input order.
func (c *Client) FetchIssueChangelogs(ctx context.Context, issues []Issue) ([]IssueChangelogs, error) {
	results := make([]IssueChangelogs, len(issues))

	g, gctx := errgroup.WithContext(ctx)
	for i, issue := range issues {
		g.Go(func() error {
			changelogs, err := c.FetchChangelogs(gctx, issue.Key)
			if err != nil {
				return err
			}
			results[i] = IssueChangelogs{Key: issue.Key, Changelogs: changelogs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FetchParents retrieves the parent issue of every issue that has one, in
// parallel.
func (c *Client) FetchParents(ctx context.Context, issues []Issue) ([]Issue, error) {
	var keys []string
	for _, issue := range issues {
		if issue.Fields.Parent != nil {
			keys = append(keys, issue.Fields.Parent.Key)
		}
	}

	parents := make([]Issue, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			parent, err := c.FetchIssue(gctx, key, nil)
			if err != nil {
				return err
			}
			parents[i] = *parent
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parents, nil
}

// FetchVersions retrieves all versions of a project ordered by ranking
func (c *Client) FetchVersions(ctx context.Context, projectKey string) ([]Version, error) {
	query := url.Values{}
	query.Set("startAt", "0")
	query.Set("maxResults", strconv.Itoa(pageSize))
	query.Set("orderBy", "-sequence")

	versions, err := fetchPaginated[Version](ctx, c, fmt.Sprintf("project/%s/version", projectKey), query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch versions for %s: %w", projectKey, err)
	}
	return versions, nil
}

// FetchFields retrieves all field definitions, mapping field ids to display
// names.
func (c *Client) FetchFields(ctx context.Context) ([]Field, error) {
	var fields []Field
	if _, err := c.http.Get(ctx, "field", nil, &fields); err != nil {
		return nil, fmt.Errorf("failed to fetch fields: %w", err)
	}
	return fields, nil
}
