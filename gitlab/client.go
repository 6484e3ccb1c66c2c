// Package gitlab provides a client for the GitLab REST API (v4). It supports
// projects, groups, merge requests, commits, pipelines, approvals and notes,
// with client-side rate limiting and parallel page fetches.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"platformfetch/httpclient"
	"platformfetch/logger"
)

const (
	// apiVersion is the GitLab REST API version used by the client
	apiVersion = 4

	// pageSize is the maximum page size accepted by GitLab
	pageSize = 100

	// requestRate limits requests per second to stay within API quotas
	requestRate = 30

	// requestBurst is the total request allowance before throttling kicks in
	requestBurst = 1000
)

// totalPagesHeader carries the page count on paginated list responses
const totalPagesHeader = "x-total-pages"

// Client represents a GitLab API client
type Client struct {
	http    *httpclient.Client
	limiter *rate.Limiter
}

// New constructs a GitLab client authenticated with a private token.
func New(gitlabURL, token string) (*Client, error) {
	if gitlabURL == "" {
		return nil, fmt.Errorf("gitlab URL is invalid")
	}
	if token == "" {
		return nil, fmt.Errorf("gitlab token is invalid")
	}

	base := strings.TrimRight(gitlabURL, "/") + fmt.Sprintf("/api/v%d/", apiVersion)
	hc, err := httpclient.New(base,
		httpclient.WithHeader("PRIVATE-TOKEN", token),
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("GitLab client created", zap.String("url", gitlabURL))
	return &Client{
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(requestRate), requestBurst),
	}, nil
}

// RateLimitStatus returns the current state of the rate limiter
func (c *Client) RateLimitStatus() RateLimitStatus {
	return RateLimitStatus{
		Rate:      requestRate,
		Burst:     requestBurst,
		Available: c.limiter.Tokens(),
	}
}

// get sends a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.http.Get(ctx, path, query, out)
}

// fetchPaginated retrieves every page of a list endpoint. The first response's
// x-total-pages header gives the page count; remaining pages are fetched in
// parallel and reassembled in API order. Without a usable header only the
// first page is returned.
func fetchPaginated[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	query.Set("page", "1")
	query.Set("per_page", strconv.Itoa(pageSize))

	var first []T
	header, err := c.get(ctx, path, query, &first)
	if err != nil {
		return nil, err
	}

	totalPages, convErr := strconv.Atoi(header.Get(totalPagesHeader))
	if convErr != nil || totalPages <= 1 {
		return first, nil
	}

	results := first
	pages := make([][]T, totalPages-1)

	g, gctx := errgroup.WithContext(ctx)
	for i := 2; i <= totalPages; i++ {
		g.Go(func() error {
			pageQuery := cloneValues(query)
			pageQuery.Set("page", strconv.Itoa(i))

			var items []T
			if _, err := c.get(gctx, path, pageQuery, &items); err != nil {
				return err
			}
			pages[i-2] = items
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

// FetchProjects retrieves all projects the token has membership in
func (c *Client) FetchProjects(ctx context.Context) ([]Project, error) {
	query := url.Values{}
	query.Set("simple", "true")
	query.Set("membership", "true")

	projects, err := fetchPaginated[Project](ctx, c, "projects", query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch projects: %w", err)
	}
	return projects, nil
}

// FetchGroups retrieves all groups with at least guest access
func (c *Client) FetchGroups(ctx context.Context) ([]Group, error) {
	query := url.Values{}
	query.Set("min_access_level", "10")

	groups, err := fetchPaginated[Group](ctx, c, "groups", query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch groups: %w", err)
	}
	return groups, nil
}

// FetchMergeRequests retrieves all merge requests of a project, optionally
// filtered by creation date range.
func (c *Client) FetchMergeRequests(ctx context.Context, projectID int64, opts *MergeRequestOptions) ([]MergeRequest, error) {
	logger.Info("Fetching merge requests", zap.Int64("project_id", projectID))

	query := url.Values{}
	if opts != nil {
		if !opts.CreatedAfter.IsZero() {
			query.Set("created_after", opts.CreatedAfter.Format(time.RFC3339))
		}
		if !opts.CreatedBefore.IsZero() {
			query.Set("created_before", opts.CreatedBefore.Format(time.RFC3339))
		}
	}

	mrs, err := fetchPaginated[MergeRequest](ctx, c, fmt.Sprintf("projects/%d/merge_requests", projectID), query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch merge requests for project %d: %w", projectID, err)
	}

	logger.Info("Merge requests fetched",
		zap.Int64("project_id", projectID),
		zap.Int("count", len(mrs)))
	return mrs, nil
}

// FetchCommits retrieves all commits of a merge request
func (c *Client) FetchCommits(ctx context.Context, projectID, mergeRequestIID int64) ([]Commit, error) {
	path := fmt.Sprintf("projects/%d/merge_requests/%d/commits", projectID, mergeRequestIID)
	commits, err := fetchPaginated[Commit](ctx, c, path, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commits for merge request %d: %w", mergeRequestIID, err)
	}
	return commits, nil
}

// FetchChanges retrieves the file diffs of a merge request
func (c *Client) FetchChanges(ctx context.Context, projectID, mergeRequestIID int64) ([]Diff, error) {
	var diffs []Diff
	path := fmt.Sprintf("projects/%d/merge_requests/%d/diffs", projectID, mergeRequestIID)
	if _, err := c.get(ctx, path, nil, &diffs); err != nil {
		return nil, fmt.Errorf("failed to fetch changes for merge request %d: %w", mergeRequestIID, err)
	}
	return diffs, nil
}

// FetchPipeline retrieves the details of a single pipeline
func (c *Client) FetchPipeline(ctx context.Context, projectID, pipelineID int64) (*Pipeline, error) {
	var pipeline Pipeline
	path := fmt.Sprintf("projects/%d/pipelines/%d", projectID, pipelineID)
	if _, err := c.get(ctx, path, nil, &pipeline); err != nil {
		return nil, fmt.Errorf("failed to fetch pipeline %d: %w", pipelineID, err)
	}
	return &pipeline, nil
}

// FetchPipelines retrieves all pipelines of a merge request. With fullInfo the
// details of each pipeline are fetched in parallel.
func (c *Client) FetchPipelines(ctx context.Context, projectID, mergeRequestIID int64, fullInfo bool) ([]Pipeline, error) {
	path := fmt.Sprintf("projects/%d/merge_requests/%d/pipelines", projectID, mergeRequestIID)
	pipelines, err := fetchPaginated[Pipeline](ctx, c, path, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pipelines for merge request %d: %w", mergeRequestIID, err)
	}

	if !fullInfo || len(pipelines) == 0 {
		return pipelines, nil
	}

	full := make([]Pipeline, len(pipelines))
	g, gctx := errgroup.WithContext(ctx)
	for i, pipeline := range pipelines {
		g.Go(func() error {
			details, err := c.FetchPipeline(gctx, projectID, pipeline.ID)
			if err != nil {
				return err
			}
			full[i] = *details
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return full, nil
}

// FetchApprovals retrieves the approval status of a merge request
func (c *Client) FetchApprovals(ctx context.Context, projectID, mergeRequestIID int64) (*Approvals, error) {
	var approvals Approvals
	path := fmt.Sprintf("projects/%d/merge_requests/%d/approvals", projectID, mergeRequestIID)
	if _, err := c.get(ctx, path, nil, &approvals); err != nil {
		return nil, fmt.Errorf("failed to fetch approvals for merge request %d: %w", mergeRequestIID, err)
	}
	return &approvals, nil
}

// FetchNotes retrieves all notes and comments of a merge request
func (c *Client) FetchNotes(ctx context.Context, projectID, mergeRequestIID int64) ([]Note, error) {
	path := fmt.Sprintf("projects/%d/merge_requests/%d/notes", projectID, mergeRequestIID)
	notes, err := fetchPaginated[Note](ctx, c, path, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notes for merge request %d: %w", mergeRequestIID, err)
	}
	return notes, nil
}
