// Package confluence provides a client for the Atlassian Confluence REST API.
// It covers spaces, pages, folders, users, CQL search and attachment uploads,
// using the v2 API where available and the v1 API for the remaining endpoints.
package confluence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"platformfetch/httpclient"
	"platformfetch/logger"
)

const (
	// prefixV1 is the path prefix of the Confluence v1 API
	prefixV1 = "wiki/rest/api"

	// prefixV2 is the path prefix of the Confluence v2 API
	prefixV2 = "wiki/api/v2"

	// childPageLimit is the page size used for child and space page listings
	childPageLimit = 250
)

// Sentinel errors for lookups that come back empty
var (
	ErrSpaceNotFound = errors.New("space not found")
	ErrPageNotFound  = errors.New("page not found")
)

// Client represents a Confluence API client
type Client struct {
	http *httpclient.Client
}

// New constructs a Confluence client authenticated with basic auth.
func New(confluenceURL, username, password string) (*Client, error) {
	if confluenceURL == "" {
		return nil, fmt.Errorf("confluence URL is invalid")
	}
	if username == "" {
		return nil, fmt.Errorf("confluence username is invalid")
	}
	if password == "" {
		return nil, fmt.Errorf("confluence password is invalid")
	}

	hc, err := httpclient.New(strings.TrimRight(confluenceURL, "/")+"/",
		httpclient.WithBasicAuth(username, password),
		httpclient.WithHeader("Content-Type", "application/json"),
		httpclient.WithHeader("Accept", "application/json"),
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("Confluence client created", zap.String("url", confluenceURL))
	return &Client{http: hc}, nil
}

// FetchSpace retrieves a space by identifier
func (c *Client) FetchSpace(ctx context.Context, spaceID string) (*Space, error) {
	var space Space
	if _, err := c.http.Get(ctx, prefixV2+"/spaces/"+spaceID, nil, &space); err != nil {
		return nil, fmt.Errorf("failed to fetch space %s: %w", spaceID, err)
	}
	return &space, nil
}

// FetchSpaceByKey retrieves a space by key. Returns ErrSpaceNotFound when the
// key does not match any space.
func (c *Client) FetchSpaceByKey(ctx context.Context, spaceKey string) (*Space, error) {
	query := url.Values{}
	query.Set("keys", spaceKey)

	var response paged[Space]
	if _, err := c.http.Get(ctx, prefixV2+"/spaces", query, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch space %s: %w", spaceKey, err)
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSpaceNotFound, spaceKey)
	}
	return &response.Results[0], nil
}

// SpaceIDByKey resolves a space key to its identifier
func (c *Client) SpaceIDByKey(ctx context.Context, spaceKey string) (string, error) {
	space, err := c.FetchSpaceByKey(ctx, spaceKey)
	if err != nil {
		return "", err
	}
	return space.ID, nil
}

// FetchPage retrieves a page by identifier with its storage body
func (c *Client) FetchPage(ctx context.Context, pageID string) (*Page, error) {
	query := url.Values{}
	query.Set("body-format", "storage")

	var page Page
	if _, err := c.http.Get(ctx, prefixV2+"/pages/"+pageID, query, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", pageID, err)
	}
	return &page, nil
}

// FetchPageByTitle retrieves a page by title within a space. Returns
// ErrPageNotFound when no page carries the title.
func (c *Client) FetchPageByTitle(ctx context.Context, spaceID, title string) (*Page, error) {
	query := url.Values{}
	query.Set("space-id", spaceID)
	query.Set("title", title)
	query.Set("body-format", "storage")

	var response paged[Page]
	if _, err := c.http.Get(ctx, prefixV2+"/pages", query, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch page %q: %w", title, err)
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, title)
	}
	return &response.Results[0], nil
}

// PageIDByTitle resolves a page title to its identifier within a space
func (c *Client) PageIDByTitle(ctx context.Context, spaceID, title string) (string, error) {
	page, err := c.FetchPageByTitle(ctx, spaceID, title)
	if err != nil {
		return "", err
	}
	return page.ID, nil
}

// PageVersion returns the current version number of a page
func (c *Client) PageVersion(ctx context.Context, pageID string) (int, error) {
	page, err := c.FetchPage(ctx, pageID)
	if err != nil {
		return 0, err
	}
	return page.Version.Number, nil
}

// FetchPageChildren retrieves the direct child pages of a page
func (c *Client) FetchPageChildren(ctx context.Context, pageID string) ([]Page, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(childPageLimit))

	var response paged[Page]
	if _, err := c.http.Get(ctx, prefixV2+"/pages/"+pageID+"/children", query, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch children of page %s: %w", pageID, err)
	}
	return response.Results, nil
}

// FetchAllPages retrieves every current page of a space, following the cursor
// links until the last page. The cursor URL already carries the query, so the
// initial parameters are only sent once.
func (c *Client) FetchAllPages(ctx context.Context, spaceID string) ([]Page, error) {
	query := url.Values{}
	query.Set("status", "current")
	query.Set("body-format", "storage")
	query.Set("limit", strconv.Itoa(childPageLimit))

	path := fmt.Sprintf("%s/spaces/%s/pages", prefixV2, spaceID)
	var pages []Page

	for path != "" {
		var response paged[Page]
		if _, err := c.http.Get(ctx, path, query, &response); err != nil {
			return nil, fmt.Errorf("failed to fetch pages of space %s: %w", spaceID, err)
		}
		query = nil

		pages = append(pages, response.Results...)
		path = response.Links.Next
	}

	logger.Info("Pages fetched",
		zap.String("space_id", spaceID),
		zap.Int("count", len(pages)))
	return pages, nil
}

// CreateOrUpdatePage creates a page under the given parent, or bumps the
// version of an existing page with the same title. Representation must be
// "wiki" or "storage".
func (c *Client) CreateOrUpdatePage(ctx context.Context, spaceID, parentPageID, title, message, representation string) error {
	if representation != "storage" && representation != "wiki" {
		return fmt.Errorf("representation must be 'storage' or 'wiki'")
	}

	body := map[string]any{
		"spaceId":  spaceID,
		"status":   "current",
		"title":    title,
		"parentId": parentPageID,
		"body": map[string]any{
			"representation": representation,
			"value":          message,
		},
	}

	pageID, err := c.PageIDByTitle(ctx, spaceID, title)
	switch {
	case err == nil:
		version, err := c.PageVersion(ctx, pageID)
		if err != nil {
			return err
		}
		body["id"] = pageID
		body["version"] = map[string]any{"number": version + 1, "message": ""}
		if err := c.http.Put(ctx, prefixV2+"/pages/"+pageID, nil, body, nil); err != nil {
			return fmt.Errorf("failed to update page %q: %w", title, err)
		}
		logger.Debug("Page updated", zap.String("title", title))
		return nil

	case errors.Is(err, ErrPageNotFound):
		if err := c.http.Post(ctx, prefixV2+"/pages", nil, body, nil); err != nil {
			return fmt.Errorf("failed to create page %q: %w", title, err)
		}
		logger.Debug("Page created", zap.String("title", title))
		return nil

	default:
		return err
	}
}

// UploadAttachments uploads the given files and attaches them to a page
func (c *Client) UploadAttachments(ctx context.Context, pageID string, filenames []string) error {
	for _, filename := range filenames {
		if err := c.uploadAttachment(ctx, pageID, filename); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) uploadAttachment(ctx context.Context, pageID, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open attachment %s: %w", filename, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return fmt.Errorf("failed to build attachment form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read attachment %s: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to finalize attachment form: %w", err)
	}

	header := http.Header{}
	header.Set("X-Atlassian-Token", "no-check")

	path := fmt.Sprintf("%s/content/%s/child/attachment", prefixV1, pageID)
	if err := c.http.Do(ctx, http.MethodPut, path, header, form.FormDataContentType(), &buf, nil); err != nil {
		return fmt.Errorf("failed to upload attachment %s: %w", filename, err)
	}

	logger.Debug("Attachment uploaded",
		zap.String("page_id", pageID),
		zap.String("file", filename))
	return nil
}

// RenamePage sets a new title on a page, bumping its version
func (c *Client) RenamePage(ctx context.Context, pageID, newTitle string) error {
	version, err := c.PageVersion(ctx, pageID)
	if err != nil {
		return err
	}

	body := map[string]any{
		"id":      pageID,
		"status":  "current",
		"title":   newTitle,
		"version": map[string]any{"number": version + 1, "message": ""},
	}
	if err := c.http.Put(ctx, prefixV2+"/pages/"+pageID, nil, body, nil); err != nil {
		return fmt.Errorf("failed to rename page %s: %w", pageID, err)
	}
	return nil
}

// MovePage moves a page under a new parent page
func (c *Client) MovePage(ctx context.Context, pageID, newParentPageID string) error {
	path := fmt.Sprintf("%s/content/%s/move/append/%s", prefixV1, pageID, newParentPageID)
	if err := c.http.Put(ctx, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to move page %s: %w", pageID, err)
	}
	return nil
}

// DeletePage deletes a page
func (c *Client) DeletePage(ctx context.Context, pageID string) error {
	if err := c.http.Delete(ctx, prefixV2+"/pages/"+pageID); err != nil {
		return fmt.Errorf("failed to delete page %s: %w", pageID, err)
	}
	return nil
}

// FetchFolder retrieves a folder by identifier
func (c *Client) FetchFolder(ctx context.Context, folderID string) (*Folder, error) {
	var folder Folder
	if _, err := c.http.Get(ctx, prefixV2+"/folders/"+folderID, nil, &folder); err != nil {
		return nil, fmt.Errorf("failed to fetch folder %s: %w", folderID, err)
	}
	return &folder, nil
}

// CreateFolder creates a folder under the given parent page and returns its
// identifier.
func (c *Client) CreateFolder(ctx context.Context, spaceID, parentPageID, title string) (string, error) {
	body := map[string]any{
		"spaceId":  spaceID,
		"title":    title,
		"parentId": parentPageID,
	}

	var folder Folder
	if err := c.http.Post(ctx, prefixV2+"/folders", nil, body, &folder); err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", title, err)
	}
	return folder.ID, nil
}

// DeleteFolder deletes a folder
func (c *Client) DeleteFolder(ctx context.Context, folderID string) error {
	if err := c.http.Delete(ctx, prefixV2+"/folders/"+folderID); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", folderID, err)
	}
	return nil
}

// FetchUser retrieves a user by account identifier
func (c *Client) FetchUser(ctx context.Context, accountID string) (*User, error) {
	query := url.Values{}
	query.Set("accountId", accountID)

	var user User
	if _, err := c.http.Get(ctx, prefixV1+"/user", query, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", accountID, err)
	}
	return &user, nil
}

// SearchPages runs a CQL search and returns up to limit hits
func (c *Client) SearchPages(ctx context.Context, cql string, limit int) ([]SearchResult, error) {
	query := url.Values{}
	query.Set("cql", cql)
	query.Set("limit", strconv.Itoa(limit))

	var response paged[SearchResult]
	if _, err := c.http.Get(ctx, prefixV1+"/search", query, &response); err != nil {
		return nil, fmt.Errorf("failed to search pages: %w", err)
	}
	return response.Results, nil
}
