// Package httpclient provides the base HTTP client shared by the platform
// clients. It owns URL resolution, authentication headers, JSON encoding and
// retries; platform packages only format paths and decode typed responses.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"platformfetch/logger"
)

const (
	retryMax     = 4 // 5 attempts total
	retryWaitMin = 500 * time.Millisecond
	retryWaitMax = 30 * time.Second

	requestTimeout = 30 * time.Second
)

// StatusError is returned when the server answers with a non-2xx status after
// the transport has exhausted its retries.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client represents the base HTTP client
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	headers    http.Header
	username   string
	password   string
	basicAuth  bool
}

// Option configures a Client
type Option func(*Client)

// WithBasicAuth sets basic auth credentials applied to every request
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
		c.basicAuth = true
	}
}

// WithHeader sets a default header applied to every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithHTTPClient replaces the underlying HTTP client. Used by tests to avoid
// retry backoff delays.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new base client rooted at baseURL. The URL must carry a scheme
// and a host; its path is treated as a prefix for all request paths.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("http URL is invalid")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("http URL is malformed: %s", baseURL)
	}
	// A trailing slash keeps the prefix when relative paths are resolved.
	if parsed.Path == "" || parsed.Path[len(parsed.Path)-1] != '/' {
		parsed.Path += "/"
	}

	client := &Client{
		baseURL:    parsed,
		httpClient: newRetryingClient(retryWaitMin, retryWaitMax),
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(client)
	}

	logger.Debug("HTTP client created", zap.String("base_url", parsed.String()))
	return client, nil
}

// newRetryingClient builds the default transport: jittered exponential backoff,
// five attempts, retries on 429 and 5xx. The passthrough error handler hands
// the final response back to the caller when retries are exhausted, so the
// status check still sees it.
func newRetryingClient(waitMin, waitMax time.Duration) *http.Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = retryMax
	retry.RetryWaitMin = waitMin
	retry.RetryWaitMax = waitMax
	retry.Logger = nil
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retry.HTTPClient.Timeout = requestTimeout
	return retry.StandardClient()
}

// BaseURL returns the resolved base URL of the client
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get sends a GET request and decodes the JSON response into out. The response
// headers are returned so callers can read pagination totals.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, "", nil, out)
}

// Post sends a POST request with a JSON body and decodes the response into out
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	reader, err := encodeBody(body)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, path, query, nil, "application/json", reader, out)
	return err
}

// Put sends a PUT request with a JSON body and decodes the response into out
func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	reader, err := encodeBody(body)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, path, query, nil, "application/json", reader, out)
	return err
}

// Delete sends a DELETE request and discards the response body
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, "", nil, nil)
	return err
}

// Do sends a request with a prebuilt body and extra headers. Used for
// multipart uploads where the caller controls the content type.
func (c *Client) Do(ctx context.Context, method, path string, header http.Header, contentType string, body io.Reader, out any) error {
	_, err := c.do(ctx, method, path, nil, header, contentType, body, out)
	return err
}

func encodeBody(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(encoded), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, contentType string, body io.Reader, out any) (http.Header, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	reqURL := c.baseURL.ResolveReference(ref)

	if len(query) > 0 {
		merged := reqURL.Query()
		for key, values := range query {
			for _, value := range values {
				merged.Add(key, value)
			}
		}
		reqURL.RawQuery = merged.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.basicAuth {
		req.SetBasicAuth(c.username, c.password)
	}

	logger.Debug("Sending request",
		zap.String("method", method),
		zap.String("url", reqURL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, reqURL.String(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logger.Error("Request failed",
			zap.String("method", method),
			zap.String("url", reqURL.String()),
			zap.Int("status_code", resp.StatusCode))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        reqURL.String(),
			Body:       string(respBody),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("failed to decode response body: %w", err)
		}
	}

	return resp.Header, nil
}
