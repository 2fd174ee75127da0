// Package mailpit is a client for the Mailpit mail-capture server's HTTP API.
// Test suites use it to list, search, inspect, delete and release the
// messages Mailpit has captured.
package mailpit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shineum/mailpit-go/relay"
)

const (
	// DefaultPageSize is the number of messages fetched per list request.
	DefaultPageSize = 50

	defaultTimeout = 30 * time.Second
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one Mailpit instance. It holds no per-call state and is
// safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  Doer
	logger      *slog.Logger
	pageSize    int
	concurrency int
	relay       relay.Provider
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport used for every request.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithPageSize sets the default page size used by iterators. Values below 1
// are ignored.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithConcurrency sets how many attachment parts of one message are fetched
// in parallel. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRelay sets the provider used by Forward.
func WithRelay(p relay.Provider) Option {
	return func(c *Client) { c.relay = p }
}

// New creates a Client for the Mailpit instance at baseURL, e.g.
// "http://localhost:8025". Trailing slashes are ignored.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      slog.Default(),
		pageSize:    DefaultPageSize,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do performs a single request against path and returns the status code and
// the full response body. Transport errors are returned wrapped.
func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body of %s %s: %w", method, url, err)
	}

	c.logger.Debug("mailpit request",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(data),
	)

	return resp.StatusCode, data, nil
}

// doOK is like do but turns any non-2xx status into an *APIError.
func (c *Client) doOK(ctx context.Context, method, path string, payload any) ([]byte, error) {
	status, data, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, newAPIError(method, c.baseURL+path, status, data)
	}
	return data, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
