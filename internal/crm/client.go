package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the CRM client.
type Config struct {
	// BaseURL is the root of the CRM API, e.g. https://api.hubapi.com.
	BaseURL string

	// Token is the bearer credential attached to every request.
	Token string

	// PageSize is the number of records requested per page.
	PageSize int

	// PageDelay is the fixed wait between successive page requests.
	// The delay is skipped before the first request and after the last.
	PageDelay time.Duration

	// Timeout bounds each individual HTTP call. Expiry surfaces as an
	// ordinary UpstreamError for that call.
	Timeout time.Duration

	// Logger for client activity. nil falls back to a stderr logger.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults. BaseURL and Token must still
// be supplied by the caller.
func DefaultConfig() *Config {
	return &Config{
		PageSize:  100,
		PageDelay: 200 * time.Millisecond,
		Timeout:   30 * time.Second,
		Logger:    log.New(os.Stderr, "[crm] ", log.LstdFlags),
	}
}

// Client fetches paged object collections from the CRM API.
//
// A fetch is forward-only and not restartable mid-traversal; calling
// ForEachPage again starts over from the first page.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	pageDelay  time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a CRM client from config.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("crm base URL cannot be empty")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("crm token cannot be empty")
	}

	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultConfig().PageSize
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	logger := config.Logger
	if logger == nil {
		logger = DefaultConfig().Logger
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		pageSize:   pageSize,
		pageDelay:  config.PageDelay,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// ForEachPage walks every page of the given collection kind, invoking fn
// with each page of records in fetch order.
//
// The traversal stops when a response carries no continuation cursor.
// Between successive page requests the client sleeps for the configured
// page delay; there is no delay before the first request or after the last.
//
// A transport failure or non-success response aborts the entire fetch and
// returns an *UpstreamError. An error returned by fn also aborts the fetch
// and is returned unchanged.
func (c *Client) ForEachPage(ctx context.Context, kind string, properties []string, fn func(records []Record) error) error {
	cursor := ""
	page := 0

	for {
		if page > 0 {
			select {
			case <-time.After(c.pageDelay):
			case <-ctx.Done():
				return &UpstreamError{Kind: kind, Err: ctx.Err()}
			}
		}

		resp, err := c.fetchPage(ctx, kind, properties, cursor)
		if err != nil {
			return err
		}
		page++

		c.logger.Printf("Fetched %s page %d (%d records)", kind, page, len(resp.Results))

		if err := fn(resp.Results); err != nil {
			return err
		}

		cursor = resp.nextCursor()
		if cursor == "" {
			return nil
		}
	}
}

// FetchAll walks every page of the given kind and returns all records.
func (c *Client) FetchAll(ctx context.Context, kind string, properties []string) ([]Record, error) {
	var all []Record
	err := c.ForEachPage(ctx, kind, properties, func(records []Record) error {
		all = append(all, records...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// HealthCheck issues one minimal request and reports whether the CRM is
// reachable. Ordinary HTTP failures are reported as false, never as an
// error.
func (c *Client) HealthCheck(ctx context.Context) bool {
	u := fmt.Sprintf("%s/crm/v3/objects/%s?limit=1", c.baseURL, KindContacts)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("Health check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("Health check failed: status %d", resp.StatusCode)
		return false
	}
	return true
}

// fetchPage requests a single page of the collection. An empty cursor
// requests the first page.
func (c *Client) fetchPage(ctx context.Context, kind string, properties []string, cursor string) (*listResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	if cursor != "" {
		q.Set("after", cursor)
	}

	u := fmt.Sprintf("%s/crm/v3/objects/%s?%s", c.baseURL, kind, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &UpstreamError{Kind: kind, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{Kind: kind, StatusCode: resp.StatusCode}
	}

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &UpstreamError{Kind: kind, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &list, nil
}
