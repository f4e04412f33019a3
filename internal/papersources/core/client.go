package core

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for the CORE API.
	DefaultBaseURL = "https://api.core.ac.uk"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default limit per request.
	DefaultPageSize = 50

	// MaxPageSize is the CORE maximum for limit.
	MaxPageSize = 100

	sourceName = "CORE"
)

// Config holds the configuration for the CORE client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is required; the adapter reports itself disabled without one.
	APIKey string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// PageSize defaults to DefaultPageSize and is capped at MaxPageSize.
	PageSize int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
}

// Client implements papersources.Adapter for CORE.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new CORE client. The API key is sent as a Bearer token.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:       domain.SourceCore,
			Timeout:      cfg.Timeout,
			APIKey:       cfg.APIKey,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
		}),
	}
}

// NewWithHTTPClient creates a new CORE client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// SourceID returns domain.SourceCore.
func (c *Client) SourceID() domain.SourceID { return domain.SourceCore }

// Name returns the human-readable name for this source.
func (c *Client) Name() string { return sourceName }

// IsEnabled reports whether the source is enabled and has an API key.
func (c *Client) IsEnabled() bool { return c.config.Enabled && c.config.APIKey != "" }

// FetchPage retrieves one page of works. The page token is the offset.
func (c *Client) FetchPage(ctx context.Context, req papersources.PageRequest) (*papersources.Page, error) {
	offset := 0
	if req.Token != "" {
		n, err := strconv.Atoi(req.Token)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid core page token %q", domain.ErrInvalidInput, req.Token)
		}
		offset = n
	}
	size := req.PageSize
	if size <= 0 || size > c.config.PageSize {
		size = c.config.PageSize
	}

	q := url.Values{}
	q.Set("q", BuildQuery(req))
	q.Set("limit", strconv.Itoa(size))
	q.Set("offset", strconv.Itoa(offset))

	var resp SearchResponse
	if err := c.httpClient.GetJSON(ctx, c.config.BaseURL+"/v3/search/works?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("search works: %w", err)
	}

	page := &papersources.Page{Total: resp.TotalHits}
	if len(resp.Results) == 0 {
		return page, nil
	}

	fetchedAt := time.Now().UTC()
	page.Records = make([]domain.RawRecord, 0, len(resp.Results))
	for _, w := range resp.Results {
		page.Records = append(page.Records, domain.RawRecord{
			SourceID:  domain.SourceCore,
			Disease:   req.Disease,
			FetchedAt: fetchedAt,
			Payload:   w,
		})
	}
	if next := offset + len(resp.Results); next < resp.TotalHits {
		page.NextToken = strconv.Itoa(next)
	}
	return page, nil
}

// BuildQuery returns the CORE query with a yearPublished range appended
// when the request has a date range.
func BuildQuery(req papersources.PageRequest) string {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = req.Disease.SearchQuery()
	}
	if req.DateRange == nil {
		return query
	}
	return fmt.Sprintf("(%s) AND yearPublished>=%d AND yearPublished<=%d",
		query, req.DateRange.From.Year(), req.DateRange.To.Year())
}
