package openalex

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
	// DefaultBaseURL is the base URL for the OpenAlex API.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default per_page value.
	DefaultPageSize = 100

	// MaxPageSize is the API maximum for per_page.
	MaxPageSize = 200

	// firstCursor starts a cursor scan.
	firstCursor = "*"

	sourceName = "OpenAlex"
)

// Config holds the configuration for the OpenAlex client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Email is sent as mailto for the polite pool. Optional.
	Email string

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

// Client implements papersources.Adapter for OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	userAgent := papersources.DefaultUserAgent
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:    domain.SourceOpenAlex,
			Timeout:   cfg.Timeout,
			UserAgent: userAgent,
		}),
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// SourceID returns domain.SourceOpenAlex.
func (c *Client) SourceID() domain.SourceID { return domain.SourceOpenAlex }

// Name returns the human-readable name for this source.
func (c *Client) Name() string { return sourceName }

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool { return c.config.Enabled }

// FetchPage retrieves one page of works. The page token is the OpenAlex
// cursor; a null next_cursor ends the scan.
func (c *Client) FetchPage(ctx context.Context, req papersources.PageRequest) (*papersources.Page, error) {
	cursor := req.Token
	if cursor == "" {
		cursor = firstCursor
	}
	size := req.PageSize
	if size <= 0 || size > c.config.PageSize {
		size = c.config.PageSize
	}

	var resp SearchResponse
	if err := c.httpClient.GetJSON(ctx, c.buildSearchURL(req, cursor, size), &resp); err != nil {
		return nil, fmt.Errorf("works: %w", err)
	}

	page := &papersources.Page{Total: resp.Meta.Count}
	if len(resp.Results) > 0 {
		fetchedAt := time.Now().UTC()
		page.Records = make([]domain.RawRecord, 0, len(resp.Results))
		for _, w := range resp.Results {
			page.Records = append(page.Records, domain.RawRecord{
				SourceID:  domain.SourceOpenAlex,
				Disease:   req.Disease,
				FetchedAt: fetchedAt,
				Payload:   w,
			})
		}
		page.NextToken = resp.Meta.NextCursor
	}
	return page, nil
}

func (c *Client) buildSearchURL(req papersources.PageRequest, cursor string, size int) string {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = req.Disease.SearchQuery()
	}

	q := url.Values{}
	q.Set("search", query)
	q.Set("per-page", strconv.Itoa(size))
	q.Set("cursor", cursor)
	if req.DateRange != nil {
		q.Set("filter", fmt.Sprintf("from_publication_date:%s,to_publication_date:%s",
			req.DateRange.From.Format("2006-01-02"), req.DateRange.To.Format("2006-01-02")))
	}
	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}
	return c.config.BaseURL + "/works?" + q.Encode()
}
