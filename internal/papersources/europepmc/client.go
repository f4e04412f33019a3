package europepmc

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
	// DefaultBaseURL is the default Europe PMC API base URL.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default page size.
	DefaultPageSize = 100

	// MaxPageSize is the API maximum for pageSize.
	MaxPageSize = 1000

	// firstCursor requests the first page of a cursorMark scan.
	firstCursor = "*"

	sourceName = "Europe PMC"
)

// Config holds configuration for the Europe PMC client.
type Config struct {
	// BaseURL is the Europe PMC REST base URL.
	BaseURL string

	// Timeout is the request timeout.
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

// Client implements papersources.Adapter for Europe PMC.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new Europe PMC client.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:  domain.SourceEuropePMC,
			Timeout: cfg.Timeout,
		}),
	}
}

// NewWithHTTPClient creates a new client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// SourceID returns domain.SourceEuropePMC.
func (c *Client) SourceID() domain.SourceID { return domain.SourceEuropePMC }

// Name returns the human-readable name for this source.
func (c *Client) Name() string { return sourceName }

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool { return c.config.Enabled }

// FetchPage retrieves one page. The page token is the cursorMark; the scan
// ends when Europe PMC returns the same cursor again or a short page.
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
		return nil, fmt.Errorf("search: %w", err)
	}

	results := resp.ResultList.Result
	page := &papersources.Page{Total: resp.HitCount}
	if len(results) > 0 {
		fetchedAt := time.Now().UTC()
		page.Records = make([]domain.RawRecord, 0, len(results))
		for _, a := range results {
			page.Records = append(page.Records, domain.RawRecord{
				SourceID:  domain.SourceEuropePMC,
				Disease:   req.Disease,
				FetchedAt: fetchedAt,
				Payload:   a,
			})
		}
	}

	if len(results) == size && resp.NextCursorMark != "" && resp.NextCursorMark != cursor {
		page.NextToken = resp.NextCursorMark
	}
	return page, nil
}

// buildSearchURL constructs the search URL:
// {query} AND (FIRST_PDATE:[from TO to]).
func (c *Client) buildSearchURL(req papersources.PageRequest, cursor string, size int) string {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = req.Disease.SearchQuery()
	}
	query = "(" + query + ")"
	if req.DateRange != nil {
		query += fmt.Sprintf(" AND (FIRST_PDATE:[%s TO %s])",
			req.DateRange.From.Format("2006-01-02"), req.DateRange.To.Format("2006-01-02"))
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("format", "json")
	q.Set("resultType", "core")
	q.Set("synonym", "true")
	q.Set("pageSize", strconv.Itoa(size))
	q.Set("cursorMark", cursor)
	return c.config.BaseURL + "/search?" + q.Encode()
}
