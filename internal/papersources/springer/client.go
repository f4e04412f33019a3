package springer

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
	// DefaultBaseURL is the base URL for the Springer Nature API.
	DefaultBaseURL = "https://api.springernature.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default p parameter.
	DefaultPageSize = 25

	// MaxPageSize is the largest p accepted by the Meta API on a basic plan.
	MaxPageSize = 50

	sourceName = "Springer Nature"
)

// Config holds the configuration for the Springer Nature client.
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

// Client implements papersources.Adapter for Springer Nature.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new Springer Nature client.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:  domain.SourceSpringer,
			Timeout: cfg.Timeout,
		}),
	}
}

// NewWithHTTPClient creates a new Springer Nature client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// SourceID returns domain.SourceSpringer.
func (c *Client) SourceID() domain.SourceID { return domain.SourceSpringer }

// Name returns the human-readable name for this source.
func (c *Client) Name() string { return sourceName }

// IsEnabled reports whether the source is enabled and has an API key.
func (c *Client) IsEnabled() bool { return c.config.Enabled && c.config.APIKey != "" }

// FetchPage retrieves one page of records. The page token is the 1-based
// start index s.
func (c *Client) FetchPage(ctx context.Context, req papersources.PageRequest) (*papersources.Page, error) {
	start := 1
	if req.Token != "" {
		n, err := strconv.Atoi(req.Token)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: invalid springer page token %q", domain.ErrInvalidInput, req.Token)
		}
		start = n
	}
	size := req.PageSize
	if size <= 0 || size > c.config.PageSize {
		size = c.config.PageSize
	}

	q := url.Values{}
	q.Set("q", BuildQuery(req))
	q.Set("s", strconv.Itoa(start))
	q.Set("p", strconv.Itoa(size))
	q.Set("api_key", c.config.APIKey)

	var resp SearchResponse
	if err := c.httpClient.GetJSON(ctx, c.config.BaseURL+"/meta/v2/json?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}

	total := -1
	if len(resp.Result) > 0 {
		total = int(resp.Result[0].Total)
	}
	page := &papersources.Page{Total: total}
	if len(resp.Records) == 0 {
		return page, nil
	}

	fetchedAt := time.Now().UTC()
	page.Records = make([]domain.RawRecord, 0, len(resp.Records))
	for _, r := range resp.Records {
		page.Records = append(page.Records, domain.RawRecord{
			SourceID:  domain.SourceSpringer,
			Disease:   req.Disease,
			FetchedAt: fetchedAt,
			Payload:   r,
		})
	}
	if next := start + len(resp.Records); total >= 0 && next <= total {
		page.NextToken = strconv.Itoa(next)
	}
	return page, nil
}

// BuildQuery returns the Meta API query, adding datefrom/dateto
// constraints when the request has a date range.
func BuildQuery(req papersources.PageRequest) string {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = req.Disease.SearchQuery()
	}
	if req.DateRange == nil {
		return query
	}
	return fmt.Sprintf("(%s) datefrom:%s dateto:%s", query,
		req.DateRange.From.Format("2006-01-02"), req.DateRange.To.Format("2006-01-02"))
}
