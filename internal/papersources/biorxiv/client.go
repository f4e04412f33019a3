package biorxiv

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for the bioRxiv API.
	DefaultBaseURL = "https://api.biorxiv.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultYearsBack is the interval used when a request has no date range.
	DefaultYearsBack = 5

	sourceName = "bioRxiv/medRxiv"
	dateLayout = "2006-01-02"
)

// DefaultServers lists the preprint servers paged by one stream, in order.
var DefaultServers = []string{"biorxiv", "medrxiv"}

// Config holds the configuration for the bioRxiv client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Servers defaults to DefaultServers.
	Servers []string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// YearsBack defaults to DefaultYearsBack.
	YearsBack int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.Servers) == 0 {
		c.Servers = slices.Clone(DefaultServers)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.YearsBack <= 0 {
		c.YearsBack = DefaultYearsBack
	}
}

// Client implements papersources.Adapter for bioRxiv and medRxiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	now        func() time.Time
}

// Compile-time check that Client implements Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new bioRxiv client.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:  domain.SourceBioRxiv,
			Timeout: cfg.Timeout,
		}),
		now: time.Now,
	}
}

// NewWithHTTPClient creates a new bioRxiv client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient, now: time.Now}
}

// SourceID returns domain.SourceBioRxiv.
func (c *Client) SourceID() domain.SourceID { return domain.SourceBioRxiv }

// Name returns the human-readable name for this source.
func (c *Client) Name() string { return sourceName }

// IsEnabled reports whether the source is enabled.
func (c *Client) IsEnabled() bool { return c.config.Enabled }

// FetchPage retrieves one details page from the current server and keeps
// the preprints that mention the disease. The token has the form
// "{server}:{cursor}". A page may be empty while NextToken is set, since
// filtering happens client-side. The page size is fixed by the API, so
// PageSize is ignored.
func (c *Client) FetchPage(ctx context.Context, req papersources.PageRequest) (*papersources.Page, error) {
	server, cursor, err := c.parseToken(req.Token)
	if err != nil {
		return nil, err
	}

	dr := req.DateRange
	if dr == nil {
		dr = domain.LastYears(c.config.YearsBack, c.now())
	}

	reqURL := fmt.Sprintf("%s/details/%s/%s/%s/%d", c.config.BaseURL, server,
		dr.From.Format(dateLayout), dr.To.Format(dateLayout), cursor)

	var resp DetailsResponse
	if err := c.httpClient.GetJSON(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s details: %w", server, err)
	}

	page := &papersources.Page{Total: -1}
	terms := matchTerms(req)
	fetchedAt := time.Now().UTC()
	for _, p := range resp.Collection {
		if p.Server == "" {
			p.Server = server
		}
		if !mentions(p, terms) {
			continue
		}
		page.Records = append(page.Records, domain.RawRecord{
			SourceID:  domain.SourceBioRxiv,
			Disease:   req.Disease,
			FetchedAt: fetchedAt,
			Payload:   p,
		})
	}

	total := 0
	if len(resp.Messages) > 0 {
		total = int(resp.Messages[0].Total)
	}
	if next := cursor + len(resp.Collection); len(resp.Collection) > 0 && next < total {
		page.NextToken = formatToken(server, next)
	} else if i := slices.Index(c.config.Servers, server); i+1 < len(c.config.Servers) {
		page.NextToken = formatToken(c.config.Servers[i+1], 0)
	}
	return page, nil
}

func (c *Client) parseToken(token string) (string, int, error) {
	if token == "" {
		return c.config.Servers[0], 0, nil
	}
	server, raw, ok := strings.Cut(token, ":")
	cursor, err := strconv.Atoi(raw)
	if !ok || err != nil || cursor < 0 || !slices.Contains(c.config.Servers, server) {
		return "", 0, fmt.Errorf("%w: invalid biorxiv page token %q", domain.ErrInvalidInput, token)
	}
	return server, cursor, nil
}

func formatToken(server string, cursor int) string {
	return server + ":" + strconv.Itoa(cursor)
}

// matchTerms returns the lowercase terms a preprint must mention. The
// disease vocabulary is used when known, otherwise the quoted terms of
// the free-text query.
func matchTerms(req papersources.PageRequest) []string {
	terms := req.Disease.Terms()
	if len(terms) == 0 {
		for _, part := range strings.Split(req.Query, " OR ") {
			terms = append(terms, strings.Trim(part, `"() `))
		}
	}
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func mentions(p Preprint, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	text := strings.ToLower(p.Title + " " + p.Abstract + " " + p.Category)
	for _, t := range terms {
		if containsWord(text, t) {
			return true
		}
	}
	return false
}

// containsWord reports whether term occurs in text on word boundaries, so
// that short acronyms such as "ms" do not match inside "systems".
func containsWord(text, term string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(term)
		if !isWordByte(text, i-1) && !isWordByte(text, end) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
