package pubmed

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
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the number of PMIDs requested per page.
	DefaultPageSize = 100

	// MaxPageSize is the largest page efetch handles comfortably in one GET.
	MaxPageSize = 500

	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the optional NCBI API key. With a key NCBI allows
	// 10 requests per second instead of 3.
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

// Client implements papersources.Adapter for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:  domain.SourcePubMed,
			Timeout: cfg.Timeout,
		}),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// SourceID returns domain.SourcePubMed.
func (c *Client) SourceID() domain.SourceID { return domain.SourcePubMed }

// Name returns the human-readable name for this source.
func (c *Client) Name() string { return sourceName }

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool { return c.config.Enabled }

// FetchPage searches for one page of PMIDs and fetches their articles.
// The page token is the retstart offset of the page.
func (c *Client) FetchPage(ctx context.Context, req papersources.PageRequest) (*papersources.Page, error) {
	offset, err := parseOffset(req.Token)
	if err != nil {
		return nil, err
	}
	size := req.PageSize
	if size <= 0 || size > c.config.PageSize {
		size = c.config.PageSize
	}

	search, err := c.esearch(ctx, BuildQuery(req), req.DateRange, offset, size)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	if search.ERROR != "" {
		return nil, domain.NewExternalAPIError(domain.SourcePubMed, 200, search.ERROR, nil)
	}

	page := &papersources.Page{Total: search.Count}
	ids := search.IDList.IDs
	if len(ids) == 0 {
		return page, nil
	}

	articles, err := c.efetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	fetchedAt := time.Now().UTC()
	page.Records = make([]domain.RawRecord, 0, len(articles.Articles))
	for _, a := range articles.Articles {
		page.Records = append(page.Records, domain.RawRecord{
			SourceID:  domain.SourcePubMed,
			Disease:   req.Disease,
			FetchedAt: fetchedAt,
			Payload:   a,
		})
	}

	if next := offset + len(ids); next < search.Count {
		page.NextToken = strconv.Itoa(next)
	}
	return page, nil
}

// BuildQuery returns the esearch term for a page request: the free-text
// query OR'd with the disease's MeSH headings.
func BuildQuery(req papersources.PageRequest) string {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = req.Disease.SearchQuery()
	}

	profile, ok := req.Disease.Profile()
	if !ok || len(profile.MeshTerms) == 0 {
		return query
	}

	parts := make([]string, 0, len(profile.MeshTerms)+1)
	if query != "" {
		parts = append(parts, "("+query+")")
	}
	for _, m := range profile.MeshTerms {
		parts = append(parts, `"`+m+`"[MeSH Terms]`)
	}
	return strings.Join(parts, " OR ")
}

func (c *Client) esearch(ctx context.Context, term string, dates *domain.DateRange, offset, size int) (*ESearchResult, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(size))
	q.Set("retstart", strconv.Itoa(offset))
	q.Set("sort", "pub_date")
	if dates != nil {
		q.Set("datetype", "pdat")
		q.Set("mindate", dates.From.Format("2006/01/02"))
		q.Set("maxdate", dates.To.Format("2006/01/02"))
	}
	c.addAPIKey(q)

	var result ESearchResult
	if err := c.httpClient.GetXML(ctx, c.config.BaseURL+"/esearch.fcgi?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	c.addAPIKey(q)

	var result PubmedArticleSet
	if err := c.httpClient.GetXML(ctx, c.config.BaseURL+"/efetch.fcgi?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) addAPIKey(q url.Values) {
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
}

func parseOffset(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid pubmed page token %q", domain.ErrInvalidInput, token)
	}
	return n, nil
}
