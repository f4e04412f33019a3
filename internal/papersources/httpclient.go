package papersources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// DefaultUserAgent is sent when no User-Agent is configured.
const DefaultUserAgent = "Helixir-DiseaseLiteratureHarvester/1.0"

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source tags every error returned by the client.
	Source domain.SourceID

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key sent as a header.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "X-API-Key", "Authorization").
	APIKeyHeader string

	// APIKeyPrefix is prepended to the key value (e.g., "Bearer ").
	APIKeyPrefix string
}

// HTTPClient wraps http.Client and maps HTTP failures onto the source error
// taxonomy. It neither rate limits nor retries; callers do both.
// It is safe for concurrent use.
type HTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
	}
}

// Do executes a request and returns the response body of a 2xx response.
//
// Errors:
//   - 401/403: *domain.SourceAuthError
//   - 429: *domain.RateLimitError with the parsed Retry-After
//   - 5xx and transport failures: *domain.UnavailableError
//   - other non-2xx: *domain.ExternalAPIError
//
// Context cancellation is returned unwrapped so callers can tell it apart.
func (c *HTTPClient) Do(req *http.Request) ([]byte, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKeyPrefix+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.NewUnavailableError(c.config.Source, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewUnavailableError(c.config.Source, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	if err := c.classify(resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Get issues a GET request for url.
func (c *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// GetJSON issues a GET request and decodes a JSON body into v.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.NewMalformedResponseError(c.config.Source, err)
	}
	return nil
}

// GetXML issues a GET request and decodes an XML body into v.
func (c *HTTPClient) GetXML(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return domain.NewMalformedResponseError(c.config.Source, err)
	}
	return nil
}

// classify maps a non-2xx response onto a typed error.
func (c *HTTPClient) classify(resp *http.Response, body []byte) error {
	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewSourceAuthError(c.config.Source, status, snippet(body))
	case status == http.StatusTooManyRequests:
		return domain.NewRateLimitError(c.config.Source, ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	case status >= 500:
		return domain.NewUnavailableError(c.config.Source, status, nil)
	default:
		return domain.NewExternalAPIError(c.config.Source, status, snippet(body), nil)
	}
}

// ParseRetryAfter parses a Retry-After header given as seconds or an HTTP date.
// It returns zero when the header is absent, invalid or already in the past.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	// Try to parse as seconds
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	// Try to parse as HTTP date
	if t, err := http.ParseTime(value); err == nil {
		if delay := t.Sub(now); delay > 0 {
			return delay
		}
	}

	return 0
}

// snippet returns a short, single-line excerpt of a response body for error messages.
func snippet(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
