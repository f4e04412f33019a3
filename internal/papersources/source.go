// Package papersources provides interfaces and types for literature source adapters.
//
// This package defines the foundational abstractions that all source adapters
// must follow. Each literature API (PubMed, Europe PMC, OpenAlex, CORE,
// bioRxiv/medRxiv, Springer Nature) implements the Adapter interface, allowing
// the harvester to drive every source through the same pagination loop.
//
// Example usage:
//
//	adapter := pubmed.New(pubmed.Config{APIKey: key})
//	page, err := adapter.FetchPage(ctx, papersources.PageRequest{
//		Query:    domain.DiseaseCrohns.SearchQuery(),
//		Disease:  domain.DiseaseCrohns,
//		PageSize: 100,
//	})
package papersources

import (
	"context"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// PageRequest defines one page fetch from a source.
type PageRequest struct {
	// Query is the free-text query in the generic "term" OR "term" dialect.
	// Adapters may rewrite it into their own syntax.
	Query string

	// Disease is the topic the query was built for. Adapters tag every
	// RawRecord with it and some use its vocabulary directly.
	Disease domain.Disease

	// DateRange filters by publication date. Nil applies no date filter.
	DateRange *domain.DateRange

	// PageSize is the number of records requested. A value of 0 uses the
	// adapter's default; adapters clamp it to the source maximum.
	PageSize int

	// Token is the opaque pagination token returned by the previous page.
	// Empty requests the first page.
	Token string
}

// Page is one page of raw records.
type Page struct {
	// Records may be empty; an empty page is valid.
	Records []domain.RawRecord

	// NextToken is empty when there are no further pages.
	NextToken string

	// Total is the source-reported number of matches when known, otherwise -1.
	Total int
}

// Adapter defines the capability every literature source implements.
type Adapter interface {
	// FetchPage retrieves one page of raw records.
	//
	// Implementations must:
	//   - Respect context cancellation
	//   - Return *domain.SourceAuthError on 401/403
	//   - Return *domain.RateLimitError on 429, carrying any Retry-After
	//   - Return *domain.UnavailableError on transport errors and 5xx
	//
	// Adapters do not rate limit or retry; the scheduler does both.
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)

	// SourceID returns the identifier of this source.
	SourceID() domain.SourceID

	// Name returns a human-readable name for logging and display.
	Name() string

	// IsEnabled reports whether the adapter is configured well enough to be used
	// (for example, required API keys are present).
	IsEnabled() bool
}
