// Package core implements the CORE (core.ac.uk) source adapter over the v3
// works search API. CORE requires an API key sent as a Bearer token.
//
// API documentation: https://api.core.ac.uk/docs/v3
package core

// SearchResponse is the /v3/search/works response.
type SearchResponse struct {
	TotalHits int    `json:"totalHits"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	Results   []Work `json:"results"`
}

// Work is one CORE work; it is the RawRecord payload of this source.
type Work struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	Abstract      string       `json:"abstract"`
	Authors       []Author     `json:"authors"`
	DOI           string       `json:"doi"`
	PublishedDate string       `json:"publishedDate"` // "2021-04-01T00:00:00"
	YearPublished int          `json:"yearPublished"`
	Journals      []Journal    `json:"journals"`
	DownloadURL   string       `json:"downloadUrl"`
	Identifiers   []Identifier `json:"identifiers"`
	FieldOfStudy  string       `json:"fieldOfStudy"`
}

// Author is a CORE author entry; names are usually "Last, First".
type Author struct {
	Name string `json:"name"`
}

// Journal identifies the venue of a work.
type Journal struct {
	Title       string   `json:"title"`
	Identifiers []string `json:"identifiers"`
}

// Identifier is an external identifier such as a PubMed ID.
type Identifier struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"` // "DOI", "PUBMED_ID", "OAI_ID", ...
}
