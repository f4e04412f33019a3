// Package springer implements the Springer Nature source adapter over the
// Meta API v2. A free API key is required and is sent as the api_key query
// parameter.
//
// API documentation: https://dev.springernature.com/
package springer

import (
	"fmt"
	"strconv"
	"strings"
)

// SearchResponse is the /meta/v2/json response.
type SearchResponse struct {
	APIMessage string   `json:"apiMessage"`
	Result     []Result `json:"result"`
	Records    []Record `json:"records"`
}

// Result carries the paging counters. Springer sends them as strings.
type Result struct {
	Total      number `json:"total"`
	Start      number `json:"start"`
	PageLength number `json:"pageLength"`
}

// Record is one Springer Nature record; it is the RawRecord payload of this
// source.
type Record struct {
	Identifier      string    `json:"identifier"` // "doi:10.1007/..."
	Title           string    `json:"title"`
	Creators        []Creator `json:"creators"`
	PublicationName string    `json:"publicationName"`
	DOI             string    `json:"doi"`
	PublicationDate string    `json:"publicationDate"`
	OnlineDate      string    `json:"onlineDate"`
	Abstract        any       `json:"abstract"`
	URL             []Link    `json:"url"`
	Subjects        []string  `json:"subjects"`
	ContentType     string    `json:"contentType"`
}

// Creator is an author entry in "Last, First" form.
type Creator struct {
	Creator string `json:"creator"`
}

// Link is a typed record URL.
type Link struct {
	Format   string `json:"format"`
	Platform string `json:"platform"`
	Value    string `json:"value"`
}

type number int

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("decode number %q: %w", s, err)
	}
	*n = number(v)
	return nil
}
