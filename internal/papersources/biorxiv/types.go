// Package biorxiv implements the bioRxiv and medRxiv source adapter over
// the api.biorxiv.org details endpoint.
//
// The details endpoint has no search; it lists every preprint posted in a
// date interval. The adapter pages both servers in sequence within one
// stream and keeps only preprints whose title, abstract or category mention
// one of the disease's terms.
//
// API documentation: https://api.biorxiv.org/
package biorxiv

import (
	"fmt"
	"strconv"
	"strings"
)

// DetailsResponse is the /details/{server}/{from}/{to}/{cursor} response.
type DetailsResponse struct {
	Messages   []Message  `json:"messages"`
	Collection []Preprint `json:"collection"`
}

// Message carries the paging state of a details response.
type Message struct {
	Status string `json:"status"`
	Cursor count  `json:"cursor"`
	Count  count  `json:"count"`
	Total  count  `json:"total"`
}

// Preprint is one bioRxiv or medRxiv record; it is the RawRecord payload of
// this source.
type Preprint struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"` // "Smith, J.; Doe, A. B."
	Date     string `json:"date"`
	Version  string `json:"version"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Abstract string `json:"abstract"`
	Server   string `json:"server"`
}

// count decodes numbers the API sometimes sends as strings.
type count int

func (c *count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("decode count %q: %w", s, err)
	}
	*c = count(n)
	return nil
}
