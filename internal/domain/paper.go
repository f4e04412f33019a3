package domain

import (
	"time"
)

// RawRecord is one item exactly as an adapter decoded it from a source response.
// Payload holds the source-specific struct; only that source's normalizer
// knows how to read it.
type RawRecord struct {
	SourceID  SourceID
	Disease   Disease
	FetchedAt time.Time
	Payload   any
}

// NormalizedRecord is one paper mapped into the canonical schema.
// Title is never empty. DOI is lowercase without any URL prefix.
type NormalizedRecord struct {
	Title           string     `json:"title"`
	Authors         []string   `json:"authors"`
	Abstract        *string    `json:"abstract,omitempty"`
	Journal         *string    `json:"journal,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	// PublicationYear is kept even when the full date is unknown. Zero means unknown.
	PublicationYear int      `json:"publication_year,omitempty"`
	DOI             *string  `json:"doi,omitempty"`
	PMID            *string  `json:"pmid,omitempty"`
	SourceID        SourceID `json:"source_id"`
	SourceURL       *string  `json:"source_url,omitempty"`
	Disease         Disease  `json:"disease"`
	Keywords        []string `json:"keywords,omitempty"`
	MeshTerms       []string `json:"mesh_terms,omitempty"`
}

// FirstAuthor returns the first listed author or an empty string.
func (r NormalizedRecord) FirstAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// HasAbstract reports whether the record carries a non-empty abstract.
func (r NormalizedRecord) HasAbstract() bool {
	return r.Abstract != nil && *r.Abstract != ""
}

// Year returns the publication year, preferring the full date when present.
func (r NormalizedRecord) Year() int {
	if r.PublicationDate != nil {
		return r.PublicationDate.Year()
	}
	return r.PublicationYear
}

// CanonicalRecord is the deduplicated view of one paper.
// Contributing always includes Best.
type CanonicalRecord struct {
	IdentityKey  string             `json:"identity_key"`
	Best         NormalizedRecord   `json:"best"`
	Contributing []NormalizedRecord `json:"contributing"`
	Diseases     []Disease          `json:"diseases"`
}

// Sources returns the distinct sources that contributed to the record, in contributing order.
func (c CanonicalRecord) Sources() []SourceID {
	seen := make(map[SourceID]bool, len(c.Contributing))
	out := make([]SourceID, 0, len(c.Contributing))
	for _, r := range c.Contributing {
		if !seen[r.SourceID] {
			seen[r.SourceID] = true
			out = append(out, r.SourceID)
		}
	}
	return out
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or an empty string.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
