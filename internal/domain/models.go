// Package domain provides domain models and business logic for the disease literature harvester.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceID identifies the literature API a record was harvested from.
// These values must match the database enum source_id.
type SourceID string

const (
	SourcePubMed    SourceID = "pubmed"
	SourceEuropePMC SourceID = "europe_pmc"
	SourceOpenAlex  SourceID = "openalex"
	SourceCore      SourceID = "core"
	SourceBioRxiv   SourceID = "biorxiv"
	SourceSpringer  SourceID = "springer"
)

// AllSources lists every supported source in their default priority order.
func AllSources() []SourceID {
	return []SourceID{
		SourcePubMed,
		SourceEuropePMC,
		SourceOpenAlex,
		SourceCore,
		SourceSpringer,
		SourceBioRxiv,
	}
}

// IsValid reports whether s is a known source.
func (s SourceID) IsValid() bool {
	switch s {
	case SourcePubMed, SourceEuropePMC, SourceOpenAlex, SourceCore, SourceBioRxiv, SourceSpringer:
		return true
	default:
		return false
	}
}

// DisplayName returns the human-readable name of the source.
func (s SourceID) DisplayName() string {
	switch s {
	case SourcePubMed:
		return "PubMed"
	case SourceEuropePMC:
		return "Europe PMC"
	case SourceOpenAlex:
		return "OpenAlex"
	case SourceCore:
		return "CORE"
	case SourceBioRxiv:
		return "bioRxiv/medRxiv"
	case SourceSpringer:
		return "Springer Nature"
	default:
		return string(s)
	}
}

// ParseSourceID parses a source identifier, accepting a few common aliases.
func ParseSourceID(s string) (SourceID, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "europepmc", "europe-pmc", "epmc":
		return SourceEuropePMC, nil
	case "medrxiv":
		return SourceBioRxiv, nil
	}
	id := SourceID(key)
	if !id.IsValid() {
		return "", NewValidationError("source", fmt.Sprintf("unknown source %q", s))
	}
	return id, nil
}

// DateRange is an inclusive publication date window.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate checks that the range is well ordered.
func (r *DateRange) Validate() error {
	if r == nil {
		return nil
	}
	if r.From.IsZero() || r.To.IsZero() {
		return NewValidationError("date_range", "both from and to are required")
	}
	if r.To.Before(r.From) {
		return NewValidationError("date_range", "to must not be before from")
	}
	return nil
}

// LastYears returns a range covering the given number of years up to now.
func LastYears(years int, now time.Time) *DateRange {
	to := truncateDay(now)
	return &DateRange{From: to.AddDate(-years, 0, 0), To: to}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Query is the immutable input of a harvesting run.
type Query struct {
	Diseases            []Disease  `json:"diseases"`
	Sources             []SourceID `json:"sources"`
	MaxResultsPerSource int        `json:"max_results_per_source"`
	DateRange           *DateRange `json:"date_range,omitempty"`
}

// Validate reports configuration errors that must stop a run before any fetch.
func (q Query) Validate() error {
	if len(q.Diseases) == 0 {
		return NewValidationError("diseases", "at least one disease is required")
	}
	for _, d := range q.Diseases {
		if !d.IsValid() {
			return NewValidationError("diseases", fmt.Sprintf("unknown disease %q", d))
		}
	}
	if len(q.Sources) == 0 {
		return NewValidationError("sources", "at least one source is required")
	}
	for _, s := range q.Sources {
		if !s.IsValid() {
			return NewValidationError("sources", fmt.Sprintf("unknown source %q", s))
		}
	}
	if q.MaxResultsPerSource <= 0 {
		return NewValidationError("max_results_per_source", "must be positive")
	}
	return q.DateRange.Validate()
}
