package corpus

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// topJournalLimit is the number of journals listed in Statistics.
const topJournalLimit = 10

// Statistics summarizes a set of canonical records.
type Statistics struct {
	TotalRecords int `json:"total_records" yaml:"total_records"`
	WithDOI      int `json:"with_doi" yaml:"with_doi"`
	WithPMID     int `json:"with_pmid" yaml:"with_pmid"`
	WithAbstract int `json:"with_abstract" yaml:"with_abstract"`

	Coverage  Coverage   `json:"coverage" yaml:"coverage"`
	DateRange *DateRange `json:"date_range,omitempty" yaml:"date_range,omitempty"`

	// BySource and ByDisease count every contributing record.
	BySource  map[domain.SourceID]int `json:"by_source" yaml:"by_source"`
	ByDisease map[domain.Disease]int  `json:"by_disease" yaml:"by_disease"`

	TopJournals []JournalCount `json:"top_journals" yaml:"top_journals"`
}

// Coverage holds identifier and abstract coverage as percentages rounded to
// two decimals.
type Coverage struct {
	DOIPercent      float64 `json:"doi_percent" yaml:"doi_percent"`
	PMIDPercent     float64 `json:"pmid_percent" yaml:"pmid_percent"`
	AbstractPercent float64 `json:"abstract_percent" yaml:"abstract_percent"`
}

// DateRange is the span of known publication dates.
type DateRange struct {
	Earliest time.Time `json:"earliest" yaml:"earliest"`
	Latest   time.Time `json:"latest" yaml:"latest"`
}

// JournalCount is the number of canonical records in one journal.
type JournalCount struct {
	Journal string `json:"journal" yaml:"journal"`
	Count   int    `json:"count" yaml:"count"`
}

// Compute derives Statistics from canonical records. Identifier, abstract,
// date and journal figures use each record's Best.
func Compute(records []domain.CanonicalRecord) Statistics {
	stats := Statistics{
		TotalRecords: len(records),
		BySource:     make(map[domain.SourceID]int),
		ByDisease:    make(map[domain.Disease]int),
		TopJournals:  []JournalCount{},
	}

	journals := make(map[string]int)
	for _, rec := range records {
		best := rec.Best
		if best.DOI != nil {
			stats.WithDOI++
		}
		if best.PMID != nil {
			stats.WithPMID++
		}
		if best.HasAbstract() {
			stats.WithAbstract++
		}
		if d := best.PublicationDate; d != nil {
			if stats.DateRange == nil {
				stats.DateRange = &DateRange{Earliest: *d, Latest: *d}
			}
			if d.Before(stats.DateRange.Earliest) {
				stats.DateRange.Earliest = *d
			}
			if d.After(stats.DateRange.Latest) {
				stats.DateRange.Latest = *d
			}
		}
		if j := domain.Deref(best.Journal); j != "" {
			journals[j]++
		}
		for _, c := range rec.Contributing {
			stats.BySource[c.SourceID]++
			stats.ByDisease[c.Disease]++
		}
	}

	stats.Coverage = Coverage{
		DOIPercent:      percent(stats.WithDOI, stats.TotalRecords),
		PMIDPercent:     percent(stats.WithPMID, stats.TotalRecords),
		AbstractPercent: percent(stats.WithAbstract, stats.TotalRecords),
	}

	for j, n := range journals {
		stats.TopJournals = append(stats.TopJournals, JournalCount{Journal: j, Count: n})
	}
	slices.SortFunc(stats.TopJournals, func(a, b JournalCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Journal, b.Journal))
	})
	if len(stats.TopJournals) > topJournalLimit {
		stats.TopJournals = stats.TopJournals[:topJournalLimit]
	}
	return stats
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 100
}
