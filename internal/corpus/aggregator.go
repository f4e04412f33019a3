// Package corpus owns the growing result set of one harvest run.
package corpus

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/disease-literature-harvester/internal/dedup"
	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// ErrSealed is returned by mutators after Finish.
var ErrSealed = errors.New("corpus is sealed")

// ErrDuplicateIdentity is returned by Finish when two canonical records
// share an identity key.
var ErrDuplicateIdentity = errors.New("duplicate identity key")

// Aggregator collects normalized records and stream reports for one run and
// produces the finished Corpus. It is safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	runID     string
	query     domain.Query
	startedAt time.Time
	now       func() time.Time

	dedup      *dedup.Deduplicator
	counts     map[domain.SourceID]int
	errs       map[domain.SourceID]string
	reports    []domain.SourceReport
	dropped    int
	malformed  int
	duplicates int
	sealed     bool
}

// New starts an aggregator for q with a fresh run ID.
func New(q domain.Query, cfg dedup.Config) *Aggregator {
	return newAggregator(q, cfg, time.Now)
}

func newAggregator(q domain.Query, cfg dedup.Config, now func() time.Time) *Aggregator {
	return &Aggregator{
		runID:     uuid.NewString(),
		query:     q,
		startedAt: now().UTC(),
		now:       now,
		dedup:     dedup.New(cfg),
		counts:    make(map[domain.SourceID]int),
		errs:      make(map[domain.SourceID]string),
	}
}

// RunID returns the identifier of the run.
func (a *Aggregator) RunID() string {
	return a.runID
}

// Add deduplicates rec into the corpus.
func (a *Aggregator) Add(rec domain.NormalizedRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return ErrSealed
	}
	if rec.Title == "" {
		return domain.NewValidationError("title", "must not be empty")
	}
	if res := a.dedup.Add(rec); res.Duplicate {
		a.duplicates++
	}
	a.counts[rec.SourceID]++
	return nil
}

// Report records the outcome of one fetch stream. The first error of each
// source is kept in PerSourceErrors.
func (a *Aggregator) Report(report domain.SourceReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return ErrSealed
	}
	a.reports = append(a.reports, report)
	a.dropped += report.Dropped
	a.malformed += report.Malformed
	if report.Status == domain.StreamFailed && report.Error != "" {
		if _, ok := a.errs[report.Source]; !ok {
			a.errs[report.Source] = report.Error
		}
	}
	return nil
}

// Len returns the current number of canonical records.
func (a *Aggregator) Len() int {
	return a.dedup.Len()
}

// Duplicates returns how many added records joined an existing canonical record.
func (a *Aggregator) Duplicates() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.duplicates
}

// Snapshot returns copies of the canonical records sorted by publication
// date descending, undated last, then identity key.
func (a *Aggregator) Snapshot() []domain.CanonicalRecord {
	records := a.dedup.Records()
	domain.SortCanonical(records)
	return records
}

// Statistics summarizes the current records.
func (a *Aggregator) Statistics() Statistics {
	return Compute(a.Snapshot())
}

// Finish seals the aggregator and returns the finished corpus.
func (a *Aggregator) Finish(cancelled bool) (*domain.Corpus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return nil, ErrSealed
	}
	a.sealed = true

	records := a.dedup.Records()
	byKey := make(map[string]domain.CanonicalRecord, len(records))
	for _, rec := range records {
		if _, dup := byKey[rec.IdentityKey]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, rec.IdentityKey)
		}
		byKey[rec.IdentityKey] = rec
	}

	reports := slices.Clone(a.reports)
	slices.SortFunc(reports, func(x, y domain.SourceReport) int {
		return cmp.Or(cmp.Compare(x.Source, y.Source), cmp.Compare(x.Disease, y.Disease))
	})

	finished := a.now().UTC()
	return &domain.Corpus{
		Records: byKey,
		Metadata: domain.RunMetadata{
			RunID:           a.runID,
			StartedAt:       a.startedAt,
			FinishedAt:      finished,
			Elapsed:         finished.Sub(a.startedAt),
			Query:           a.query,
			PerSourceCounts: maps.Clone(a.counts),
			PerSourceErrors: maps.Clone(a.errs),
			Sources:         reports,
			Cancelled:       cancelled,
			Dropped:         a.dropped,
			Malformed:       a.malformed,
		},
	}, nil
}
