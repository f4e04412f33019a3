package domain

import (
	"cmp"
	"slices"
	"time"
)

// StreamStatus is the outcome of one (source, disease) fetch stream.
type StreamStatus string

const (
	// StreamCompleted means pagination ran until the source had no more pages.
	StreamCompleted StreamStatus = "completed"
	// StreamTruncated means the stream stopped at MaxResultsPerSource.
	StreamTruncated StreamStatus = "truncated"
	// StreamFailed means a non-retryable error, or exhausted retries, ended the stream.
	StreamFailed StreamStatus = "failed"
	// StreamCancelled means the run was cancelled before the stream finished.
	StreamCancelled StreamStatus = "cancelled"
)

// SourceReport summarizes one fetch stream of a run.
type SourceReport struct {
	Source  SourceID     `json:"source"`
	Disease Disease      `json:"disease"`
	Status  StreamStatus `json:"status"`
	Pages   int          `json:"pages"`
	// Fetched counts raw records kept after budget truncation.
	Fetched    int           `json:"fetched"`
	Normalized int           `json:"normalized"`
	Dropped    int           `json:"dropped"`
	Malformed  int           `json:"malformed"`
	Retries    int           `json:"retries"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// RunMetadata describes how a corpus was produced.
type RunMetadata struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Query      Query         `json:"query"`
	// PerSourceCounts counts normalized records accepted per source.
	PerSourceCounts map[SourceID]int `json:"per_source_counts"`
	// PerSourceErrors holds the first error that ended a stream of each source.
	PerSourceErrors map[SourceID]string `json:"per_source_errors,omitempty"`
	Sources         []SourceReport      `json:"sources"`
	Cancelled       bool                `json:"cancelled"`
	Dropped         int                 `json:"dropped"`
	Malformed       int                 `json:"malformed"`
}

// Corpus is the finished, read-only result of one run.
type Corpus struct {
	Records  map[string]CanonicalRecord `json:"records"`
	Metadata RunMetadata                `json:"metadata"`
}

// Len returns the number of canonical records.
func (c *Corpus) Len() int {
	return len(c.Records)
}

// Sorted returns the canonical records in export order.
func (c *Corpus) Sorted() []CanonicalRecord {
	out := make([]CanonicalRecord, 0, len(c.Records))
	for _, rec := range c.Records {
		out = append(out, rec)
	}
	SortCanonical(out)
	return out
}

// SortCanonical orders records by publication date descending, undated
// records last, then by identity key.
func SortCanonical(records []CanonicalRecord) {
	slices.SortFunc(records, func(a, b CanonicalRecord) int {
		da, db := a.Best.PublicationDate, b.Best.PublicationDate
		switch {
		case da != nil && db != nil:
			if c := db.Compare(*da); c != 0 {
				return c
			}
		case da != nil:
			return -1
		case db != nil:
			return 1
		}
		return cmp.Compare(a.IdentityKey, b.IdentityKey)
	})
}
