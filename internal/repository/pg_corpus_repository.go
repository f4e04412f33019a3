package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// RunFilter selects a page of stored runs, newest first.
type RunFilter struct {
	Limit  int
	Offset int
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Cancelled   bool      `json:"cancelled"`
	RecordCount int       `json:"record_count"`
}

// PgCorpusRepository stores finished corpora in PostgreSQL.
type PgCorpusRepository struct {
	db DBTX
}

// NewPgCorpusRepository creates a new PostgreSQL corpus repository.
func NewPgCorpusRepository(db DBTX) *PgCorpusRepository {
	return &PgCorpusRepository{db: db}
}

const insertRunQuery = `
	INSERT INTO harvest_runs (
		run_id, started_at, finished_at, elapsed_ms, query, cancelled,
		dropped, malformed, record_count, per_source_counts, per_source_errors
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const insertReportQuery = `
	INSERT INTO stream_reports (
		run_id, source, disease, status, pages, fetched, normalized,
		dropped, malformed, retries, error, error_kind, duration_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const insertRecordQuery = `
	INSERT INTO canonical_records (
		run_id, identity_key, title, doi, pmid, publication_date,
		publication_year, best_source, diseases, best, contributing
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// SaveCorpus stores the run, its stream reports and every canonical record.
// All statements go out in one batch, which PostgreSQL executes as a single
// implicit transaction. Saving a run ID twice returns domain.ErrAlreadyExists.
func (r *PgCorpusRepository) SaveCorpus(ctx context.Context, c *domain.Corpus) error {
	if c == nil {
		return domain.NewValidationError("corpus", "corpus is required")
	}
	runID, err := uuid.Parse(c.Metadata.RunID)
	if err != nil {
		return domain.NewValidationError("run_id", fmt.Sprintf("invalid run ID %q", c.Metadata.RunID))
	}

	m := c.Metadata
	queryJSON, err := json.Marshal(m.Query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}
	countsJSON, err := json.Marshal(nonNilMap(m.PerSourceCounts))
	if err != nil {
		return fmt.Errorf("failed to marshal source counts: %w", err)
	}
	errorsJSON, err := json.Marshal(nonNilMap(m.PerSourceErrors))
	if err != nil {
		return fmt.Errorf("failed to marshal source errors: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(insertRunQuery,
		runID, m.StartedAt, m.FinishedAt, m.Elapsed.Milliseconds(), queryJSON, m.Cancelled,
		m.Dropped, m.Malformed, c.Len(), countsJSON, errorsJSON,
	)
	for _, rep := range m.Sources {
		batch.Queue(insertReportQuery,
			runID, string(rep.Source), string(rep.Disease), string(rep.Status),
			rep.Pages, rep.Fetched, rep.Normalized, rep.Dropped, rep.Malformed, rep.Retries,
			nullString(rep.Error), nullString(rep.ErrorKind), rep.Duration.Milliseconds(),
		)
	}
	for _, rec := range c.Sorted() {
		bestJSON, err := json.Marshal(rec.Best)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.IdentityKey, err)
		}
		contributingJSON, err := json.Marshal(rec.Contributing)
		if err != nil {
			return fmt.Errorf("failed to marshal contributing records of %s: %w", rec.IdentityKey, err)
		}
		b := rec.Best
		batch.Queue(insertRecordQuery,
			runID, rec.IdentityKey, b.Title, b.DOI, b.PMID, b.PublicationDate,
			nullInt(b.Year()), string(b.SourceID), diseaseStrings(rec.Diseases), bestJSON, contributingJSON,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	for i := range batch.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if i == 0 && isPgUniqueViolation(err) {
				return fmt.Errorf("%w: run %s", domain.ErrAlreadyExists, runID)
			}
			return fmt.Errorf("failed to save corpus statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to save corpus: %w", err)
	}
	return nil
}

// GetRun returns the metadata of a stored run, including its stream reports.
func (r *PgCorpusRepository) GetRun(ctx context.Context, runID string) (*domain.RunMetadata, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, domain.NewValidationError("run_id", fmt.Sprintf("invalid run ID %q", runID))
	}

	query := `
		SELECT run_id::text, started_at, finished_at, elapsed_ms, query, cancelled,
			dropped, malformed, per_source_counts, per_source_errors
		FROM harvest_runs
		WHERE run_id = $1`

	var (
		m          domain.RunMetadata
		elapsedMS  int64
		queryJSON  []byte
		countsJSON []byte
		errorsJSON []byte
	)
	err = r.db.QueryRow(ctx, query, id).Scan(
		&m.RunID, &m.StartedAt, &m.FinishedAt, &elapsedMS, &queryJSON, &m.Cancelled,
		&m.Dropped, &m.Malformed, &countsJSON, &errorsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("run", runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	m.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	if err := json.Unmarshal(queryJSON, &m.Query); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query: %w", err)
	}
	if err := json.Unmarshal(countsJSON, &m.PerSourceCounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source counts: %w", err)
	}
	if err := json.Unmarshal(errorsJSON, &m.PerSourceErrors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source errors: %w", err)
	}
	if len(m.PerSourceErrors) == 0 {
		m.PerSourceErrors = nil
	}

	m.Sources, err = r.reports(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PgCorpusRepository) reports(ctx context.Context, runID uuid.UUID) ([]domain.SourceReport, error) {
	query := `
		SELECT source, disease, status, pages, fetched, normalized,
			dropped, malformed, retries, error, error_kind, duration_ms
		FROM stream_reports
		WHERE run_id = $1
		ORDER BY source, disease`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stream reports: %w", err)
	}
	defer rows.Close()

	var out []domain.SourceReport
	for rows.Next() {
		var (
			rep              domain.SourceReport
			source, disease  string
			status           string
			errText, errKind *string
			durationMS       int64
		)
		if err := rows.Scan(
			&source, &disease, &status, &rep.Pages, &rep.Fetched, &rep.Normalized,
			&rep.Dropped, &rep.Malformed, &rep.Retries, &errText, &errKind, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stream report: %w", err)
		}
		rep.Source = domain.SourceID(source)
		rep.Disease = domain.Disease(disease)
		rep.Status = domain.StreamStatus(status)
		rep.Error = domain.Deref(errText)
		rep.ErrorKind = domain.Deref(errKind)
		rep.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stream reports: %w", err)
	}
	return out, nil
}

// LoadCorpus reads a stored run back into a corpus.
func (r *PgCorpusRepository) LoadCorpus(ctx context.Context, runID string) (*domain.Corpus, error) {
	meta, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	id := uuid.MustParse(meta.RunID)

	query := `
		SELECT identity_key, best, contributing, diseases
		FROM canonical_records
		WHERE run_id = $1`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	c := &domain.Corpus{Records: make(map[string]domain.CanonicalRecord), Metadata: *meta}
	for rows.Next() {
		var (
			rec              domain.CanonicalRecord
			bestJSON         []byte
			contributingJSON []byte
			diseases         []string
		)
		if err := rows.Scan(&rec.IdentityKey, &bestJSON, &contributingJSON, &diseases); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal(bestJSON, &rec.Best); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", rec.IdentityKey, err)
		}
		if err := json.Unmarshal(contributingJSON, &rec.Contributing); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contributing records of %s: %w", rec.IdentityKey, err)
		}
		for _, d := range diseases {
			rec.Diseases = append(rec.Diseases, domain.Disease(d))
		}
		c.Records[rec.IdentityKey] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return c, nil
}

// ListRuns returns a page of stored runs, newest first, and the total count.
func (r *PgCorpusRepository) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, int64, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM harvest_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := `
		SELECT run_id::text, started_at, finished_at, cancelled, record_count
		FROM harvest_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.StartedAt, &s.FinishedAt, &s.Cancelled, &s.RecordCount); err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, total, nil
}

// DeleteRun removes a stored run with its reports and records.
func (r *PgCorpusRepository) DeleteRun(ctx context.Context, runID string) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return domain.NewValidationError("run_id", fmt.Sprintf("invalid run ID %q", runID))
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM harvest_runs WHERE run_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("run", runID)
	}
	return nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

func diseaseStrings(ds []domain.Disease) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}
