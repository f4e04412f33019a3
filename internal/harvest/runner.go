package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/disease-literature-harvester/internal/corpus"
	"github.com/helixir/disease-literature-harvester/internal/dedup"
	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/observability"
)

// Store persists a finished corpus.
type Store interface {
	SaveCorpus(ctx context.Context, c *domain.Corpus) error
}

// Publisher announces a finished corpus.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, c *domain.Corpus) error
}

// Runner executes complete harvest runs: plan, fetch, deduplicate, seal,
// then optionally persist and publish.
type Runner struct {
	scheduler *Scheduler
	dedup     dedup.Config
	logger    zerolog.Logger
	metrics   *observability.Metrics

	store     Store
	publisher Publisher
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore persists every finished corpus.
func WithStore(s Store) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithPublisher publishes a run-completed event for every finished corpus.
func WithPublisher(p Publisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(scheduler *Scheduler, cfg dedup.Config, logger zerolog.Logger, metrics *observability.Metrics, opts ...RunnerOption) *Runner {
	r := &Runner{
		scheduler: scheduler,
		dedup:     cfg,
		logger:    observability.WithComponent(logger, "runner"),
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run harvests q into a new corpus.
//
// Configuration errors fail the run before any fetch and return a nil
// corpus. Otherwise a corpus is always returned, partial when streams
// failed or ctx was cancelled. A non-nil error alongside a corpus reports
// persistence or publishing failures.
func (r *Runner) Run(ctx context.Context, q domain.Query) (*domain.Corpus, error) {
	run, err := r.Start(q)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordRunFailed(0)
		}
		r.logger.Error().Err(err).Msg("harvest rejected")
		return nil, err
	}
	return run.Execute(ctx)
}

// Start validates q and plans its streams without fetching. The returned Run
// exposes its aggregator so callers can read progress while it executes.
func (r *Runner) Start(q domain.Query) (*Run, error) {
	streams, err := r.scheduler.Plan(q)
	if err != nil {
		return nil, err
	}
	return &Run{runner: r, query: q, streams: streams, agg: corpus.New(q, r.dedup)}, nil
}

// Run is a planned harvest that has not executed yet.
type Run struct {
	runner  *Runner
	query   domain.Query
	streams []Stream
	agg     *corpus.Aggregator
}

// ID returns the run ID.
func (p *Run) ID() string {
	return p.agg.RunID()
}

// Aggregator exposes the live aggregator for progress reads.
func (p *Run) Aggregator() *corpus.Aggregator {
	return p.agg
}

// Execute performs the planned run. It has the same result contract as Runner.Run.
func (p *Run) Execute(ctx context.Context) (*domain.Corpus, error) {
	return p.runner.execute(ctx, p.query, p.streams, p.agg)
}

func (r *Runner) execute(ctx context.Context, q domain.Query, streams []Stream, agg *corpus.Aggregator) (*domain.Corpus, error) {
	runID := agg.RunID()
	ctx = observability.WithRunID(ctx, runID)
	logger := observability.WithRunContext(r.logger, runID)
	start := time.Now()

	if r.metrics != nil {
		r.metrics.RecordRunStarted()
	}
	logger.Info().
		Int("streams", len(streams)).
		Int("max_results_per_source", q.MaxResultsPerSource).
		Msg("harvest started")

	cancelled := r.scheduler.Run(ctx, streams, agg)

	c, err := agg.Finish(cancelled)
	if err != nil {
		return nil, fmt.Errorf("finish run %s: %w", runID, err)
	}

	if r.metrics != nil {
		if cancelled {
			r.metrics.RecordRunCancelled()
		}
		r.metrics.RecordRunCompleted(time.Since(start).Seconds(), c.Len())
	}
	logger.Info().
		Int("canonical_records", c.Len()).
		Int("duplicates", agg.Duplicates()).
		Int("failed_sources", len(c.Metadata.PerSourceErrors)).
		Bool("cancelled", cancelled).
		Dur("elapsed", c.Metadata.Elapsed).
		Msg("harvest finished")

	// A cancelled run is still persisted and published.
	afterCtx := context.WithoutCancel(ctx)
	var errs []error
	if r.store != nil {
		if err := r.store.SaveCorpus(afterCtx, c); err != nil {
			logger.Error().Err(err).Msg("failed to persist corpus")
			errs = append(errs, fmt.Errorf("persist corpus: %w", err))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishRunCompleted(afterCtx, c); err != nil {
			logger.Error().Err(err).Msg("failed to publish run event")
			errs = append(errs, fmt.Errorf("publish run event: %w", err))
		}
	}
	return c, errors.Join(errs...)
}
