// Package harvest drives paginated fetch streams across literature sources
// and feeds the normalized records into a corpus.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/observability"
	"github.com/helixir/disease-literature-harvester/internal/papersources"
)

const (
	// DefaultWorkers bounds the number of streams fetching at once.
	DefaultWorkers = 4

	// DefaultMaxAttempts is the number of attempts per page, counting the first.
	DefaultMaxAttempts = 5

	// DefaultRequestTimeout bounds a single adapter call.
	DefaultRequestTimeout = 60 * time.Second

	defaultBackoffBase = time.Second
	defaultBackoffMax  = 60 * time.Second
)

// Normalizer maps raw records onto the canonical schema.
// *normalize.Dispatcher implements it.
type Normalizer interface {
	Normalize(raw domain.RawRecord) (*domain.NormalizedRecord, error)
}

// Sink receives the output of fetch streams. It must be safe for
// concurrent use. *corpus.Aggregator implements it.
type Sink interface {
	Add(rec domain.NormalizedRecord) error
	Report(report domain.SourceReport) error
}

// Config holds scheduler settings. Zero values take the defaults.
type Config struct {
	Workers        int
	MaxAttempts    int
	RequestTimeout time.Duration
	Backoff        Backoff

	// PageSizes overrides the page size requested from a source.
	PageSizes map[domain.SourceID]int
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Backoff.Base < 0 {
		c.Backoff.Base = 0
	}
	if c.Backoff.Base == 0 && c.Backoff.Max == 0 {
		c.Backoff = Backoff{Base: defaultBackoffBase, Max: defaultBackoffMax}
	}
	if c.Backoff.Max < c.Backoff.Base {
		c.Backoff.Max = c.Backoff.Base
	}
}

// Stream is one (source, disease) pagination sequence of a run.
type Stream struct {
	Adapter papersources.Adapter
	Limiter *papersources.Limiter
	Disease domain.Disease
	Request papersources.PageRequest
	Budget  int
}

// Scheduler runs fetch streams concurrently on a bounded worker pool.
// Within a stream pages are fetched strictly in sequence.
type Scheduler struct {
	registry   *papersources.Registry
	limiters   *papersources.LimiterSet
	normalizer Normalizer
	cfg        Config
	logger     zerolog.Logger
	metrics    *observability.Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a Scheduler. metrics may be nil.
func NewScheduler(
	registry *papersources.Registry,
	limiters *papersources.LimiterSet,
	normalizer Normalizer,
	cfg Config,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		registry:   registry,
		limiters:   limiters,
		normalizer: normalizer,
		cfg:        cfg,
		logger:     observability.WithComponent(logger, "harvest"),
		metrics:    metrics,
		sleep:      sleep,
	}
}

// Plan validates q and resolves one stream per (source, disease) pair.
// Every error it returns is a configuration error that must stop the run
// before any fetch.
func (s *Scheduler) Plan(q domain.Query) ([]Stream, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	adapters, err := s.registry.Resolve(q.Sources)
	if err != nil {
		return nil, err
	}

	streams := make([]Stream, 0, len(adapters)*len(q.Diseases))
	for _, a := range adapters {
		limiter, err := s.limiters.For(a.SourceID())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		for _, d := range uniqueDiseases(q.Diseases) {
			streams = append(streams, Stream{
				Adapter: a,
				Limiter: limiter,
				Disease: d,
				Request: papersources.PageRequest{
					Query:     d.SearchQuery(),
					Disease:   d,
					DateRange: q.DateRange,
					PageSize:  s.cfg.PageSizes[a.SourceID()],
				},
				Budget: q.MaxResultsPerSource,
			})
		}
	}
	return streams, nil
}

// Run executes every stream, sending records and one report per stream to
// sink. Stream failures are reported, never returned. It reports whether ctx
// was cancelled before every stream finished.
func (s *Scheduler) Run(ctx context.Context, streams []Stream, sink Sink) (cancelled bool) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	for _, st := range streams {
		if ctx.Err() != nil {
			s.report(sink, domain.SourceReport{
				Source:  st.Adapter.SourceID(),
				Disease: st.Disease,
				Status:  domain.StreamCancelled,
			})
			continue
		}
		g.Go(func() error {
			s.report(sink, s.runStream(ctx, st, sink))
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err() != nil
}

func (s *Scheduler) report(sink Sink, report domain.SourceReport) {
	if err := sink.Report(report); err != nil {
		s.logger.Error().Err(err).
			Str("source", string(report.Source)).
			Str("disease", string(report.Disease)).
			Msg("failed to record stream report")
	}
}

// runStream paginates one stream until the source is exhausted, the budget
// is reached, a page fails for good, or ctx is cancelled.
func (s *Scheduler) runStream(ctx context.Context, st Stream, sink Sink) domain.SourceReport {
	source := st.Adapter.SourceID()
	logger := observability.WithSourceContext(observability.LoggerFromContext(ctx, s.logger), string(source), string(st.Disease))
	start := time.Now()

	report := domain.SourceReport{
		Source:  source,
		Disease: st.Disease,
		Status:  domain.StreamCompleted,
	}
	defer func() {
		report.Duration = time.Since(start)
		if s.metrics == nil {
			return
		}
		if report.Status == domain.StreamFailed {
			s.metrics.RecordStreamFailed(string(source), report.Duration.Seconds())
		} else {
			s.metrics.RecordStreamCompleted(string(source), report.Duration.Seconds())
		}
	}()

	logger.Debug().Int("budget", st.Budget).Msg("stream started")

	req := st.Request
	for {
		if ctx.Err() != nil {
			report.Status = domain.StreamCancelled
			break
		}

		remaining := st.Budget - report.Fetched
		if req.PageSize <= 0 || req.PageSize > remaining {
			req.PageSize = remaining
		}

		page, err := s.fetchPage(ctx, st, req, &report, logger)
		if err != nil {
			if ctx.Err() != nil {
				report.Status = domain.StreamCancelled
				break
			}
			report.Status = domain.StreamFailed
			report.Error = err.Error()
			report.ErrorKind = domain.ErrorKind(err)
			logger.Warn().Err(err).Int("pages", report.Pages).Msg("stream aborted")
			break
		}
		report.Pages++

		records := page.Records
		truncated := false
		if len(records) > remaining {
			records = records[:remaining]
			truncated = true
		}
		report.Fetched += len(records)

		if err := s.emit(records, sink, &report, logger); err != nil {
			report.Status = domain.StreamFailed
			report.Error = err.Error()
			report.ErrorKind = domain.ErrorKind(err)
			break
		}

		if page.NextToken == "" {
			break
		}
		if truncated || report.Fetched >= st.Budget {
			report.Status = domain.StreamTruncated
			break
		}
		req.Token = page.NextToken
	}

	logger.Info().
		Str("status", string(report.Status)).
		Int("pages", report.Pages).
		Int("fetched", report.Fetched).
		Int("normalized", report.Normalized).
		Int("retries", report.Retries).
		Msg("stream finished")

	return report
}

// fetchPage calls the adapter, retrying transient failures with backoff.
func (s *Scheduler) fetchPage(ctx context.Context, st Stream, req papersources.PageRequest, report *domain.SourceReport, logger zerolog.Logger) (*papersources.Page, error) {
	source := string(st.Adapter.SourceID())

	for attempt := 0; ; attempt++ {
		start := time.Now()
		page, err := s.call(ctx, st, req)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordPageFetched(source, len(page.Records), time.Since(start).Seconds())
			}
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRunCancelled, ctx.Err())
		}

		if s.metrics != nil {
			s.metrics.RecordSourceError(source, domain.ErrorKind(err))
			if errors.Is(err, domain.ErrSourceRateLimited) {
				s.metrics.RecordSourceRateLimited(source)
			}
		}

		if !domain.IsRetryable(err) {
			return nil, err
		}
		if attempt+1 >= s.cfg.MaxAttempts {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := s.cfg.Backoff.Delay(attempt, domain.RetryAfter(err))
		logger.Debug().Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("retrying page")

		report.Retries++
		if s.metrics != nil {
			s.metrics.RecordSourceRetry(source)
		}
		if err := s.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRunCancelled, err)
		}
	}
}

// call makes one adapter call holding a limiter slot and a fresh timeout.
func (s *Scheduler) call(ctx context.Context, st Stream, req papersources.PageRequest) (*papersources.Page, error) {
	release, err := st.Limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	page, err := st.Adapter.FetchPage(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.NewUnavailableError(st.Adapter.SourceID(), 0, err)
		}
		return nil, err
	}
	if page == nil {
		return nil, domain.NewMalformedResponseError(st.Adapter.SourceID(), errors.New("adapter returned no page"))
	}
	return page, nil
}

// emit normalizes records into sink. Malformed and untitled records are
// counted and skipped; only a sink failure stops the page.
func (s *Scheduler) emit(records []domain.RawRecord, sink Sink, report *domain.SourceReport, logger zerolog.Logger) error {
	var normalized, dropped, malformed int
	defer func() {
		report.Normalized += normalized
		report.Dropped += dropped
		report.Malformed += malformed
		if s.metrics != nil {
			source := string(report.Source)
			s.metrics.RecordRecordsNormalized(source, normalized)
			s.metrics.RecordRecordsDropped(source, dropped)
			s.metrics.RecordRecordsMalformed(source, malformed)
		}
	}()

	for _, raw := range records {
		rec, err := s.normalizer.Normalize(raw)
		switch {
		case err != nil:
			malformed++
			logger.Debug().Err(err).Msg("dropping malformed record")
		case rec == nil:
			dropped++
		default:
			if err := sink.Add(*rec); err != nil {
				return fmt.Errorf("add record: %w", err)
			}
			normalized++
		}
	}
	return nil
}

func uniqueDiseases(diseases []domain.Disease) []domain.Disease {
	seen := make(map[domain.Disease]bool, len(diseases))
	out := make([]domain.Disease, 0, len(diseases))
	for _, d := range diseases {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
