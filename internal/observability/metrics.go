package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the harvester.
// Metrics are organized by subsystem: runs, streams, sources, records,
// deduplication, exports and events. All counters and histograms are
// registered via promauto with the default Prometheus registry.
type Metrics struct {
	// RunsStarted counts harvest runs started.
	RunsStarted prometheus.Counter

	// RunsCompleted counts harvest runs that produced a corpus.
	RunsCompleted prometheus.Counter

	// RunsFailed counts harvest runs rejected or aborted before producing a corpus.
	RunsFailed prometheus.Counter

	// RunsCancelled counts harvest runs cut short by cancellation.
	RunsCancelled prometheus.Counter

	// RunDuration observes the end-to-end duration of runs in seconds.
	RunDuration prometheus.Histogram

	// StreamsCompleted counts (source, disease) streams that ended normally, labeled by source.
	StreamsCompleted *prometheus.CounterVec

	// StreamsFailed counts streams aborted by a non-retryable error, labeled by source.
	StreamsFailed *prometheus.CounterVec

	// StreamDuration observes stream duration in seconds, labeled by source.
	StreamDuration *prometheus.HistogramVec

	// PagesFetched counts pages returned by adapters, labeled by source.
	PagesFetched *prometheus.CounterVec

	// SourceRequestDuration observes adapter call duration in seconds, labeled by source.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRetries counts retried adapter calls, labeled by source.
	SourceRetries *prometheus.CounterVec

	// SourceRateLimited counts rate-limited responses, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// SourceErrors counts failed adapter calls, labeled by source and error kind.
	SourceErrors *prometheus.CounterVec

	// RecordsFetched counts raw records received, labeled by source.
	RecordsFetched *prometheus.CounterVec

	// RecordsNormalized counts records that normalized successfully, labeled by source.
	RecordsNormalized *prometheus.CounterVec

	// RecordsDropped counts records dropped for lacking a title, labeled by source.
	RecordsDropped *prometheus.CounterVec

	// RecordsMalformed counts records whose payload could not be read, labeled by source.
	RecordsMalformed *prometheus.CounterVec

	// CanonicalRecords counts canonical records produced by finished runs.
	CanonicalRecords prometheus.Counter

	// DuplicatesMerged counts records that joined an existing canonical record.
	DuplicatesMerged prometheus.Counter

	// ExportsWritten counts export files written, labeled by format.
	ExportsWritten *prometheus.CounterVec

	// EventsPublished counts run-completed events delivered to the broker.
	EventsPublished prometheus.Counter

	// EventsFailed counts run-completed events that could not be delivered.
	EventsFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Runs
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of harvest runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of harvest runs completed",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of harvest runs that failed",
		}),
		RunsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_cancelled_total",
			Help:      "Total number of harvest runs cancelled",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of harvest runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),

		// Streams
		StreamsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_completed_total",
			Help:      "Total number of fetch streams completed by source",
		}, []string{"source"}),
		StreamsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_failed_total",
			Help:      "Total number of fetch streams aborted by source",
		}, []string{"source"}),
		StreamDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of fetch streams in seconds by source",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"source"}),

		// Sources
		PagesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of pages fetched by source",
		}, []string{"source"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to literature sources in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		SourceRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_retries_total",
			Help:      "Total number of retried requests by source",
		}, []string{"source"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from literature sources",
		}, []string{"source"}),
		SourceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Total number of failed requests to literature sources",
		}, []string{"source", "kind"}),

		// Records
		RecordsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total number of raw records fetched by source",
		}, []string{"source"}),
		RecordsNormalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_normalized_total",
			Help:      "Total number of records normalized by source",
		}, []string{"source"}),
		RecordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Total number of records dropped for lacking a title by source",
		}, []string{"source"}),
		RecordsMalformed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_malformed_total",
			Help:      "Total number of malformed records by source",
		}, []string{"source"}),

		// Deduplication
		CanonicalRecords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canonical_records_total",
			Help:      "Total number of canonical records produced",
		}),
		DuplicatesMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_merged_total",
			Help:      "Total number of records merged into an existing canonical record",
		}),

		// Exports and events
		ExportsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_written_total",
			Help:      "Total number of export files written by format",
		}, []string{"format"}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of run events published",
		}),
		EventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of run events that failed to publish",
		}),
	}
}

// RecordRunStarted records that a run has started.
func (m *Metrics) RecordRunStarted() {
	m.RunsStarted.Inc()
}

// RecordRunCompleted records that a run has produced a corpus.
func (m *Metrics) RecordRunCompleted(durationSeconds float64, canonical int) {
	m.RunsCompleted.Inc()
	m.RunDuration.Observe(durationSeconds)
	m.CanonicalRecords.Add(float64(canonical))
}

// RecordRunFailed records that a run has failed.
func (m *Metrics) RecordRunFailed(durationSeconds float64) {
	m.RunsFailed.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunCancelled records that a run was cut short.
func (m *Metrics) RecordRunCancelled() {
	m.RunsCancelled.Inc()
}

// RecordStreamCompleted records a stream that ended normally.
func (m *Metrics) RecordStreamCompleted(source string, durationSeconds float64) {
	m.StreamsCompleted.WithLabelValues(source).Inc()
	m.StreamDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordStreamFailed records a stream aborted by a non-retryable error.
func (m *Metrics) RecordStreamFailed(source string, durationSeconds float64) {
	m.StreamsFailed.WithLabelValues(source).Inc()
	m.StreamDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordPageFetched records one successful adapter call and the raw records it returned.
func (m *Metrics) RecordPageFetched(source string, records int, durationSeconds float64) {
	m.PagesFetched.WithLabelValues(source).Inc()
	m.RecordsFetched.WithLabelValues(source).Add(float64(records))
	m.SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceRetry records a retried adapter call.
func (m *Metrics) RecordSourceRetry(source string) {
	m.SourceRetries.WithLabelValues(source).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordSourceError records a failed adapter call.
func (m *Metrics) RecordSourceError(source, kind string) {
	m.SourceErrors.WithLabelValues(source, kind).Inc()
}

// RecordRecordsNormalized records successfully normalized records.
func (m *Metrics) RecordRecordsNormalized(source string, count int) {
	m.RecordsNormalized.WithLabelValues(source).Add(float64(count))
}

// RecordRecordsDropped records records dropped for lacking a title.
func (m *Metrics) RecordRecordsDropped(source string, count int) {
	m.RecordsDropped.WithLabelValues(source).Add(float64(count))
}

// RecordRecordsMalformed records records with unreadable payloads.
func (m *Metrics) RecordRecordsMalformed(source string, count int) {
	m.RecordsMalformed.WithLabelValues(source).Add(float64(count))
}

// RecordDuplicateMerged records a record that joined an existing canonical record.
func (m *Metrics) RecordDuplicateMerged() {
	m.DuplicatesMerged.Inc()
}

// RecordExportWritten records an export file written in format.
func (m *Metrics) RecordExportWritten(format string) {
	m.ExportsWritten.WithLabelValues(format).Inc()
}

// RecordEventPublished records a delivered run event.
func (m *Metrics) RecordEventPublished() {
	m.EventsPublished.Inc()
}

// RecordEventFailed records a run event that could not be delivered.
func (m *Metrics) RecordEventFailed() {
	m.EventsFailed.Inc()
}
