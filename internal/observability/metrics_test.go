package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_harvester_new")

	assert.NotNil(t, m.RunsStarted)
	assert.NotNil(t, m.RunsCompleted)
	assert.NotNil(t, m.RunsFailed)
	assert.NotNil(t, m.RunsCancelled)
	assert.NotNil(t, m.RunDuration)
	assert.NotNil(t, m.StreamsCompleted)
	assert.NotNil(t, m.StreamsFailed)
	assert.NotNil(t, m.PagesFetched)
	assert.NotNil(t, m.SourceRetries)
	assert.NotNil(t, m.SourceErrors)
	assert.NotNil(t, m.RecordsFetched)
	assert.NotNil(t, m.RecordsMalformed)
	assert.NotNil(t, m.CanonicalRecords)
	assert.NotNil(t, m.ExportsWritten)
	assert.NotNil(t, m.EventsPublished)
}

func TestRecordRunStarted(t *testing.T) {
	m := NewMetrics("test_run_started")

	initial := testutil.ToFloat64(m.RunsStarted)
	m.RecordRunStarted()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.RunsStarted))
}

func TestRecordRunCompleted(t *testing.T) {
	m := NewMetrics("test_run_completed")

	m.RecordRunCompleted(12.5, 340)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsCompleted))
	assert.Equal(t, float64(340), testutil.ToFloat64(m.CanonicalRecords))

	histCount, err := getHistogramSampleCount(m.RunDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordRunFailed(t *testing.T) {
	m := NewMetrics("test_run_failed")

	m.RecordRunFailed(0.1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsFailed))
}

func TestRecordRunCancelled(t *testing.T) {
	m := NewMetrics("test_run_cancelled")

	m.RecordRunCancelled()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsCancelled))
}

func TestRecordStreams(t *testing.T) {
	m := NewMetrics("test_streams")

	m.RecordStreamCompleted("pubmed", 3)
	m.RecordStreamCompleted("pubmed", 4)
	m.RecordStreamFailed("core", 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.StreamsCompleted.WithLabelValues("pubmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StreamsFailed.WithLabelValues("core")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StreamDuration))
}

func TestRecordPageFetched(t *testing.T) {
	m := NewMetrics("test_page_fetched")

	m.RecordPageFetched("openalex", 200, 0.4)
	m.RecordPageFetched("openalex", 15, 0.2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.PagesFetched.WithLabelValues("openalex")))
	assert.Equal(t, float64(215), testutil.ToFloat64(m.RecordsFetched.WithLabelValues("openalex")))
}

func TestRecordSourceFailures(t *testing.T) {
	m := NewMetrics("test_source_failures")

	m.RecordSourceRetry("europe_pmc")
	m.RecordSourceRateLimited("europe_pmc")
	m.RecordSourceError("springer", "source_auth")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRetries.WithLabelValues("europe_pmc")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRateLimited.WithLabelValues("europe_pmc")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceErrors.WithLabelValues("springer", "source_auth")))
}

func TestRecordRecordOutcomes(t *testing.T) {
	m := NewMetrics("test_record_outcomes")

	m.RecordRecordsNormalized("biorxiv", 8)
	m.RecordRecordsDropped("biorxiv", 1)
	m.RecordRecordsMalformed("biorxiv", 2)
	m.RecordDuplicateMerged()

	assert.Equal(t, float64(8), testutil.ToFloat64(m.RecordsNormalized.WithLabelValues("biorxiv")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecordsDropped.WithLabelValues("biorxiv")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RecordsMalformed.WithLabelValues("biorxiv")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DuplicatesMerged))
}

func TestRecordExportsAndEvents(t *testing.T) {
	m := NewMetrics("test_exports_events")

	m.RecordExportWritten("bibtex")
	m.RecordEventPublished()
	m.RecordEventFailed()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExportsWritten.WithLabelValues("bibtex")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsFailed))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
