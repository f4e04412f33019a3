// Package observability provides logging and metrics support for the
// disease literature harvester.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for runs, fetch streams, sources and records
//   - Context helpers for propagating request and run IDs
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stderr",
//	})
//
// Add run and stream context to a logger:
//
//	logger = observability.WithRunContext(logger, runID)
//	logger = observability.WithSourceContext(logger, "pubmed", "crohns")
//
// # Metrics
//
//	metrics := observability.NewMetrics("harvester")
//	metrics.RecordPageFetched("openalex", 200, 0.42)
//	metrics.RecordRecordsDropped("core", 3)
//
// # Standard Fields
//
//   - run_id: harvest run identifier
//   - request_id: HTTP request identifier
//   - source: literature source (pubmed, europe_pmc, openalex, ...)
//   - disease: disease topic of a fetch stream
//   - component: emitting subsystem
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
