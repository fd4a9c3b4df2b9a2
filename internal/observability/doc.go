// Package observability provides logging and metrics support for the paper
// search service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for searches, sources, ranking, summaries and cache
//   - Context helpers for propagating request identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger = observability.WithComponent(logger, "gateway")
//
// # Metrics
//
// Metrics are registered on the supplied registerer:
//
//	metrics := observability.NewMetrics("paper_search", prometheus.DefaultRegisterer)
//	metrics.RecordSearchRequest(false)
//	metrics.RecordSourceRequest("pubmed", 20, elapsed)
//
// All Record methods accept a nil receiver.
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	logger := observability.LoggerFromContext(ctx, base)
//
// # Standard Fields
//
//   - request_id: HTTP request identifier
//   - search_id: hashed search cache key
//   - component: emitting component
//   - source: paper source (semantic_scholar, pubmed, openalex)
//   - paper_id: paper identifier
//   - language: response language
package observability
