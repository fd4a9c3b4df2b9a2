package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper search service.
// Metrics are organized by subsystem: searches, sources, deduplication, ranking,
// summaries, LLM calls, cache and background tasks. Record methods are safe to
// call on a nil *Metrics so components can run without instrumentation.
type Metrics struct {
	// SearchRequests counts search requests, labeled by cache outcome (hit, miss).
	SearchRequests *prometheus.CounterVec

	// SearchOutcomes counts computed searches, labeled by outcome (ok, empty, no_results, error).
	SearchOutcomes *prometheus.CounterVec

	// SearchDuration observes end-to-end search latency in seconds.
	SearchDuration prometheus.Histogram

	// SourceRequestsTotal counts provider searches, labeled by source.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed provider searches, labeled by source and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes provider search duration in seconds, labeled by source.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts 429 responses from providers, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// PapersPerSearch observes papers returned per provider call, labeled by source.
	PapersPerSearch *prometheus.HistogramVec

	// PapersDuplicate counts records merged away during deduplication.
	PapersDuplicate prometheus.Counter

	// PapersUnique observes the number of unique papers per search.
	PapersUnique prometheus.Histogram

	// RankingRuns counts ranking passes, labeled by mode (llm, fallback).
	RankingRuns *prometheus.CounterVec

	// SummaryOutcomes counts summary lookups, labeled by outcome
	// (cached, generated, skipped, timeout, failed).
	SummaryOutcomes *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// CacheOperations counts cache operations, labeled by namespace and result (hit, miss, set, error).
	CacheOperations *prometheus.CounterVec

	// BackgroundTasks counts supervised background tasks, labeled by state
	// (started, succeeded, failed, panicked, rejected).
	BackgroundTasks *prometheus.CounterVec

	// BackgroundTasksActive tracks background tasks currently running or queued.
	BackgroundTasksActive prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// The namespace is used as a prefix for all metric names. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Searches
		SearchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests by cache outcome",
		}, []string{"cache"}),
		SearchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_outcomes_total",
			Help:      "Total number of computed searches by outcome",
		}, []string{"outcome"}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),

		// Sources
		SourceRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of provider search calls",
		}, []string{"source"}),
		SourceRequestsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed provider search calls",
		}, []string{"source", "error_type"}),
		SourceRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Provider search call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		SourceRateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limited provider responses",
		}, []string{"source"}),
		PapersPerSearch: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_source_call",
			Help:      "Number of papers returned per provider call",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"source"}),

		// Deduplication
		PapersDuplicate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of records merged during deduplication",
		}),
		PapersUnique: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_unique_per_search",
			Help:      "Number of unique papers per search after deduplication",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 200},
		}),

		// Ranking and summaries
		RankingRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_runs_total",
			Help:      "Total number of ranking passes by mode",
		}, []string{"mode"}),
		SummaryOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_outcomes_total",
			Help:      "Total number of summary lookups by outcome",
		}, []string{"outcome"}),

		// LLM
		LLMRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM API request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		}, []string{"operation", "model"}),

		// Cache
		CacheOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations by namespace and result",
		}, []string{"namespace", "result"}),

		// Background tasks
		BackgroundTasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_tasks_total",
			Help:      "Total number of supervised background tasks by state",
		}, []string{"state"}),
		BackgroundTasksActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "background_tasks_active",
			Help:      "Number of background tasks currently queued or running",
		}),
	}
}

// RecordSearchRequest records an incoming search and whether it was served from cache.
func (m *Metrics) RecordSearchRequest(cached bool) {
	if m == nil {
		return
	}
	label := "miss"
	if cached {
		label = "hit"
	}
	m.SearchRequests.WithLabelValues(label).Inc()
}

// RecordSearchOutcome records the outcome and duration of a computed search.
func (m *Metrics) RecordSearchOutcome(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SearchOutcomes.WithLabelValues(outcome).Inc()
	m.SearchDuration.Observe(duration.Seconds())
}

// RecordSourceRequest records a completed provider call.
func (m *Metrics) RecordSourceRequest(source string, papers int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(papers))
}

// RecordSourceFailure records a failed provider call.
func (m *Metrics) RecordSourceFailure(source, errorType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source).Inc()
	m.SourceRequestsFailed.WithLabelValues(source, errorType).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSourceRateLimited records a 429 response from a provider.
func (m *Metrics) RecordSourceRateLimited(source string) {
	if m == nil {
		return
	}
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordDedup records the result of one deduplication pass.
func (m *Metrics) RecordDedup(input, unique int) {
	if m == nil {
		return
	}
	if input > unique {
		m.PapersDuplicate.Add(float64(input - unique))
	}
	m.PapersUnique.Observe(float64(unique))
}

// RecordRanking records a ranking pass in the given mode.
func (m *Metrics) RecordRanking(mode string) {
	if m == nil {
		return
	}
	m.RankingRuns.WithLabelValues(mode).Inc()
}

// RecordSummary records a summary lookup outcome.
func (m *Metrics) RecordSummary(outcome string) {
	if m == nil {
		return
	}
	m.SummaryOutcomes.WithLabelValues(outcome).Inc()
}

// RecordLLMRequest records a completed LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, duration time.Duration) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(duration.Seconds())
}

// RecordLLMFailure records a failed LLM request.
func (m *Metrics) RecordLLMFailure(operation, model, errorType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(duration.Seconds())
}

// RecordCacheOperation records a cache hit, miss, set or error for a namespace.
func (m *Metrics) RecordCacheOperation(namespace, result string) {
	if m == nil {
		return
	}
	m.CacheOperations.WithLabelValues(namespace, result).Inc()
}

// RecordBackgroundTask records a background task state transition.
func (m *Metrics) RecordBackgroundTask(state string) {
	if m == nil {
		return
	}
	m.BackgroundTasks.WithLabelValues(state).Inc()
}

// SetBackgroundTasksActive sets the active background task gauge.
func (m *Metrics) SetBackgroundTasksActive(n int) {
	if m == nil {
		return
	}
	m.BackgroundTasksActive.Set(float64(n))
}
