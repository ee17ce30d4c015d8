// Package metrics provides Prometheus metrics for the audiomatch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recommendation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomePartial  = "partial"
	OutcomeInvalid  = "invalid"
	OutcomeUpstream = "upstream_error"
	OutcomeCanceled = "canceled"
	OutcomeCached   = "cached"
)

// Manager manages all Prometheus metrics for the audiomatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engine
	recommendations        *prometheus.CounterVec
	recommendationDuration prometheus.Histogram
	redistributions        prometheus.Counter
	probes                 *prometheus.CounterVec
	candidatesExcluded     *prometheus.CounterVec
	autoSuggestions        prometheus.Counter

	// Catalog
	catalogQueryDuration *prometheus.HistogramVec
	catalogErrors        *prometheus.CounterVec
	catalogComponents    *prometheus.GaugeVec
	breakerState         *prometheus.GaugeVec
	breakerRequests      *prometheus.CounterVec

	// Cache
	cacheRequests *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "audiomatch",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.recommendations = m.counterVec("recommendations_total",
		"Recommendation requests by outcome", "outcome")
	m.recommendationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recommendation_duration_milliseconds",
		Help:      "End-to-end recommendation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.redistributions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "allocation_redistributions_total",
		Help:      "Allocations that moved budget away from unavailable categories",
	})
	m.probes = m.counterVec("availability_probes_total",
		"Availability probes by category and result", "category", "result")
	m.candidatesExcluded = m.counterVec("candidates_excluded_total",
		"Candidates dropped during filtering by category and reason", "category", "reason")
	m.autoSuggestions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "amplifier_autosuggestions_total",
		Help:      "Responses that carried an auto-suggested amplifier shortlist",
	})

	m.catalogQueryDuration = m.histogramVec("catalog_query_duration_milliseconds",
		"Catalog query latency in milliseconds by backend and operation", "backend", "op")
	m.catalogErrors = m.counterVec("catalog_errors_total",
		"Catalog query failures by backend and operation", "backend", "op")
	m.catalogComponents = m.gaugeVec("catalog_components",
		"Components loaded in the catalog by category", "category")
	m.breakerState = m.gaugeVec("circuit_breaker_state",
		"Circuit breaker state (0=closed, 1=half-open, 2=open)", "name")
	m.breakerRequests = m.counterVec("circuit_breaker_requests_total",
		"Requests passing through a circuit breaker by result", "name", "result")

	m.cacheRequests = m.counterVec("cache_requests_total",
		"Response cache lookups by backend and result", "backend", "result")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")
}

// RecordRecommendation counts a request outcome and its latency.
func (m *Manager) RecordRecommendation(outcome string, latencyMs float64) {
	m.recommendations.WithLabelValues(outcome).Inc()
	m.recommendationDuration.Observe(latencyMs)
}

// RecordRedistribution counts an allocation that moved budget.
func (m *Manager) RecordRedistribution() { m.redistributions.Inc() }

// RecordProbe counts an availability probe result (ok, empty, error).
func (m *Manager) RecordProbe(category, result string) {
	m.probes.WithLabelValues(category, result).Inc()
}

// RecordExclusions adds per-reason exclusion counts for a category.
func (m *Manager) RecordExclusions(category string, byReason map[string]int) {
	for reason, n := range byReason {
		if n > 0 {
			m.candidatesExcluded.WithLabelValues(category, reason).Add(float64(n))
		}
	}
}

// RecordAutoSuggestion counts an auto-suggested amplifier shortlist.
func (m *Manager) RecordAutoSuggestion() { m.autoSuggestions.Inc() }

// RecordCatalogQuery records a catalog call and, when failed, an error.
func (m *Manager) RecordCatalogQuery(backend, op string, latencyMs float64, failed bool) {
	m.catalogQueryDuration.WithLabelValues(backend, op).Observe(latencyMs)
	if failed {
		m.catalogErrors.WithLabelValues(backend, op).Inc()
	}
}

// SetCatalogComponents sets the loaded component count for a category.
func (m *Manager) SetCatalogComponents(category string, n int) {
	m.catalogComponents.WithLabelValues(category).Set(float64(n))
}

// SetBreakerState records the breaker state as 0, 1 or 2.
func (m *Manager) SetBreakerState(name string, state float64) {
	m.breakerState.WithLabelValues(name).Set(state)
}

// RecordBreakerRequest counts a request through a breaker (success, failure, rejected).
func (m *Manager) RecordBreakerRequest(name, result string) {
	m.breakerRequests.WithLabelValues(name, result).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Manager) RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(backend, result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByType records an error with type and severity labels.
func (m *Manager) RecordErrorByType(errorType, severity string) {
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Package-level helpers bound to the global manager.

// RecordRecommendation counts a request outcome and its latency.
func RecordRecommendation(outcome string, latencyMs float64) {
	globalManager.RecordRecommendation(outcome, latencyMs)
}

// RecordRedistribution counts an allocation that moved budget.
func RecordRedistribution() { globalManager.RecordRedistribution() }

// RecordProbe counts an availability probe result.
func RecordProbe(category, result string) { globalManager.RecordProbe(category, result) }

// RecordExclusions adds per-reason exclusion counts for a category.
func RecordExclusions(category string, byReason map[string]int) {
	globalManager.RecordExclusions(category, byReason)
}

// RecordAutoSuggestion counts an auto-suggested amplifier shortlist.
func RecordAutoSuggestion() { globalManager.RecordAutoSuggestion() }

// RecordCatalogQuery records a catalog call.
func RecordCatalogQuery(backend, op string, latencyMs float64, failed bool) {
	globalManager.RecordCatalogQuery(backend, op, latencyMs, failed)
}

// SetCatalogComponents sets the loaded component count for a category.
func SetCatalogComponents(category string, n int) { globalManager.SetCatalogComponents(category, n) }

// SetBreakerState records a breaker state.
func SetBreakerState(name string, state float64) { globalManager.SetBreakerState(name, state) }

// RecordBreakerRequest counts a request through a breaker.
func RecordBreakerRequest(name, result string) { globalManager.RecordBreakerRequest(name, result) }

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(backend string, hit bool) { globalManager.RecordCacheLookup(backend, hit) }

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.RecordErrorByType(errorType, severity)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
