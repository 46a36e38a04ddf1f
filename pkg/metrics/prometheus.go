// Package metrics provides Prometheus metrics for the sensorboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the sensorboard service.
type Manager struct {
	namespace         string
	subsystem         string
	histogramBuckets  []float64
	constLabels       prometheus.Labels
	runtimeCollectors bool
	registry          prometheus.Registerer

	// Ingestion
	readingsIngested *prometheus.CounterVec
	readingsRejected *prometheus.CounterVec
	latestValue      prometheus.Gauge
	authFailures     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryRecordsTotal  prometheus.Gauge
	repositoryAppendLatency *prometheus.HistogramVec
	repositoryQueryLatency  *prometheus.HistogramVec

	// Side channels
	cacheLookups  *prometheus.CounterVec
	cacheErrors   prometheus.Counter
	publishes     prometheus.Counter
	publishErrors prometheus.Counter

	// Graphs
	graphRenderLatency *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to keep the exposition limited to what we register.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry), WithRuntimeCollectors(true))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sensorboard",
		subsystem:        "",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.readingsIngested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "readings_ingested_total",
		Help:        "Total number of readings stored, by mode",
		ConstLabels: m.constLabels,
	}, []string{"mode"})

	m.readingsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "readings_rejected_total",
		Help:        "Total number of ingestion attempts rejected, by reason",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.latestValue = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "latest_reading_value",
		Help:        "Value of the most recently ingested reading",
		ConstLabels: m.constLabels,
	})

	m.authFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "auth_failures_total",
		Help:        "Total number of rejected requests by guard stage",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryRecordsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_records_total",
		Help:        "Number of readings held by the store",
		ConstLabels: m.constLabels,
	})

	m.repositoryAppendLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_append_latency_milliseconds",
		Help:        "Latency of store appends in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"driver"})

	m.repositoryQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_query_latency_milliseconds",
		Help:        "Latency of store queries in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"driver"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_lookups_total",
		Help:        "Latest-reading cache lookups by result",
		ConstLabels: m.constLabels,
	}, []string{"result"})

	m.cacheErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_errors_total",
		Help:        "Latest-reading cache failures",
		ConstLabels: m.constLabels,
	})

	m.publishes = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "readings_published_total",
		Help:        "Readings published to the message broker",
		ConstLabels: m.constLabels,
	})

	m.publishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "publish_errors_total",
		Help:        "Failed reading publications",
		ConstLabels: m.constLabels,
	})

	m.graphRenderLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "graph_render_latency_milliseconds",
		Help:        "Graph rendering latency in milliseconds by period",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"period"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Total number of errors by component and type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})

	if m.runtimeCollectors {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// RecordReadingIngested increments the stored readings counter for mode.
func RecordReadingIngested(mode string) {
	globalManager.readingsIngested.WithLabelValues(mode).Inc()
}

// RecordReadingRejected increments the rejected readings counter.
func RecordReadingRejected(reason string) {
	globalManager.readingsRejected.WithLabelValues(reason).Inc()
}

// UpdateLatestValue sets the latest reading gauge.
func UpdateLatestValue(v float64) {
	globalManager.latestValue.Set(v)
}

// RecordAuthFailure increments the auth failure counter.
func RecordAuthFailure(reason string) {
	globalManager.authFailures.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateRepositoryRecordsTotal sets the number of stored readings.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecordsTotal.Set(float64(count))
}

// RecordRepositoryAppendLatency records store append latency.
func RecordRepositoryAppendLatency(driver string, latencyMs float64) {
	globalManager.repositoryAppendLatency.WithLabelValues(driver).Observe(latencyMs)
}

// RecordRepositoryQueryLatency records store query latency.
func RecordRepositoryQueryLatency(driver string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(driver).Observe(latencyMs)
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordCacheError increments the cache error counter.
func RecordCacheError() {
	globalManager.cacheErrors.Inc()
}

// RecordPublish increments the published readings counter.
func RecordPublish() {
	globalManager.publishes.Inc()
}

// RecordPublishError increments the publish error counter.
func RecordPublishError() {
	globalManager.publishErrors.Inc()
}

// RecordGraphRenderLatency records graph render latency.
func RecordGraphRenderLatency(period string, latencyMs float64) {
	globalManager.graphRenderLatency.WithLabelValues(period).Observe(latencyMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
