// Package metrics provides Prometheus metrics for the rating engine and store sync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the process.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Rating replay
	gamesProcessed prometheus.Counter
	poolPlayers    *prometheus.GaugeVec
	modelLatency   prometheus.Histogram
	modelErrors    prometheus.Counter
	runDuration    prometheus.Histogram

	// Store synchronization
	syncRecords      *prometheus.CounterVec
	warmupFailures   *prometheus.CounterVec
	storeLatency     *prometheus.HistogramVec
	writerQueueDepth prometheus.Gauge
	writerWorkers    prometheus.Gauge

	// Exports
	exportFiles  prometheus.Counter
	exportErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry keeps Go runtime collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tourneyrank",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.gamesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "games_processed_total",
		Help:        "Total number of ledger games applied to the rating pools",
		ConstLabels: constLabels,
	})

	m.poolPlayers = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "pool_players",
		Help:        "Number of rated players per pool",
		ConstLabels: constLabels,
	}, []string{"pool"})

	m.modelLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "model_latency_milliseconds",
		Help:        "Latency of a single rating model invocation in milliseconds",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		ConstLabels: constLabels,
	})

	m.modelErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "model_errors_total",
		Help:        "Total number of rating model failures",
		ConstLabels: constLabels,
	})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of a full replay, sync and export run",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})

	m.syncRecords = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sync_records_total",
		Help:        "Store sync outcomes by entity family and outcome",
		ConstLabels: constLabels,
	}, []string{"family", "outcome"})

	m.warmupFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "warmup_failures_total",
		Help:        "Bulk reads that failed and degraded to an empty existing set",
		ConstLabels: constLabels,
	}, []string{"family"})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_latency_milliseconds",
		Help:        "External store call latency by family and operation",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"family", "operation"})

	m.writerQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "writer_queue_depth",
		Help:        "Pending store writes across all writer shards",
		ConstLabels: constLabels,
	})

	m.writerWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "writer_workers",
		Help:        "Number of running store writer workers",
		ConstLabels: constLabels,
	})

	m.exportFiles = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "export_files_total",
		Help:        "Local export artifacts written",
		ConstLabels: constLabels,
	})

	m.exportErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "export_errors_total",
		Help:        "Local export artifacts that failed to write",
		ConstLabels: constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordGameProcessed increments the processed games counter.
func RecordGameProcessed() {
	if !globalManager.enabled {
		return
	}
	globalManager.gamesProcessed.Inc()
}

// UpdatePoolPlayers sets the number of rated players in a pool.
func UpdatePoolPlayers(pool string, count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.poolPlayers.WithLabelValues(pool).Set(float64(count))
}

// RecordModelLatency records one rating model invocation.
func RecordModelLatency(d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.modelLatency.Observe(float64(d.Microseconds()) / 1000)
}

// RecordModelError increments the rating model failure counter.
func RecordModelError() {
	if !globalManager.enabled {
		return
	}
	globalManager.modelErrors.Inc()
}

// RecordRunDuration records the wall time of a full run.
func RecordRunDuration(d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.runDuration.Observe(d.Seconds())
}

// RecordSyncOutcome counts one reconciled record.
// Outcomes: inserted, updated, unchanged, failed, skipped.
func RecordSyncOutcome(family, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.syncRecords.WithLabelValues(family, outcome).Inc()
}

// RecordWarmupFailure counts a bulk read that degraded to an empty set.
func RecordWarmupFailure(family string) {
	if !globalManager.enabled {
		return
	}
	globalManager.warmupFailures.WithLabelValues(family).Inc()
}

// RecordStoreLatency records one external store call.
func RecordStoreLatency(family, operation string, d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(family, operation).Observe(float64(d.Microseconds()) / 1000)
}

// UpdateWriterQueueDepth sets the number of pending store writes.
func UpdateWriterQueueDepth(depth int) {
	if !globalManager.enabled {
		return
	}
	globalManager.writerQueueDepth.Set(float64(depth))
}

// UpdateWriterWorkers sets the number of running writer workers.
func UpdateWriterWorkers(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.writerWorkers.Set(float64(count))
}

// RecordExportFile counts one written export artifact.
func RecordExportFile() {
	if !globalManager.enabled {
		return
	}
	globalManager.exportFiles.Inc()
}

// RecordExportError counts one failed export artifact.
func RecordExportError() {
	if !globalManager.enabled {
		return
	}
	globalManager.exportErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the private Prometheus registry used by this package.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
