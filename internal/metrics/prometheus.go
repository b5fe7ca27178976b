package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the Kaia wallet tracker
type PrometheusMetrics struct {
	// Sweep metrics
	SweepsTotal          prometheus.Counter
	SweepErrorsTotal     prometheus.Counter
	SweepDuration        prometheus.Histogram
	AddressFailuresTotal prometheus.Counter
	TransactionsDetected prometheus.Counter
	CheckpointAdvances   prometheus.Counter
	CheckpointFailures   prometheus.Counter

	// Feed metrics
	FeedRequestsTotal   *prometheus.CounterVec
	FeedRequestDuration *prometheus.HistogramVec

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	NotificationDuration      *prometheus.HistogramVec

	// Bot metrics
	BotCommandsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge

	// Tracking metrics
	TrackedAddresses prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		// Sweep metrics
		SweepsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kaia_tracker_sweeps_total",
				Help: "Total number of poller sweeps completed",
			},
		),

		SweepErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kaia_tracker_sweep_errors_total",
				Help: "Total number of sweeps aborted by a panic or snapshot failure",
			},
		),

		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kaia_tracker_sweep_duration_seconds",
				Help:    "Time spent on a full sweep over all tracked addresses",
				Buckets: prometheus.DefBuckets,
			},
		),

		AddressFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kaia_tracker_address_failures_total",
				Help: "Total number of address-level feed failures during sweeps",
			},
		),

		TransactionsDetected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kaia_tracker_transactions_detected_total",
				Help: "Total number of new transactions detected",
			},
		),

		CheckpointAdvances: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kaia_tracker_checkpoint_advances_total",
				Help: "Total number of committed checkpoint advances",
			},
		),

		CheckpointFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kaia_tracker_checkpoint_failures_total",
				Help: "Total number of failed checkpoint writes",
			},
		),

		// Feed metrics
		FeedRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaia_tracker_feed_requests_total",
				Help: "Total number of Kaiascan API requests",
			},
			[]string{"endpoint", "status"},
		),

		FeedRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kaia_tracker_feed_request_duration_seconds",
				Help:    "Duration of Kaiascan API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		// Storage metrics
		DatabaseOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaia_tracker_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kaia_tracker_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		// Notification metrics
		NotificationsSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaia_tracker_notifications_sent_total",
				Help: "Total number of notifications sent",
			},
			[]string{"channel", "type"},
		),

		NotificationFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaia_tracker_notification_failures_total",
				Help: "Total number of failed notifications",
			},
			[]string{"channel", "type", "error"},
		),

		NotificationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kaia_tracker_notification_duration_seconds",
				Help:    "Duration of notification delivery",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel", "type"},
		),

		// Bot metrics
		BotCommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaia_tracker_bot_commands_total",
				Help: "Total number of bot commands handled",
			},
			[]string{"command", "status"},
		),

		// Cache metrics
		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaia_tracker_cache_hits_total",
				Help: "Total number of lookup cache hits",
			},
			[]string{"key_type"},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaia_tracker_cache_misses_total",
				Help: "Total number of lookup cache misses",
			},
			[]string{"key_type"},
		),

		// API metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaia_tracker_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kaia_tracker_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Application health metrics
		ApplicationUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kaia_tracker_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kaia_tracker_component_health",
				Help: "Health status of application components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kaia_tracker_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kaia_tracker_goroutines",
				Help: "Number of running goroutines",
			},
		),

		// Tracking metrics
		TrackedAddresses: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kaia_tracker_tracked_addresses",
				Help: "Number of tracked (subscriber, address) rows",
			},
		),
	}
}

// RecordSweep records a completed sweep
func (m *PrometheusMetrics) RecordSweep(duration time.Duration) {
	m.SweepsTotal.Inc()
	m.SweepDuration.Observe(duration.Seconds())
}

// RecordSweepError records a sweep aborted by a panic or snapshot failure
func (m *PrometheusMetrics) RecordSweepError() {
	m.SweepErrorsTotal.Inc()
}

// RecordAddressFailure records an address-level feed failure
func (m *PrometheusMetrics) RecordAddressFailure() {
	m.AddressFailuresTotal.Inc()
}

// RecordTransactionsDetected records newly detected transactions
func (m *PrometheusMetrics) RecordTransactionsDetected(count int) {
	m.TransactionsDetected.Add(float64(count))
}

// RecordCheckpointAdvance records a committed checkpoint advance
func (m *PrometheusMetrics) RecordCheckpointAdvance() {
	m.CheckpointAdvances.Inc()
}

// RecordCheckpointFailure records a failed checkpoint write
func (m *PrometheusMetrics) RecordCheckpointFailure() {
	m.CheckpointFailures.Inc()
}

// RecordFeedRequest records a Kaiascan API request
func (m *PrometheusMetrics) RecordFeedRequest(endpoint, status string, duration time.Duration) {
	m.FeedRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.FeedRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordNotificationSent records a sent notification
func (m *PrometheusMetrics) RecordNotificationSent(channel, notificationType string, duration time.Duration) {
	m.NotificationsSentTotal.WithLabelValues(channel, notificationType).Inc()
	m.NotificationDuration.WithLabelValues(channel, notificationType).Observe(duration.Seconds())
}

// RecordNotificationFailure records a failed notification
func (m *PrometheusMetrics) RecordNotificationFailure(channel, notificationType, errorType string) {
	m.NotificationFailuresTotal.WithLabelValues(channel, notificationType, errorType).Inc()
}

// RecordBotCommand records a handled bot command
func (m *PrometheusMetrics) RecordBotCommand(command, status string) {
	m.BotCommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordCacheHit records a lookup cache hit
func (m *PrometheusMetrics) RecordCacheHit(keyType string) {
	m.CacheHitsTotal.WithLabelValues(keyType).Inc()
}

// RecordCacheMiss records a lookup cache miss
func (m *PrometheusMetrics) RecordCacheMiss(keyType string) {
	m.CacheMissesTotal.WithLabelValues(keyType).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}

// UpdateTrackedAddresses updates the tracked rows gauge
func (m *PrometheusMetrics) UpdateTrackedAddresses(count int) {
	m.TrackedAddresses.Set(float64(count))
}
