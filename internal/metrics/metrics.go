package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jsonbench"

// Metrics holds the application counters. A nil *Metrics records nothing.
type Metrics struct {
	validationFailures *prometheus.CounterVec
	storageErrors      *prometheus.CounterVec
	storageDuration    *prometheus.HistogramVec
	projectionDefects  prometheus.Counter
	retentionDeleted   prometheus.Counter
	retentionRuns      *prometheus.CounterVec
}

// New creates the application metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Request bodies rejected by validation, by endpoint.",
		}, []string{"endpoint"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Failed storage operations, by operation.",
		}, []string{"operation"}),
		storageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "How long in seconds storage operations take.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}, []string{"operation"}),
		projectionDefects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_defects_total",
			Help:      "Typed payloads that could not be projected into a JSON tree.",
		}),
		retentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "deleted_records_total",
			Help:      "Records removed by retention cleanup.",
		}),
		retentionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "runs_total",
			Help:      "Retention cleanup runs, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.validationFailures,
		m.storageErrors,
		m.storageDuration,
		m.projectionDefects,
		m.retentionDeleted,
		m.retentionRuns,
	)
	return m
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// RegisterDBStats exports connection pool statistics for db.
func RegisterDBStats(reg prometheus.Registerer, db *sql.DB, dbName string) error {
	return reg.Register(collectors.NewDBStatsCollector(db, dbName))
}

// Handler serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// ValidationFailed counts a rejected request body.
func (m *Metrics) ValidationFailed(endpoint string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(endpoint).Inc()
}

// ObserveStorage records the duration and outcome of a storage operation.
func (m *Metrics) ObserveStorage(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.storageDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.storageErrors.WithLabelValues(operation).Inc()
	}
}

// ProjectionDefect counts a payload that failed projection.
func (m *Metrics) ProjectionDefect() {
	if m == nil {
		return
	}
	m.projectionDefects.Inc()
}

// RetentionRun records one cleanup pass.
func (m *Metrics) RetentionRun(deleted int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.retentionRuns.WithLabelValues("error").Inc()
		return
	}
	m.retentionRuns.WithLabelValues("ok").Inc()
	m.retentionDeleted.Add(float64(deleted))
}
