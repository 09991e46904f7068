package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvloznov/openbanking-mcp/internal/metrics"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	namespace string

	fetches       *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	rowsDropped   *prometheus.CounterVec
	exports       *prometheus.CounterVec
	validationErr *prometheus.CounterVec

	retentionDeleted prometheus.Counter
	retentionFreed   prometheus.Counter

	fetchLatency  *prometheus.HistogramVec
	exportLatency prometheus.Histogram
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	pc := &PrometheusCollector{
		namespace: namespace,
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total number of raw record fetches per source",
			},
			[]string{"source"},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Total number of failed fetches per source",
			},
			[]string{"source"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fallbacks_total",
				Help:      "Total number of fallbacks from one source to the next",
			},
			[]string{"from", "to"},
		),
		rowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_dropped_total",
				Help:      "Total number of raw records dropped during normalization",
			},
			[]string{"source"},
		),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of CSV exports by status",
			},
			[]string{"status"},
		),
		validationErr: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of output validation failures per operation",
			},
			[]string{"operation"},
		),
		retentionDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retention_files_deleted_total",
				Help:      "Total number of expired CSV files deleted by the retention sweeper",
			},
		),
		retentionFreed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retention_bytes_freed_total",
				Help:      "Total bytes freed by the retention sweeper",
			},
		),
		fetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Raw record fetch latency per source",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"source"},
		),
		exportLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "CSV export latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
		),
	}

	return pc
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		pc.fetches,
		pc.fetchErrors,
		pc.fallbacks,
		pc.rowsDropped,
		pc.exports,
		pc.validationErr,
		pc.retentionDeleted,
		pc.retentionFreed,
		pc.fetchLatency,
		pc.exportLatency,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordFetch records a fetch attempt against one source.
func (pc *PrometheusCollector) RecordFetch(source string, success bool, duration time.Duration) {
	pc.fetches.WithLabelValues(source).Inc()
	if !success {
		pc.fetchErrors.WithLabelValues(source).Inc()
	}
	pc.fetchLatency.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordFallback records a fallback from one source to the next in the chain.
func (pc *PrometheusCollector) RecordFallback(from, to string) {
	pc.fallbacks.WithLabelValues(from, to).Inc()
}

// RecordRowDropped records a raw record dropped during normalization.
func (pc *PrometheusCollector) RecordRowDropped(source string) {
	pc.rowsDropped.WithLabelValues(source).Inc()
}

// RecordExport records a CSV export operation.
func (pc *PrometheusCollector) RecordExport(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.exports.WithLabelValues(status).Inc()
	pc.exportLatency.Observe(duration.Seconds())
}

// RecordValidationFailure records an output validation failure.
func (pc *PrometheusCollector) RecordValidationFailure(operation string) {
	pc.validationErr.WithLabelValues(operation).Inc()
}

// RecordRetentionSweep records the outcome of one retention sweep.
func (pc *PrometheusCollector) RecordRetentionSweep(filesDeleted int, bytesFreed int64) {
	pc.retentionDeleted.Add(float64(filesDeleted))
	pc.retentionFreed.Add(float64(bytesFreed))
}

var _ metrics.Collector = (*PrometheusCollector)(nil)
