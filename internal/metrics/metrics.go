// Package metrics provides Prometheus metrics for the retail analytics API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "retail"

// Metrics holds every collector the service records to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Ingestion
	RowsReceived      prometheus.Counter
	RowsPromoted      prometheus.Counter
	RowsHeld          prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	IngestFailures    *prometheus.CounterVec
	IngestDuration    prometheus.Histogram

	// Reports
	ReportDuration *prometheus.HistogramVec
	ReportCache    *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RowsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_rows_received_total",
		Help:      "Rows received by ingestion requests",
	})
	m.RowsPromoted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_rows_promoted_total",
		Help:      "Rows promoted into the analytic store",
	})
	m.RowsHeld = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_rows_held_total",
		Help:      "Rows held for review after failing validation",
	})
	m.DuplicatesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_duplicates_skipped_total",
		Help:      "Valid rows skipped because their hash was already promoted",
	})
	m.IngestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Failed ingestion requests by stage",
		},
		[]string{"stage"}, // "parse", "stage", "promote"
	)
	m.IngestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "Time to ingest one request",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})

	m.ReportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time to build a report",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"report"},
	)
	m.ReportCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_lookups_total",
			Help:      "Report cache lookups by result",
		},
		[]string{"report", "result"}, // "hit", "miss"
	)

	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	m.HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	m.registry.MustRegister(
		m.RowsReceived,
		m.RowsPromoted,
		m.RowsHeld,
		m.DuplicatesSkipped,
		m.IngestFailures,
		m.IngestDuration,
		m.ReportDuration,
		m.ReportCache,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordIngest adds the row counts of one completed ingestion.
func (m *Metrics) RecordIngest(received, promoted, held, skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RowsReceived.Add(float64(received))
	m.RowsPromoted.Add(float64(promoted))
	m.RowsHeld.Add(float64(held))
	m.DuplicatesSkipped.Add(float64(skipped))
	m.IngestDuration.Observe(duration.Seconds())
}

// RecordIngestFailure counts a failed ingestion at the given stage.
func (m *Metrics) RecordIngestFailure(stage string) {
	if m == nil {
		return
	}
	m.IngestFailures.WithLabelValues(stage).Inc()
}

// RecordReport records how long a report took to build.
func (m *Metrics) RecordReport(report string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ReportDuration.WithLabelValues(report).Observe(duration.Seconds())
}

// RecordCacheLookup counts a report cache hit or miss.
func (m *Metrics) RecordCacheLookup(report string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ReportCache.WithLabelValues(report, result).Inc()
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
