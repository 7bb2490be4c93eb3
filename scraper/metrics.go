package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for fetching, extraction and batches.
type Metrics struct {
	Registry          *prometheus.Registry
	AttemptsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	SessionRefreshes  prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	ExtractionsFailed *prometheus.CounterVec
	RecordsTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kdp_fetch_attempts_total",
			Help: "Fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kdp_fetch_request_duration_seconds",
			Help:    "HTTP request latency for product page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	refreshes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kdp_session_refreshes_total",
			Help: "Identity refreshes triggered by challenge pages.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kdp_fetch_errors_total",
			Help: "Fetch errors by type.",
		},
		[]string{"error_type"},
	)
	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kdp_extraction_failures_total",
			Help: "Fields that degraded to absent, by field.",
		},
		[]string{"field"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kdp_records_total",
			Help: "Catalog records processed, by final status.",
		},
		[]string{"status"},
	)

	registry.MustRegister(attempts, requestDuration, refreshes, errorsTotal, extractions, records)

	return &Metrics{
		Registry:          registry,
		AttemptsTotal:     attempts,
		RequestDuration:   requestDuration,
		SessionRefreshes:  refreshes,
		ErrorsTotal:       errorsTotal,
		ExtractionsFailed: extractions,
		RecordsTotal:      records,
	}
}

// IncAttempt increments the attempts counter for an outcome.
func (m *Metrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRefresh increments the session refresh counter.
func (m *Metrics) IncRefresh() {
	if m == nil {
		return
	}
	m.SessionRefreshes.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncExtractionFailure counts a field that came back absent because of an error.
func (m *Metrics) IncExtractionFailure(field string) {
	if m == nil {
		return
	}
	m.ExtractionsFailed.WithLabelValues(field).Inc()
}

// IncRecord counts a catalog record reaching status.
func (m *Metrics) IncRecord(status string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(status).Inc()
}
