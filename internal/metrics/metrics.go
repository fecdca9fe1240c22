// Package metrics exposes Prometheus instrumentation for the engine:
// HTTP traffic, document processing and eligibility evaluation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and every collector the engine
// reports to it.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	documentsTotal    *prometheus.CounterVec
	documentDuration  prometheus.Histogram
	documentsInFlight prometheus.Gauge

	evaluationsTotal *prometheus.CounterVec
	predictionsTotal *prometheus.CounterVec
}

// New creates a metrics set backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "donor_engine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "donor_engine",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "donor_engine",
			Subsystem: "worker",
			Name:      "documents_processed_total",
			Help:      "Total processed documents by final status.",
		},
		[]string{"status"},
	)
	documentDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "donor_engine",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)
	documentsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "donor_engine",
			Subsystem: "worker",
			Name:      "documents_in_flight",
			Help:      "Number of documents currently being processed.",
		},
	)

	evaluationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "donor_engine",
			Subsystem: "evaluation",
			Name:      "runs_total",
			Help:      "Total eligibility evaluation runs by result.",
		},
		[]string{"result"},
	)
	predictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "donor_engine",
			Subsystem: "prediction",
			Name:      "requests_total",
			Help:      "Total outcome prediction requests by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(requestTotal, requestDuration,
		documentsTotal, documentDuration, documentsInFlight,
		evaluationsTotal, predictionsTotal)

	return &Metrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		documentsTotal:    documentsTotal,
		documentDuration:  documentDuration,
		documentsInFlight: documentsInFlight,
		evaluationsTotal:  evaluationsTotal,
		predictionsTotal:  predictionsTotal,
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, path, status string, elapsed time.Duration) {
	m.requestTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// DocumentStarted marks a document entering processing.
func (m *Metrics) DocumentStarted() {
	m.documentsInFlight.Inc()
}

// DocumentFinished records one finished document.
func (m *Metrics) DocumentFinished(status string, elapsed time.Duration) {
	m.documentsInFlight.Dec()
	m.documentsTotal.WithLabelValues(status).Inc()
	m.documentDuration.Observe(elapsed.Seconds())
}

// EvaluationRun records one evaluation run outcome.
func (m *Metrics) EvaluationRun(result string) {
	m.evaluationsTotal.WithLabelValues(result).Inc()
}

// PredictionRequest records one prediction request outcome.
func (m *Metrics) PredictionRequest(result string) {
	m.predictionsTotal.WithLabelValues(result).Inc()
}
