package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/polisai/layersync/pkg/association"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the daemon. It implements
// association.Recorder.
type Metrics struct {
	// Association metrics
	entries              *prometheus.GaugeVec
	entriesCreated       *prometheus.CounterVec
	entriesDestroyed     *prometheus.CounterVec
	constructionFailures *prometheus.CounterVec
	deferredCompletions  *prometheus.CounterVec
	resyncDuration       *prometheus.HistogramVec
	selectionChanges     *prometheus.CounterVec

	// Manifest metrics
	manifestReloads *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

var _ association.Recorder = (*Metrics)(nil)

// NewMetrics creates a new metrics instance on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "layersync_association_entries",
				Help: "Number of auxiliary objects held per association cache",
			},
			[]string{"cache"},
		),

		entriesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layersync_association_created_total",
				Help: "Total number of auxiliary objects created",
			},
			[]string{"cache"},
		),

		entriesDestroyed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layersync_association_destroyed_total",
				Help: "Total number of auxiliary objects disposed",
			},
			[]string{"cache"},
		),

		constructionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layersync_association_construction_failures_total",
				Help: "Total number of factory failures during resync",
			},
			[]string{"cache"},
		),

		deferredCompletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layersync_association_deferred_completions_total",
				Help: "Total number of deferred constructions completed by result",
			},
			[]string{"cache", "result"},
		),

		resyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "layersync_association_resync_duration_seconds",
				Help:    "Resync latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"cache"},
		),

		selectionChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layersync_association_selection_changes_total",
				Help: "Total number of active layer changes by resulting state",
			},
			[]string{"cache", "state"},
		),

		manifestReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layersync_manifest_reloads_total",
				Help: "Total number of manifest reload attempts by status",
			},
			[]string{"status"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layersync_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "layersync_http_request_duration_seconds",
				Help:    "Admin HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.entries,
		m.entriesCreated,
		m.entriesDestroyed,
		m.constructionFailures,
		m.deferredCompletions,
		m.resyncDuration,
		m.selectionChanges,
		m.manifestReloads,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// EntryCreated implements association.Recorder.
func (m *Metrics) EntryCreated(_ context.Context, cache string) {
	m.entriesCreated.WithLabelValues(cache).Inc()
	m.entries.WithLabelValues(cache).Inc()
}

// EntryDestroyed implements association.Recorder.
func (m *Metrics) EntryDestroyed(_ context.Context, cache string) {
	m.entriesDestroyed.WithLabelValues(cache).Inc()
	m.entries.WithLabelValues(cache).Dec()
}

// ConstructionFailed implements association.Recorder.
func (m *Metrics) ConstructionFailed(_ context.Context, cache string) {
	m.constructionFailures.WithLabelValues(cache).Inc()
}

// DeferredCompleted implements association.Recorder. A failed completion
// drops its entry.
func (m *Metrics) DeferredCompleted(_ context.Context, cache string, ok bool) {
	m.deferredCompletions.WithLabelValues(cache, result(ok)).Inc()
	if !ok {
		m.entries.WithLabelValues(cache).Dec()
	}
}

// ResyncCompleted implements association.Recorder.
func (m *Metrics) ResyncCompleted(_ context.Context, cache string, entries int, duration time.Duration) {
	m.entries.WithLabelValues(cache).Set(float64(entries))
	m.resyncDuration.WithLabelValues(cache).Observe(duration.Seconds())
}

// SelectionChanged implements association.Recorder.
func (m *Metrics) SelectionChanged(_ context.Context, cache string, active bool) {
	m.selectionChanges.WithLabelValues(cache, selectionState(active)).Inc()
}

// RecordManifestReload records a manifest reload attempt
func (m *Metrics) RecordManifestReload(status string) {
	m.manifestReloads.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware creates HTTP middleware that records request metrics
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, endpointName(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// endpointName keeps the endpoint label bounded.
func endpointName(path string) string {
	switch strings.TrimSuffix(path, "/") {
	case "/healthz":
		return "healthz"
	case "/metrics":
		return "metrics"
	case "/layers":
		return "layers"
	case "/select":
		return "select"
	case "/frame":
		return "frame"
	default:
		return "unknown"
	}
}
