// Package metrics exposes Prometheus collectors for pipeline runs and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aiblog"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	StageDuration    *prometheus.HistogramVec
	RefineIterations *prometheus.HistogramVec
	ResearchFindings *prometheus.CounterVec
	PostsPersisted   *prometheus.CounterVec
	ActiveRuns       prometheus.Gauge

	// HTTP
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by post kind and outcome",
		}, []string{"kind", "outcome"}),

		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"kind"}),

		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration by stage and outcome",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage", "outcome"}),

		RefineIterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refine_iterations",
			Help:      "Refinement loop iterations per run by stop reason",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}, []string{"stop_reason"}),

		ResearchFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_findings_total",
			Help:      "Grounded research findings by status",
		}, []string{"status"}),

		PostsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_persisted_total",
			Help:      "Post insert attempts by result",
		}, []string{"result"}),

		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Pipeline runs currently in progress",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RunsTotal,
		m.RunDuration,
		m.StageDuration,
		m.RefineIterations,
		m.ResearchFindings,
		m.PostsPersisted,
		m.ActiveRuns,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted marks a run as in progress and returns a func that records its end.
func (m *Metrics) RunStarted(kind string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.ActiveRuns.Inc()
	return func(outcome string) {
		m.ActiveRuns.Dec()
		m.RunsTotal.WithLabelValues(kind, outcome).Inc()
		m.RunDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// ObserveRefine records how a refinement loop ended.
func (m *Metrics) ObserveRefine(stopReason string, iterations int) {
	if m == nil {
		return
	}
	m.RefineIterations.WithLabelValues(stopReason).Observe(float64(iterations))
}

// CountFindings records research results.
func (m *Metrics) CountFindings(ok, failed int) {
	if m == nil {
		return
	}
	m.ResearchFindings.WithLabelValues("ok").Add(float64(ok))
	m.ResearchFindings.WithLabelValues("error").Add(float64(failed))
}

// CountPersist records an insert attempt: inserted, duplicate or error.
func (m *Metrics) CountPersist(result string) {
	if m == nil {
		return
	}
	m.PostsPersisted.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. route maps a request to a
// low-cardinality label; nil uses the URL path.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			label := r.URL.Path
			if route != nil {
				if v := route(r); v != "" {
					label = v
				}
			}
			m.HTTPRequests.WithLabelValues(r.Method, label, strconv.Itoa(rec.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
		})
	}
}
