// Package observability collects Prometheus metrics for the HTTP
// surface and the background worker.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the application's Prometheus collectors.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	jobRuns         *prometheus.CounterVec
	roleMutations   *prometheus.CounterVec
	archivedTotal   prometheus.Counter
}

// NewMetrics initializes the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watchplus_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "watchplus_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watchplus_jobs_total",
		Help: "Background job runs by task and outcome.",
	}, []string{"task", "outcome"})
	roleMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watchplus_role_mutations_total",
		Help: "Role mutations by admin action and outcome.",
	}, []string{"action", "outcome"})
	archived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watchplus_evidence_requests_archived_total",
		Help: "Evidence requests moved to the archive.",
	})
	registry.MustRegister(requests, duration, jobRuns, roleMutations, archived)

	// Seed the job counter so the series exists before the first run.
	jobRuns.WithLabelValues("requests:archive_expired", "success")
	jobRuns.WithLabelValues("requests:archive_expired", "error")
	jobRuns.WithLabelValues("idempotency:cleanup", "success")
	jobRuns.WithLabelValues("idempotency:cleanup", "error")
	// Likewise the conflict series the alert rules rate over.
	for _, action := range []string{"assign", "revoke", "activate", "deactivate"} {
		roleMutations.WithLabelValues(action, "success")
		roleMutations.WithLabelValues(action, "conflict")
	}

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		jobRuns:         jobRuns,
		roleMutations:   roleMutations,
		archivedTotal:   archived,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveJobRun counts one background job run.
func (m *Metrics) ObserveJobRun(task, outcome string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(task, outcome).Inc()
}

// ObserveRoleMutation counts one role mutation attempt.
func (m *Metrics) ObserveRoleMutation(action, outcome string) {
	if m == nil {
		return
	}
	m.roleMutations.WithLabelValues(action, outcome).Inc()
}

// AddArchivedRequests counts evidence requests moved to the archive.
func (m *Metrics) AddArchivedRequests(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.archivedTotal.Add(float64(n))
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
