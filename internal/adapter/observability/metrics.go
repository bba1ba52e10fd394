// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
// The package provides comprehensive observability features
// including metrics collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// ForksProvisionedTotal counts fork provisioning attempts by dimension
	// kind and strategy actually used.
	ForksProvisionedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fork_provisioned_total",
			Help: "Total number of forks provisioned, by kind and strategy",
		},
		[]string{"kind", "strategy"},
	)
	// ForksActive is a gauge of currently active (acquired, not yet released) forks.
	ForksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fork_active",
			Help: "Number of currently active forks",
		},
	)
	// ForksFailedTotal counts forks that failed to provision or were released as failed.
	ForksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fork_failed_total",
			Help: "Total number of forks that ended in a failed state, by kind",
		},
		[]string{"kind"},
	)
	// ForkWaitDuration records how long a request waited for the active-fork semaphore.
	ForkWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fork_semaphore_wait_seconds",
			Help:    "Time spent waiting for the active-fork semaphore",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)
	// ForksSweptTotal counts forks removed by the retention sweeper.
	ForksSweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fork_swept_total",
			Help: "Total number of terminal fork ledger entries removed by the sweeper",
		},
		[]string{"result"},
	)

	// WorkerDuration records per-dimension scoring worker wall time.
	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_duration_seconds",
			Help:    "Scoring worker duration in seconds, by dimension kind",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
	// WorkerScore records the distribution of scores produced per dimension, 0-100.
	WorkerScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_score",
			Help:    "Distribution of per-dimension scores (0-100)",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"kind"},
	)
	// WorkerFailuresTotal counts worker failures by dimension kind and cause.
	WorkerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_failures_total",
			Help: "Total worker failures, by dimension kind and cause",
		},
		[]string{"kind", "cause"},
	)

	// CompositeScoreHistogram is the distribution of composite fitness scores.
	CompositeScoreHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "composite_score",
			Help:    "Distribution of composite fitness scores (0-100), by profile tag",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"profile_tag"},
	)
	// AgentsCompletedHistogram tracks how many of the five workers completed per request.
	AgentsCompletedHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agents_completed",
			Help:    "Number of scoring workers that completed successfully per request",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// ScoreDriftDetector tracks score drift from baseline.
	ScoreDriftDetector = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "composite_score_drift",
			Help: "Detected composite-score drift from baseline, by profile tag",
		},
		[]string{"profile_tag"},
	)

	// CircuitBreakerStatus tracks circuit breaker state.
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "operation"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(ForksProvisionedTotal)
	prometheus.MustRegister(ForksActive)
	prometheus.MustRegister(ForksFailedTotal)
	prometheus.MustRegister(ForkWaitDuration)
	prometheus.MustRegister(ForksSweptTotal)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerScore)
	prometheus.MustRegister(WorkerFailuresTotal)
	prometheus.MustRegister(CompositeScoreHistogram)
	prometheus.MustRegister(AgentsCompletedHistogram)
	prometheus.MustRegister(ScoreDriftDetector)
	prometheus.MustRegister(CircuitBreakerStatus)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// RecordForkProvisioned records a successful fork provisioning.
func RecordForkProvisioned(kind, strategy string) {
	ForksProvisionedTotal.WithLabelValues(kind, strategy).Inc()
	ForksActive.Inc()
}

// RecordForkReleased records a fork leaving the active set, successfully or not.
func RecordForkReleased(kind string, failed bool) {
	ForksActive.Dec()
	if failed {
		ForksFailedTotal.WithLabelValues(kind).Inc()
	}
}

// RecordForkSwept records a sweeper pass outcome.
func RecordForkSwept(result string, count int64) {
	ForksSweptTotal.WithLabelValues(result).Add(float64(count))
}

// RecordWorker records a completed (successful or failed) worker invocation.
func RecordWorker(kind string, dur time.Duration, score float64, failCause string) {
	WorkerDuration.WithLabelValues(kind).Observe(dur.Seconds())
	if failCause != "" {
		WorkerFailuresTotal.WithLabelValues(kind, failCause).Inc()
		return
	}
	WorkerScore.WithLabelValues(kind).Observe(score)
}

// RecordComposite records a finished composite scoring request.
func RecordComposite(profileTag string, composite float64, agentsCompleted int) {
	CompositeScoreHistogram.WithLabelValues(profileTag).Observe(composite)
	AgentsCompletedHistogram.Observe(float64(agentsCompleted))
}

// RecordScoreDrift records composite-score drift from baseline.
func RecordScoreDrift(profileTag string, drift float64) {
	ScoreDriftDetector.WithLabelValues(profileTag).Set(drift)
}

// RecordCircuitBreakerStatus records circuit breaker state.
func RecordCircuitBreakerStatus(service, operation string, status int) {
	CircuitBreakerStatus.WithLabelValues(service, operation).Set(float64(status))
}
