package observability

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtroom_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courtroom_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "courtroom_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	// Turn metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtroom_turns_total",
			Help: "Processed turns by outcome (relevant, irrelevant)",
		},
		[]string{"outcome"},
	)

	turnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "courtroom_turn_duration_seconds",
			Help:    "Wall time to process a turn",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 15, 20, 30},
		},
	)

	// Generation metrics
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtroom_generations_total",
			Help: "AI responses by role and source (model, fallback, redirect)",
		},
		[]string{"role", "source"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courtroom_generation_duration_seconds",
			Help:    "Backend generation latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20},
		},
		[]string{"role"},
	)

	poolWaiting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "courtroom_pool_waiting",
			Help: "Generation tasks waiting for a worker",
		},
	)

	// Session metrics
	cachedSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "courtroom_cached_sessions",
			Help: "Sessions held in the manager cache",
		},
	)

	sessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "courtroom_sessions_created_total",
			Help: "Sessions created",
		},
	)

	storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtroom_store_errors_total",
			Help: "Session store failures by operation",
		},
		[]string{"op"},
	)

	analyticsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "courtroom_analytics_dropped_total",
			Help: "Analytics events dropped because the queue was full or the sink failed",
		},
	)

	// System metrics
	goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "courtroom_goroutines",
			Help: "Number of goroutines",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			rateLimitedTotal,
			turnsTotal,
			turnDuration,
			generationsTotal,
			generationDuration,
			poolWaiting,
			cachedSessions,
			sessionsCreated,
			storeErrorsTotal,
			analyticsDropped,
			goroutines,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	goroutines.Set(float64(runtime.NumGoroutine()))
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// RecordTurn records a processed turn.
func RecordTurn(relevant bool, duration time.Duration) {
	outcome := "relevant"
	if !relevant {
		outcome = "irrelevant"
	}
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.Observe(duration.Seconds())
}

// RecordGeneration records one AI response. Latency is only observed for
// responses that reached the backend.
func RecordGeneration(role, source string, duration time.Duration) {
	generationsTotal.WithLabelValues(role, source).Inc()
	if source != "redirect" {
		generationDuration.WithLabelValues(role).Observe(duration.Seconds())
	}
}

// AddPoolWaiting adjusts the waiting-task gauge by delta.
func AddPoolWaiting(delta int) {
	poolWaiting.Add(float64(delta))
}

// SetCachedSessions sets the cached sessions gauge.
func SetCachedSessions(n int) {
	cachedSessions.Set(float64(n))
}

// RecordSessionCreated counts a new session.
func RecordSessionCreated() {
	sessionsCreated.Inc()
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	storeErrorsTotal.WithLabelValues(op).Inc()
}

// RecordAnalyticsDropped counts a lost analytics event.
func RecordAnalyticsDropped() {
	analyticsDropped.Inc()
}
