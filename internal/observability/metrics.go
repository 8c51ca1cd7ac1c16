// Package observability provides Prometheus metrics for the assistant.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// DIALOGUE METRICS
// =============================================================================

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmate_dialogue_transitions_total",
			Help: "Total number of dialogue state transitions",
		},
		[]string{"from", "to"},
	)

	overridesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmate_dialogue_overrides_total",
			Help: "Total number of advice requests intercepted",
		},
	)

	staleResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmate_dialogue_stale_results_total",
			Help: "Gateway results discarded because the conversation moved on",
		},
		[]string{"effect"},
	)
)

// =============================================================================
// GATEWAY METRICS
// =============================================================================

var (
	gatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmate_gateway_calls_total",
			Help: "Total gateway calls issued by dialogue controllers",
		},
		[]string{"gateway", "status"}, // status: success, error
	)

	gatewayDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskmate_gateway_duration_seconds",
			Help:    "Gateway call duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"gateway"},
	)
)

// =============================================================================
// SESSION AND HTTP METRICS
// =============================================================================

var (
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskmate_active_sessions",
			Help: "Number of open assistant sessions",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmate_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskmate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"route"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// Dialogue reports controller telemetry to Prometheus.
type Dialogue struct{}

// Transition counts a state change.
func (Dialogue) Transition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// Override counts an intercepted advice request.
func (Dialogue) Override() {
	overridesTotal.Inc()
}

// GatewayCall records one gateway call.
func (Dialogue) GatewayCall(gateway string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	gatewayCallsTotal.WithLabelValues(gateway, status).Inc()
	gatewayDurationSeconds.WithLabelValues(gateway).Observe(d.Seconds())
}

// Stale counts a discarded gateway result.
func (Dialogue) Stale(effect string) {
	staleResultsTotal.WithLabelValues(effect).Inc()
}

// SessionOpened increments the open session gauge.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the open session gauge.
func SessionClosed() {
	activeSessions.Dec()
}

// HTTPMetrics is chi middleware recording request counts and latency by
// route pattern.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		httpRequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
