// Package metrics declares the Prometheus collectors shared across Studyrooms.
//
// Collectors register with the default registry via promauto; the app package
// exposes them on /metrics with promhttp.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyrooms_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_class"},
	)

	// Backend API client
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyrooms_backend_requests_total",
			Help: "Total backend API calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: "ok", "status", "unavailable", "rejected"
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyrooms_backend_request_duration_seconds",
			Help:    "Duration of backend API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "studyrooms_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyrooms_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Sessions
	SessionsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyrooms_sessions_issued_total",
			Help: "Session cookies signed, by reason",
		},
		[]string{"reason"}, // "login", "refresh", "legacy"
	)

	SessionVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyrooms_session_verifications_total",
			Help: "Session cookie verifications by result",
		},
		[]string{"result"}, // "valid", "invalid", "expired", "revoked", "error"
	)

	// Realtime
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyrooms_realtime_connections",
			Help: "Open realtime WebSocket connections",
		},
	)

	RealtimeWatchers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyrooms_realtime_watchers",
			Help: "Active (user, room) message poll loops",
		},
	)

	RealtimePolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyrooms_realtime_polls_total",
			Help: "Message polls by result",
		},
		[]string{"result"}, // "changed", "unchanged", "not_member", "error"
	)
)

// ObserveHTTP records one finished HTTP request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, StatusClass(status)).Observe(d.Seconds())
}

// ObserveBackend records one backend API call.
func ObserveBackend(endpoint, outcome string, d time.Duration) {
	BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	BackendRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// StatusClass buckets an HTTP status into "2xx", "4xx" and so on.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
