// Package observability holds Prometheus collectors and OpenTelemetry setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthEvents counts account lifecycle and authentication outcomes.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planify_auth_events_total",
		Help: "Authentication and account events by type and outcome",
	}, []string{"event", "outcome"})

	// TokenRejections counts rejected bearer tokens by reason.
	TokenRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planify_token_rejections_total",
		Help: "Rejected bearer tokens by reason",
	}, []string{"reason"})

	// PasswordHashDuration records bcrypt latency.
	PasswordHashDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planify_password_hash_duration_seconds",
		Help:    "bcrypt hash and verify latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"operation"})

	// DatabaseQueryLatency records store latency by operation.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planify_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// RedisErrors counts Redis errors by operation.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planify_redis_errors_total",
		Help: "Total number of Redis errors by operation",
	}, []string{"operation"})

	// RateLimitRejections counts requests refused by the rate limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planify_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter by resource",
	}, []string{"resource"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthEvent increments the counter for event with outcome.
func RecordAuthEvent(event string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	AuthEvents.WithLabelValues(event, outcome).Inc()
}
