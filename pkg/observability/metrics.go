// Package observability provides Prometheus metrics and HTTP middleware for
// monitoring the portier authentication pipeline.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthBuckets defines histogram buckets for authentication latencies, which
// range from in-memory lookups to network-bound JWKS fetches.
var AuthBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// Authentication outcome label values.
const (
	OutcomeSuccess      = "success"
	OutcomeNoCredential = "no_credential"
	OutcomeFailed       = "failed"
)

var (
	// AuthAttemptsTotal counts authentication runs by outcome.
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portier_authn_attempts_total",
			Help: "Authentication attempts",
		},
		[]string{"outcome"},
	)

	// AuthDuration records how long the full authentication walk took.
	AuthDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portier_authn_duration_seconds",
			Help:    "Authentication duration",
			Buckets: AuthBuckets,
		},
		[]string{"outcome"},
	)

	// ChallengesTotal counts challenge responses issued, by scheme.
	ChallengesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portier_challenges_total",
			Help: "Challenge responses issued",
		},
		[]string{"scheme"},
	)

	// ForbidsTotal counts forbid responses issued, by scheme.
	ForbidsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portier_forbids_total",
			Help: "Forbid responses issued",
		},
		[]string{"scheme"},
	)

	// SessionsTotal counts sign-in and sign-out operations, by scheme.
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portier_sessions_total",
			Help: "Session sign-in/sign-out operations",
		},
		[]string{"scheme", "op"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portier_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)

	// RequestsTotal counts HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portier_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portier_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		AuthAttemptsTotal,
		AuthDuration,
		ChallengesTotal,
		ForbidsTotal,
		SessionsTotal,
		RateLimitRejectedTotal,
		RequestsTotal,
		RequestDuration,
	)
}
