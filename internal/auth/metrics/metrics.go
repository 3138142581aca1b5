// Package metrics exposes Prometheus counters for the login flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultBlocked  = "blocked"
	ResultDisabled = "deactivated"
	ResultPending  = "challenge"
	ResultSetup    = "setup_required"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing,
// which keeps service tests free of registry plumbing.
type Metrics struct {
	LoginAttempts          *prometheus.CounterVec
	TwoFactorVerifications *prometheus.CounterVec
	PasswordResets         *prometheus.CounterVec
	PendingSessionsSwept   prometheus.Counter
	HTTPRequests           *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostdesk_login_attempts_total",
				Help: "Password login attempts by outcome.",
			},
			[]string{"result"},
		),
		TwoFactorVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostdesk_two_factor_verifications_total",
				Help: "Second-factor verifications by method and outcome.",
			},
			[]string{"method", "result"},
		),
		PasswordResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostdesk_password_resets_total",
				Help: "Password reset requests and completions by outcome.",
			},
			[]string{"stage", "result"},
		),
		PendingSessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hostdesk_pending_sessions_swept_total",
				Help: "Expired pending login sessions evicted by housekeeping.",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostdesk_http_requests_total",
				Help: "HTTP requests by route pattern and status.",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostdesk_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.LoginAttempts,
		m.TwoFactorVerifications,
		m.PasswordResets,
		m.PendingSessionsSwept,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) TwoFactor(method, result string) {
	if m == nil {
		return
	}
	m.TwoFactorVerifications.WithLabelValues(method, result).Inc()
}

func (m *Metrics) PasswordReset(stage, result string) {
	if m == nil {
		return
	}
	m.PasswordResets.WithLabelValues(stage, result).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PendingSessionsSwept.Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware counts requests per matched route pattern so path
// parameters do not explode label cardinality.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(sr.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
