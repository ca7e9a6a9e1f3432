// Package metrics provides Prometheus metrics for the authorization pipeline.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for pipeline operations.
// A nil or disabled *Metrics is a no-op.
type Metrics struct {
	enabled bool

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Authentication metrics
	authFailuresTotal *prometheus.CounterVec

	// Permission check metrics
	permissionChecksTotal   *prometheus.CounterVec
	permissionCheckDuration prometheus.Histogram

	// Body validation metrics
	validationsTotal *prometheus.CounterVec

	// Rate limit metrics
	rateLimitDecisionsTotal *prometheus.CounterVec
}

// New creates metrics registered with the default Prometheus registerer.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	if !enabled {
		return &Metrics{}
	}
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates enabled metrics registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{enabled: true}

	m.requestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "amp_iam_requests_total",
		Help: "Total requests handled by the authorization pipeline",
	}, []string{"origin", "status"})

	m.requestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "amp_iam_request_duration_seconds",
		Help:    "Pipeline duration in seconds, handler included",
		Buckets: prometheus.DefBuckets,
	}, []string{"origin"})

	m.authFailuresTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "amp_iam_auth_failures_total",
		Help: "Total authentication failures",
	}, []string{"method", "reason"})

	m.permissionChecksTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "amp_iam_permission_checks_total",
		Help: "Total permission checks",
	}, []string{"result"})

	m.permissionCheckDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "amp_iam_permission_check_duration_seconds",
		Help:    "Permission check duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.validationsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "amp_iam_body_validations_total",
		Help: "Total request body validations",
	}, []string{"result"})

	m.rateLimitDecisionsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "amp_iam_rate_limit_decisions_total",
		Help: "Total rate limit decisions",
	}, []string{"period", "result"})

	return m
}

func (m *Metrics) on() bool { return m != nil && m.enabled }

// RecordRequest records a finished request and the status it produced.
func (m *Metrics) RecordRequest(origin string, status int, durationSeconds float64) {
	if !m.on() {
		return
	}
	m.requestsTotal.WithLabelValues(origin, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(origin).Observe(durationSeconds)
}

// RecordAuthFailure records a failed authentication.
func (m *Metrics) RecordAuthFailure(method, reason string) {
	if !m.on() {
		return
	}
	m.authFailuresTotal.WithLabelValues(method, reason).Inc()
}

// RecordPermissionCheck records a permission check result.
func (m *Metrics) RecordPermissionCheck(result string, durationSeconds float64) {
	if !m.on() {
		return
	}
	m.permissionChecksTotal.WithLabelValues(result).Inc()
	m.permissionCheckDuration.Observe(durationSeconds)
}

// RecordValidation records a body validation result.
func (m *Metrics) RecordValidation(result string) {
	if !m.on() {
		return
	}
	m.validationsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimit records a rate limit decision.
func (m *Metrics) RecordRateLimit(period string, limited bool) {
	if !m.on() {
		return
	}
	result := "allowed"
	if limited {
		result = "limited"
	}
	m.rateLimitDecisionsTotal.WithLabelValues(period, result).Inc()
}
