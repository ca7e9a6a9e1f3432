package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsDisabled(t *testing.T) {
	m := New(false)
	assert.NotNil(t, m)

	// These should not panic even though they're noop
	m.RecordRequest("api", 200, 0.01)
	m.RecordAuthFailure("apikey", "lookup")
	m.RecordPermissionCheck("allowed", 0.001)
	m.RecordValidation("invalid")
	m.RecordRateLimit("Hourly", true)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("user", 401, 0.01)
	m.RecordAuthFailure("jwt", "claim")
}

func TestRecordRequest(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordRequest("api", 200, 0.01)
	m.RecordRequest("api", 200, 0.02)
	m.RecordRequest("user", 401, 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("api", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("user", "401")))
}

func TestRecordAuthFailure(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordAuthFailure("jwt", "claim")
	m.RecordAuthFailure("jwt", "claim")
	m.RecordAuthFailure("apikey", "unknown_api_user")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authFailuresTotal.WithLabelValues("jwt", "claim")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authFailuresTotal.WithLabelValues("apikey", "unknown_api_user")))
}

func TestRecordPermissionCheck(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordPermissionCheck("allowed", 0.001)
	m.RecordPermissionCheck("denied", 0.002)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.permissionChecksTotal.WithLabelValues("denied")))
}

func TestRecordRateLimit(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordRateLimit("Hourly", true)
	m.RecordRateLimit("Hourly", false)
	m.RecordRateLimit("Hourly", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimitDecisionsTotal.WithLabelValues("Hourly", "limited")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rateLimitDecisionsTotal.WithLabelValues("Hourly", "allowed")))
}

func TestRecordValidation(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordValidation("valid")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationsTotal.WithLabelValues("valid")))
}
