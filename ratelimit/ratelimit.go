// Package ratelimit decides whether a principal has spent past its quota.
//
// The limiter fails open: missing, malformed or unreachable usage data never
// blocks a request. Every decision comes with a reason for logs.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	iam "github.com/chimerakang/amp-iam"
	"github.com/chimerakang/amp-iam/metrics"
	"go.uber.org/zap"
)

// Reasons returned alongside a "not limited" decision.
const (
	ReasonNoPeriod     = "Rate limit period is not specified in the rate_limit data"
	ReasonUnlimited    = "No rate limit set"
	ReasonNoUsage      = "Table entry does not exist. Cannot verify if rate limited."
	ReasonHourlyBad    = "Hourly cost data is missing or malformed."
	ReasonNoRate       = "Rate value missing in rate_limit."
	ReasonNotExceeded  = "Rate limit not exceeded"
	ReasonStoreFailure = "Error accessing usage store for rate limit check"
)

// Limiter implements iam.RateLimiter over an iam.UsageStore.
type Limiter struct {
	usage   iam.UsageStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// compile-time check
var _ iam.RateLimiter = (*Limiter)(nil)

// Option configures the Limiter.
type Option func(*Limiter)

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(lim *Limiter) { lim.logger = l }
}

// WithMetrics records every decision.
func WithMetrics(m *metrics.Metrics) Option {
	return func(lim *Limiter) { lim.metrics = m }
}

// WithClock overrides the time source that selects the hourly bucket.
// Default: UTC wall clock.
func WithClock(now func() time.Time) Option {
	return func(lim *Limiter) { lim.now = now }
}

// New creates a Limiter reading spend from usage.
func New(usage iam.UsageStore, opts ...Option) *Limiter {
	l := &Limiter{
		usage:  usage,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// IsLimited reports whether principal's spend for the quota period has reached
// limit.Rate.
func (l *Limiter) IsLimited(ctx context.Context, principal string, limit iam.RateLimit) (bool, string) {
	limited, reason := l.decide(ctx, principal, limit)
	l.metrics.RecordRateLimit(string(limit.Period), limited)
	return limited, reason
}

func (l *Limiter) decide(ctx context.Context, principal string, limit iam.RateLimit) (bool, string) {
	switch limit.Period {
	case "":
		return false, ReasonNoPeriod
	case iam.PeriodUnlimited:
		return false, ReasonUnlimited
	}

	usage, err := l.usage.Usage(ctx, principal)
	if err != nil {
		l.logger.Warn("usage lookup failed, not rate limiting",
			zap.String("principal", principal), zap.Error(err))
		return false, ReasonStoreFailure
	}
	if usage == nil {
		return false, ReasonNoUsage
	}

	column := strings.ToLower(string(limit.Period)) + "Cost"
	var spent float64
	switch limit.Period {
	case iam.PeriodHourly:
		if usage.HourlyCost == nil {
			return false, columnMissing(column)
		}
		hour := l.now().Hour()
		if hour >= len(usage.HourlyCost) {
			return false, ReasonHourlyBad
		}
		spent = usage.HourlyCost[hour]
	case iam.PeriodDaily:
		if usage.DailyCost == nil {
			return false, columnMissing(column)
		}
		spent = *usage.DailyCost
	case iam.PeriodMonthly:
		if usage.MonthlyCost == nil {
			return false, columnMissing(column)
		}
		spent = *usage.MonthlyCost
	default:
		return false, columnMissing(column)
	}

	if limit.Rate == nil {
		return false, ReasonNoRate
	}
	if spent >= *limit.Rate {
		return true, fmt.Sprintf("rate limit exceeded ($%.2f/%s)", *limit.Rate, limit.Period)
	}
	return false, ReasonNotExceeded
}

func columnMissing(column string) string {
	return fmt.Sprintf("Column %s not found in rate data", column)
}
