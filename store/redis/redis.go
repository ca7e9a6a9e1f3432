// Package redis implements iam.UsageStore on Redis.
//
// Each principal's spend lives in a hash at "<prefix><principal>" with fields
// hourlyCost (JSON array of 24 numbers), dailyCost and monthlyCost.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	iam "github.com/chimerakang/amp-iam"
)

// DefaultPrefix is prepended to the principal to form the hash key.
const DefaultPrefix = "usage:"

// Hash fields.
const (
	FieldHourlyCost  = "hourlyCost"
	FieldDailyCost   = "dailyCost"
	FieldMonthlyCost = "monthlyCost"
)

// UsageStore implements iam.UsageStore.
type UsageStore struct {
	client goredis.UniversalClient
	prefix string
	logger *zap.Logger
}

// compile-time check
var _ iam.UsageStore = (*UsageStore)(nil)

// Option configures the UsageStore.
type Option func(*UsageStore)

// WithPrefix sets the key prefix. Default: DefaultPrefix.
func WithPrefix(p string) Option {
	return func(s *UsageStore) { s.prefix = p }
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *UsageStore) { s.logger = l }
}

// NewUsageStore creates a store on client.
func NewUsageStore(client goredis.UniversalClient, opts ...Option) *UsageStore {
	s := &UsageStore{client: client, prefix: DefaultPrefix, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *UsageStore) key(principal string) string {
	return s.prefix + principal
}

// Usage reads the spend hash for principal. It returns nil when the hash does not exist.
func (s *UsageStore) Usage(ctx context.Context, principal string) (*iam.Usage, error) {
	fields, err := s.client.HGetAll(ctx, s.key(principal)).Result()
	if err != nil {
		return nil, fmt.Errorf("iam/redis: read usage for %q: %w", principal, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	u := &iam.Usage{
		DailyCost:   s.parseFloat(principal, FieldDailyCost, fields),
		MonthlyCost: s.parseFloat(principal, FieldMonthlyCost, fields),
	}
	if raw, ok := fields[FieldHourlyCost]; ok {
		var hourly []float64
		if err := json.Unmarshal([]byte(raw), &hourly); err != nil {
			s.logger.Debug("hourly cost is not a number array",
				zap.String("principal", principal), zap.Error(err))
			hourly = []float64{}
		}
		u.HourlyCost = hourly
	}
	return u, nil
}

func (s *UsageStore) parseFloat(principal, field string, fields map[string]string) *float64 {
	raw, ok := fields[field]
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.logger.Debug("cost field is not a number",
			zap.String("principal", principal), zap.String("field", field), zap.Error(err))
		return nil
	}
	return &f
}

// Put replaces the spend hash for principal. A positive ttl expires the hash.
func (s *UsageStore) Put(ctx context.Context, principal string, u iam.Usage, ttl time.Duration) error {
	values := make(map[string]interface{}, 3)
	if u.HourlyCost != nil {
		raw, err := json.Marshal(u.HourlyCost)
		if err != nil {
			return fmt.Errorf("iam/redis: encode hourly cost: %w", err)
		}
		values[FieldHourlyCost] = string(raw)
	}
	if u.DailyCost != nil {
		values[FieldDailyCost] = strconv.FormatFloat(*u.DailyCost, 'f', -1, 64)
	}
	if u.MonthlyCost != nil {
		values[FieldMonthlyCost] = strconv.FormatFloat(*u.MonthlyCost, 'f', -1, 64)
	}

	key := s.key(principal)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("iam/redis: write usage for %q: %w", principal, err)
	}
	return nil
}
