// Package apikey resolves long-lived API keys into iam.Claims.
//
// A presented key is looked up in an iam.KeyRegistry (by digest for versioned
// keys, by value for legacy keys), checked for activity, expiry and access
// scope, mapped to its principal, and rate limited. Successful resolutions
// touch the record's last-accessed time.
package apikey

import (
	"context"
	"strings"
	"time"

	iam "github.com/chimerakang/amp-iam"
	"go.uber.org/zap"
)

// ExpirationLayout is the format of a registry record's expiration date.
const ExpirationLayout = "2006-01-02"

// Resolver implements iam.ClaimsResolver for API keys.
type Resolver struct {
	registry    iam.KeyRegistry
	limiter     iam.RateLimiter
	accessTypes []iam.AccessType
	versioned   string
	logger      *zap.Logger
	now         func() time.Time
}

// compile-time check
var (
	_ iam.ClaimsResolver = (*Resolver)(nil)
	_ iam.ConfigApplier  = (*Resolver)(nil)
)

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithClock overrides the time source used for expiry and last-accessed stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithKeyPrefix sets the API key prefix; versioned keys start with prefix+"v1-".
// Default: Prefix.
func WithKeyPrefix(prefix string) Option {
	return func(r *Resolver) { r.versioned = VersionedPrefix(prefix) }
}

// NewResolver creates an API key resolver. accessTypes is the set the deployment
// accepts; a key must carry at least one of them. When the resolver is handed
// to iam.NewClient, the client's Config replaces accessTypes and the key prefix.
// A nil limiter disables rate limiting.
func NewResolver(registry iam.KeyRegistry, limiter iam.RateLimiter, accessTypes []iam.AccessType, opts ...Option) *Resolver {
	if len(accessTypes) == 0 {
		accessTypes = iam.DefaultAccessTypes()
	}
	r := &Resolver{
		registry:    registry,
		limiter:     limiter,
		accessTypes: accessTypes,
		versioned:   V1Prefix,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ApplyConfig takes the accepted access types and key prefix from cfg.
func (r *Resolver) ApplyConfig(cfg iam.Config) {
	if len(cfg.AccessTypes) > 0 {
		r.accessTypes = append([]iam.AccessType(nil), cfg.AccessTypes...)
	}
	if cfg.APIKeyPrefix != "" {
		r.versioned = VersionedPrefix(cfg.APIKeyPrefix)
	}
}

// Resolve maps an API key to claims.
func (r *Resolver) Resolve(ctx context.Context, token string) (*iam.Claims, error) {
	versioned := strings.HasPrefix(token, r.versioned)
	rec, err := r.registry.Lookup(ctx, lookupValue(token, r.versioned))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		r.logger.Info("api key does not exist", zap.Bool("versioned", versioned))
		return nil, iam.LookupError("API key not found.")
	}

	log := r.logger.With(zap.String("api_key_id", rec.APIOwnerID))
	if err := r.checkUsable(rec, log); err != nil {
		return nil, err
	}

	user, err := Principal(rec)
	if err != nil {
		return nil, err
	}

	rateLimit := rec.RateLimit
	if r.limiter != nil {
		limited, reason := r.limiter.IsLimited(ctx, user, rateLimit)
		if limited {
			log.Info("api key rate limited", zap.String("user", user), zap.String("reason", reason))
			return nil, iam.Unauthorized(reason)
		}
		log.Debug("rate limit check passed", zap.String("reason", reason))
	}

	if err := r.registry.Touch(ctx, rec.APIOwnerID, r.now()); err != nil {
		log.Warn("failed to update last accessed", zap.Error(err))
	}

	if rateLimit.Period == "" {
		rateLimit = iam.NoRateLimit()
	}
	return &iam.Claims{
		Username:      user,
		Account:       rec.AccountID,
		AllowedAccess: rec.AccessTypes,
		RateLimit:     rateLimit,
		APIKeyID:      rec.APIOwnerID,
		Purpose:       rec.Purpose,
	}, nil
}

func (r *Resolver) checkUsable(rec *iam.APIKeyRecord, log *zap.Logger) error {
	if !rec.Active {
		log.Info("api key is inactive")
		return iam.PermissionError("API key is inactive.")
	}
	if r.expired(rec.ExpirationDate) {
		log.Info("api key has expired", zap.String("expiration_date", rec.ExpirationDate))
		return iam.PermissionError("API key has expired.")
	}
	if !r.accepts(rec.AccessTypes) {
		log.Info("api key lacks an accepted access type", zap.Any("access_types", rec.AccessTypes))
		return iam.PermissionError("API key does not have access to the required functionality.")
	}
	return nil
}

// expired reports whether the date is at or before now. Unparseable dates count as expired.
func (r *Resolver) expired(date string) bool {
	if date == "" {
		return false
	}
	now := r.now()
	exp, err := time.ParseInLocation(ExpirationLayout, date, now.Location())
	if err != nil {
		return true
	}
	return !exp.After(now)
}

func (r *Resolver) accepts(have []iam.AccessType) bool {
	for _, want := range r.accessTypes {
		for _, h := range have {
			if h == want {
				return true
			}
		}
	}
	return false
}
