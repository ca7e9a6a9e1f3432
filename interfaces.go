package iam

import (
	"context"
	"time"
)

// ClaimsResolver turns a bearer token into claims.
// Implementations: jwks/ (JWT via JWKS), apikey/ (long-lived API keys).
type ClaimsResolver interface {
	// Resolve returns *Error for caller-attributable failures and a plain error
	// for infrastructure failures.
	Resolve(ctx context.Context, token string) (*Claims, error)
}

// ConfigApplier is implemented by resolvers that take deployment settings
// (accepted access types, API key prefix) from the client's Config. NewClient
// calls ApplyConfig once, before the client serves any request.
type ConfigApplier interface {
	ApplyConfig(cfg Config)
}

// AccountStore looks up the account sub-records of a user.
type AccountStore interface {
	// Accounts returns the user's accounts. found is false when the store has no record.
	Accounts(ctx context.Context, username string) (accounts []Account, found bool, err error)
}

// KeyRegistry stores API key records.
type KeyRegistry interface {
	// Lookup returns the record stored under lookupValue (raw key or digest), or nil.
	Lookup(ctx context.Context, lookupValue string) (*APIKeyRecord, error)

	// Touch records the last time the key was used.
	Touch(ctx context.Context, apiOwnerID string, at time.Time) error
}

// UsageStore returns accumulated spend per principal.
type UsageStore interface {
	// Usage returns nil without error when no record exists.
	Usage(ctx context.Context, principal string) (*Usage, error)
}

// RateLimiter decides whether a principal is over quota. It never fails; the
// reason explains the decision and may contain details not meant for callers.
type RateLimiter interface {
	IsLimited(ctx context.Context, principal string, limit RateLimit) (limited bool, reason string)
}

// BodyValidator validates a decoded request body for a route and operation.
// Implementations: schema/.
type BodyValidator interface {
	Validate(route, op string, body map[string]any, apiOrigin bool) error
}

// Decision is the second step of a permission check.
type Decision func(user string, data map[string]any) bool

// PermissionChecker builds a Decision for a route and operation.
// A nil Decision means the checker has nothing to say and permission is granted.
// Implementations: authz/.
type PermissionChecker interface {
	Prepare(ctx context.Context, user, route, op string, data map[string]any) Decision
}
