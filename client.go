// Package iam is the request-authorization front door for serverless API handlers.
//
// A Client resolves the caller behind a bearer token (a JWT for human users or a
// long-lived API key for automated callers), validates the request body against a
// per-route schema, runs an optional permission check, and wraps the business
// handler's result in a uniform response envelope. Collaborators are injected via
// Option functions, so the pipeline has no dependency on a specific identity
// provider or store.
//
// Example usage:
//
//	cfg := iam.Config{Validator: schema.New(rules)}
//	cfg.AddAccessTypes(iam.AccessChat)
//	client, err := iam.NewClient(cfg,
//	    iam.WithJWTResolver(jwtResolver),
//	    iam.WithAPIKeyResolver(apiKeyResolver),
//	)
//	handler := client.Validated("chat", chatHandler)
package iam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chimerakang/amp-iam/audit"
	"github.com/chimerakang/amp-iam/metrics"
	"go.uber.org/zap"
)

// Config is the process-wide configuration. It is built once at start-up and
// treated as read-only by request handling.
type Config struct {
	// Validator checks request bodies. Requests that ask for body validation
	// fail with BadRequest when it is nil.
	Validator BodyValidator

	// PermissionChecker gates operations after validation. Nil grants every request.
	PermissionChecker PermissionChecker

	// AccessTypes is the set of API access types this deployment accepts.
	// Applied to the API key resolver by NewClient. Default: [full_access].
	AccessTypes []AccessType

	// APIKeyPrefix marks API key tokens; APIKeyPrefix+"v1-" marks versioned
	// keys. Default: "amp-".
	APIKeyPrefix string
}

// DefaultAccessTypes returns the access types accepted when none are configured.
func DefaultAccessTypes() []AccessType {
	return []AccessType{AccessFullAccess}
}

// AddAccessTypes extends the accepted access types.
func (c *Config) AddAccessTypes(types ...AccessType) {
	if len(c.AccessTypes) == 0 {
		c.AccessTypes = DefaultAccessTypes()
	}
	for _, t := range types {
		if !containsAccess(c.AccessTypes, t) {
			c.AccessTypes = append(c.AccessTypes, t)
		}
	}
}

func containsAccess(list []AccessType, t AccessType) bool {
	for _, have := range list {
		if have == t {
			return true
		}
	}
	return false
}

// Client runs the authorization pipeline.
type Client struct {
	config  Config
	logger  *zap.Logger
	jwt     ClaimsResolver
	apiKeys ClaimsResolver
	metrics *metrics.Metrics
	audit   *audit.Logger
	now     func() time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithJWTResolver sets the resolver used for bearer JWTs.
func WithJWTResolver(r ClaimsResolver) Option {
	return func(c *Client) { c.jwt = r }
}

// WithAPIKeyResolver sets the resolver used for API key tokens.
func WithAPIKeyResolver(r ClaimsResolver) Option {
	return func(c *Client) { c.apiKeys = r }
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithAuditLogger sets the audit event sink.
func WithAuditLogger(l *audit.Logger) Option {
	return func(c *Client) { c.audit = l }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a new Client with the given configuration and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if len(cfg.AccessTypes) == 0 {
		cfg.AccessTypes = DefaultAccessTypes()
	}
	if cfg.APIKeyPrefix == "" {
		cfg.APIKeyPrefix = DefaultAPIKeyPrefix
	}

	c := &Client{
		config:  cfg,
		logger:  zap.NewNop(),
		metrics: metrics.New(false),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}

	if c.jwt == nil && c.apiKeys == nil {
		return nil, fmt.Errorf("iam: at least one of the JWT or API key resolvers is required")
	}
	for _, r := range []ClaimsResolver{c.jwt, c.apiKeys} {
		if a, ok := r.(ConfigApplier); ok {
			a.ApplyConfig(c.config)
		}
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// IsAPIKey reports whether token carries the API key marker.
func (c *Client) IsAPIKey(token string) bool {
	return strings.HasPrefix(token, c.config.APIKeyPrefix)
}

// ResolveClaims dispatches token to the API key or JWT resolver based on its prefix.
func (c *Client) ResolveClaims(ctx context.Context, token string) (claims *Claims, apiOrigin bool, err error) {
	apiOrigin = c.IsAPIKey(token)
	method, resolver := "jwt", c.jwt
	if apiOrigin {
		method, resolver = "apikey", c.apiKeys
	}
	if resolver == nil {
		c.metrics.RecordAuthFailure(method, "not_configured")
		return nil, apiOrigin, Unauthorized("Unsupported credential type")
	}

	claims, err = resolver.Resolve(ctx, token)
	if err != nil {
		reason := "error"
		var e *Error
		if errors.As(err, &e) {
			reason = e.Kind.String()
		}
		c.metrics.RecordAuthFailure(method, reason)
		return nil, apiOrigin, err
	}
	if claims == nil || claims.Username == "" {
		c.metrics.RecordAuthFailure(method, "no_user")
		return nil, apiOrigin, Unauthorized("User not found.")
	}
	return claims, apiOrigin, nil
}

// Close releases resources held by injected resolvers that implement io.Closer.
func (c *Client) Close() error {
	var firstErr error
	for _, svc := range []any{c.jwt, c.apiKeys} {
		if cl, ok := svc.(io.Closer); ok && cl != nil {
			if err := cl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
