// Package ginmw serves iam pipeline handlers from Gin.
//
// Handle adapts an iam.LambdaHandler to a Gin route. Auth and RequireAccess are
// plain Gin middleware for routes that want claims without the full pipeline.
package ginmw

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iam "github.com/chimerakang/amp-iam"
)

// Context keys for storing IAM data in gin.Context.
const (
	KeyClaims    = "iam_claims"
	KeyUsername  = "iam_username"
	KeyAPIOrigin = "iam_api_origin"
)

// RequestIDHeader is copied into the event's request ID when present.
const RequestIDHeader = "X-Request-Id"

// EventFromRequest converts the Gin request into a pipeline event.
func EventFromRequest(c *gin.Context) (*iam.Event, error) {
	headers := make(map[string]string, len(c.Request.Header))
	for k, v := range c.Request.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ",")
	}

	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, err
		}
	}

	path := c.Request.URL.Path
	return &iam.Event{
		Headers: headers,
		Path:    path,
		Body:    string(body),
		RequestContext: &iam.RequestContext{
			RequestID: c.GetHeader(RequestIDHeader),
			HTTP:      &iam.HTTPContext{Method: c.Request.Method, Path: path},
		},
	}, nil
}

// Handle serves h on a Gin route. Untyped handler errors become a bare 500 and
// are attached to the Gin context.
func Handle(h iam.LambdaHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := EventFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
			return
		}

		resp, err := h(c.Request.Context(), event)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Data(resp.StatusCode, "application/json", []byte(resp.Body))
	}
}

// AuthOption configures Auth middleware behavior.
type AuthOption func(*authConfig)

type authConfig struct {
	excludedPaths map[string]bool
}

// WithExcludedPaths sets paths that skip authentication (e.g. health checks).
func WithExcludedPaths(paths ...string) AuthOption {
	return func(cfg *authConfig) {
		for _, p := range paths {
			cfg.excludedPaths[p] = true
		}
	}
}

// Auth returns Gin middleware that resolves the bearer token via client.
// On success, it stores claims in the Gin context (GetClaims, GetUsername) and in
// the request context (iam.ClaimsFromContext).
func Auth(client *iam.Client, opts ...AuthOption) gin.HandlerFunc {
	cfg := &authConfig{excludedPaths: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}

	return func(c *gin.Context) {
		if cfg.excludedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		token, err := iam.ExtractBearerToken(map[string]string{"authorization": c.GetHeader("Authorization")})
		if err != nil {
			abort(c, err)
			return
		}

		ctx := c.Request.Context()
		claims, apiOrigin, err := client.ResolveClaims(ctx, token)
		if err != nil {
			abort(c, err)
			return
		}

		ctx = iam.WithClaims(ctx, claims)
		ctx = iam.WithAPIOrigin(ctx, apiOrigin)
		ctx = iam.WithAccessToken(ctx, token)
		c.Request = c.Request.WithContext(ctx)

		c.Set(KeyClaims, claims)
		c.Set(KeyUsername, claims.Username)
		c.Set(KeyAPIOrigin, apiOrigin)

		c.Next()
	}
}

// RequireAccess returns Gin middleware that admits callers carrying any of types.
// Requires Auth middleware to run first.
func RequireAccess(types ...iam.AccessType) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !claims.HasAccess(types...) {
			abort(c, iam.Unauthorized("User does not have permission to perform the operation."))
			return
		}
		c.Next()
	}
}

// abort writes the envelope body of a typed failure, or a bare 500.
func abort(c *gin.Context, err error) {
	var e *iam.Error
	if !errors.As(err, &e) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	resp := iam.ErrorResponse(e)
	c.Abort()
	c.Data(resp.StatusCode, "application/json", []byte(resp.Body))
}

// --- Context helpers ---

// GetClaims returns the full claims from the Gin context.
func GetClaims(c *gin.Context) *iam.Claims {
	v, _ := c.Get(KeyClaims)
	cl, _ := v.(*iam.Claims)
	return cl
}

// GetUsername returns the authenticated principal from the Gin context.
func GetUsername(c *gin.Context) string {
	return c.GetString(KeyUsername)
}

// IsAPIOrigin reports whether the caller authenticated with an API key.
func IsAPIOrigin(c *gin.Context) bool {
	return c.GetBool(KeyAPIOrigin)
}
