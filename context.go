package iam

import "context"

type ctxKey string

const (
	ctxKeyClaims    ctxKey = "iam_claims"
	ctxKeyAPIOrigin ctxKey = "iam_api_origin"
	ctxKeyRequestID ctxKey = "iam_request_id"
	ctxKeyToken     ctxKey = "iam_access_token"
)

// WithClaims stores the resolved claims in the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

// ClaimsFromContext extracts the resolved claims from the context.
func ClaimsFromContext(ctx context.Context) *Claims {
	v, _ := ctx.Value(ctxKeyClaims).(*Claims)
	return v
}

// UsernameFromContext returns the authenticated principal, or "".
func UsernameFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Username
	}
	return ""
}

// WithAPIOrigin records whether the request was authenticated with an API key.
func WithAPIOrigin(ctx context.Context, apiOrigin bool) context.Context {
	return context.WithValue(ctx, ctxKeyAPIOrigin, apiOrigin)
}

// APIOriginFromContext reports whether the request was authenticated with an API key.
func APIOriginFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyAPIOrigin).(bool)
	return v
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// WithAccessToken stores the caller's bearer token in the context.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyToken, token)
}

// AccessTokenFromContext returns the caller's bearer token, or "".
func AccessTokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyToken).(string)
	return v
}
