// Package grpcmw provides gRPC interceptors that resolve callers through an
// *iam.Client.
//
// The bearer token is read from the "authorization" metadata entry and
// dispatched to the JWT or API key resolver exactly as the HTTP pipeline does.
package grpcmw

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	iam "github.com/chimerakang/amp-iam"
)

// AuthOption configures auth interceptor behavior.
type AuthOption func(*authConfig)

type authConfig struct {
	excludedMethods map[string]bool
}

// WithExcludedMethods sets gRPC methods that skip authentication.
// Methods should be fully qualified (e.g. "/package.Service/Method").
func WithExcludedMethods(methods ...string) AuthOption {
	return func(cfg *authConfig) {
		for _, m := range methods {
			cfg.excludedMethods[m] = true
		}
	}
}

func newAuthConfig(opts []AuthOption) *authConfig {
	cfg := &authConfig{excludedMethods: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// UnaryAuth returns a unary server interceptor that resolves the caller's claims.
// On success the claims, API origin and access token are stored in the context.
func UnaryAuth(client *iam.Client, opts ...AuthOption) grpc.UnaryServerInterceptor {
	cfg := newAuthConfig(opts)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if cfg.excludedMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		ctx, err := authenticate(ctx, client)
		if err != nil {
			return nil, err
		}

		return handler(ctx, req)
	}
}

// StreamAuth returns a stream server interceptor that resolves the caller's claims.
func StreamAuth(client *iam.Client, opts ...AuthOption) grpc.StreamServerInterceptor {
	cfg := newAuthConfig(opts)

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if cfg.excludedMethods[info.FullMethod] {
			return handler(srv, ss)
		}

		ctx, err := authenticate(ss.Context(), client)
		if err != nil {
			return err
		}

		wrapped := &wrappedStream{ServerStream: ss, ctx: ctx}
		return handler(srv, wrapped)
	}
}

// UnaryRequireAccess returns a unary interceptor admitting callers that carry
// any of types. Requires UnaryAuth to run first.
func UnaryRequireAccess(types ...iam.AccessType) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		claims := iam.ClaimsFromContext(ctx)
		if claims == nil {
			return nil, status.Error(codes.Unauthenticated, "missing claims")
		}
		if !claims.HasAccess(types...) {
			return nil, status.Error(codes.PermissionDenied, "User does not have permission to perform the operation.")
		}
		return handler(ctx, req)
	}
}

// --- internal helpers ---

func authenticate(ctx context.Context, client *iam.Client) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}

	headers := map[string]string{}
	if vals := md.Get("authorization"); len(vals) > 0 {
		headers["authorization"] = vals[0]
	}
	token, err := iam.ExtractBearerToken(headers)
	if err != nil {
		return ctx, toStatus(err)
	}

	claims, apiOrigin, err := client.ResolveClaims(ctx, token)
	if err != nil {
		return ctx, toStatus(err)
	}

	ctx = iam.WithClaims(ctx, claims)
	ctx = iam.WithAPIOrigin(ctx, apiOrigin)
	ctx = iam.WithAccessToken(ctx, token)

	return ctx, nil
}

// toStatus maps a pipeline failure to a gRPC status. Only the public message
// of typed failures leaves the process.
func toStatus(err error) error {
	var e *iam.Error
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, "internal error")
	}
	switch e.StatusCode() {
	case http.StatusUnauthorized:
		return status.Error(codes.Unauthenticated, e.Public())
	case http.StatusBadRequest:
		return status.Error(codes.InvalidArgument, e.Public())
	case http.StatusNotFound:
		return status.Error(codes.NotFound, e.Public())
	}
	return status.Error(codes.Internal, e.Public())
}

// wrappedStream wraps grpc.ServerStream to override Context().
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
