// Package admin asks the platform's admin service whether a caller is an administrator.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	iam "github.com/chimerakang/amp-iam"
)

// AuthPath is appended to the API base URL.
const AuthPath = "/amplifymin/auth"

// Verifier calls the admin auth endpoint.
type Verifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.httpClient = c }
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// New creates a Verifier for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Verifier {
	v := &Verifier{
		endpoint:   strings.TrimSuffix(baseURL, "/") + AuthPath,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

type authRequest struct {
	Data struct {
		Purpose string `json:"purpose"`
	} `json:"data"`
}

type authResponse struct {
	Success bool `json:"success"`
	IsAdmin bool `json:"isAdmin"`
}

// VerifyUserAsAdmin reports whether the bearer of accessToken is an admin for
// purpose. Any transport or decoding failure yields false.
func (v *Verifier) VerifyUserAsAdmin(ctx context.Context, accessToken, purpose string) bool {
	ok, err := v.verify(ctx, accessToken, purpose)
	if err != nil {
		v.logger.Warn("admin verification failed", zap.String("purpose", purpose), zap.Error(err))
		return false
	}
	return ok
}

func (v *Verifier) verify(ctx context.Context, accessToken, purpose string) (bool, error) {
	var body authRequest
	body.Data.Purpose = purpose
	payload, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("admin: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("admin: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("admin: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("admin: read response: %w", err)
	}

	var out authResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, fmt.Errorf("admin: decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode == http.StatusOK && out.Success && out.IsAdmin, nil
}

// RequireAdmin returns a permission checker that grants the listed routes only
// to admins for purpose. Other routes are not gated. The caller's token is read
// from the request context.
func RequireAdmin(v *Verifier, purpose string, routes ...string) iam.PermissionChecker {
	gated := make(map[string]bool, len(routes))
	for _, r := range routes {
		gated[r] = true
	}
	return checker{v: v, purpose: purpose, gated: gated}
}

type checker struct {
	v       *Verifier
	purpose string
	gated   map[string]bool
}

func (c checker) Prepare(ctx context.Context, _, route, _ string, _ map[string]any) iam.Decision {
	if !c.gated[route] {
		return nil
	}
	token := iam.AccessTokenFromContext(ctx)
	return func(string, map[string]any) bool {
		return token != "" && c.v.VerifyUserAsAdmin(ctx, token, c.purpose)
	}
}
