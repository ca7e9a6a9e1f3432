// Package jwks resolves bearer JWTs into iam.Claims.
//
// It fetches the issuer's JSON Web Key Set (RFC 7517), selects the key named by
// the token's kid header, and verifies the token (RS256 only) against the
// configured issuer and audience. The verified username is then mapped to the
// user's default account through an iam.AccountStore. Keys are fetched for every
// request; nothing is cached between requests.
package jwks

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	iam "github.com/chimerakang/amp-iam"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
)

// WellKnownPath is appended to the issuer to locate the key set.
const WellKnownPath = "/.well-known/jwks.json"

// maxKeySetBytes bounds how much of the key set response is read.
const maxKeySetBytes = 1 << 20

// Resolver implements iam.ClaimsResolver for JWTs.
type Resolver struct {
	issuer         string
	audience       string
	jwksURL        string
	idpPrefix      string
	requireAccount bool
	accounts       iam.AccountStore
	httpClient     *http.Client
	logger         *zap.Logger
	now            func() time.Time
}

// compile-time check
var _ iam.ClaimsResolver = (*Resolver)(nil)

// Option configures the Resolver.
type Option func(*Resolver)

// WithHTTPClient sets a custom HTTP client for fetching the key set.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.httpClient = c }
}

// WithJWKSURL overrides the key set location.
// Default: issuer + WellKnownPath.
func WithJWKSURL(url string) Option {
	return func(r *Resolver) { r.jwksURL = url }
}

// WithIDPPrefix sets the identity provider prefix stripped from usernames.
// A username "<prefix>_alice" becomes "alice". The prefix is lower-cased.
func WithIDPPrefix(prefix string) Option {
	return func(r *Resolver) { r.idpPrefix = strings.ToLower(prefix) }
}

// WithRequireAccount makes a missing account record a ClaimError instead of
// falling back to the default account.
func WithRequireAccount(require bool) Option {
	return func(r *Resolver) { r.requireAccount = require }
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithClock overrides the time source used for exp/nbf/iat validation.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a JWT resolver for tokens issued by issuer for audience.
func NewResolver(issuer, audience string, accounts iam.AccountStore, opts ...Option) *Resolver {
	r := &Resolver{
		issuer:     issuer,
		audience:   audience,
		jwksURL:    strings.TrimSuffix(issuer, "/") + WellKnownPath,
		accounts:   accounts,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve verifies token and returns the caller's claims.
func (r *Resolver) Resolve(ctx context.Context, token string) (*iam.Claims, error) {
	if token == "" {
		return nil, iam.ClaimError("No Valid Access Token Found", nil)
	}

	set, err := r.fetchKeySet(ctx)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(r.audience),
		jwt.WithIssuer(r.issuer),
		jwt.WithTimeFunc(r.now),
	)

	unverified, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		r.logger.Info("jwt header decode failed", zap.Error(err))
		return nil, iam.ClaimError("Invalid JWT token", err)
	}
	kid, _ := unverified.Header["kid"].(string)

	pub, err := rsaKey(set, kid)
	if err != nil {
		r.logger.Info("no rsa key for token", zap.String("kid", kid), zap.Error(err))
		return nil, iam.ClaimError("No valid RSA key found in JWKS", err)
	}

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	}); err != nil {
		msg := verifyMessage(err)
		r.logger.Info("jwt verification failed", zap.String("reason", msg), zap.Error(err))
		return nil, iam.ClaimError(msg, err)
	}

	user := username(claims)
	if user == "" {
		return nil, iam.ClaimError("Invalid JWT claims", errors.New("token has no username"))
	}
	if r.idpPrefix != "" {
		user = strings.TrimPrefix(user, r.idpPrefix+"_")
	}

	account, rateLimit, err := r.defaultAccount(ctx, user)
	if err != nil {
		return nil, err
	}

	return &iam.Claims{
		Username:      user,
		Account:       account,
		AllowedAccess: []iam.AccessType{iam.AccessFullAccess},
		RateLimit:     rateLimit,
	}, nil
}

// fetchKeySet downloads and parses the key set.
func (r *Resolver) fetchKeySet(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("iam/jwks: create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, iam.ClaimError(fmt.Sprintf("Failed to retrieve JWKS from %s", r.jwksURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, iam.ClaimError(
			fmt.Sprintf("Failed to retrieve JWKS from %s, status code: %d", r.jwksURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, iam.ClaimError(fmt.Sprintf("Failed to retrieve JWKS from %s", r.jwksURL), err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		r.logger.Warn("jwks response did not parse", zap.String("url", r.jwksURL), zap.Error(err))
		return nil, iam.ClaimError("Invalid JWKS response", err)
	}
	return set, nil
}

func rsaKey(set jwk.Set, kid string) (*rsa.PublicKey, error) {
	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("kid %q not in key set", kid)
	}
	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("kid %q: %w", kid, err)
	}
	pub, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("kid %q is %T, not an RSA public key", kid, raw)
	}
	return pub, nil
}

// verifyMessage maps a verification failure to its caller-facing message.
func verifyMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "JWT token has expired"
	case errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "Invalid JWT claims"
	}
	return "Invalid JWT token"
}

func username(m jwt.MapClaims) string {
	if v, ok := m["username"].(string); ok && v != "" {
		return v
	}
	if v, ok := m["sub"].(string); ok {
		return v
	}
	return ""
}

// defaultAccount returns the account flagged as default and its quota.
func (r *Resolver) defaultAccount(ctx context.Context, user string) (string, iam.RateLimit, error) {
	var (
		accounts []iam.Account
		found    bool
	)
	if r.accounts != nil {
		var err error
		accounts, found, err = r.accounts.Accounts(ctx, user)
		if err != nil {
			return "", iam.RateLimit{}, fmt.Errorf("iam/jwks: account lookup for %q: %w", user, err)
		}
	}
	if !found {
		if r.requireAccount {
			return "", iam.RateLimit{}, iam.ClaimError("User has no account record", nil)
		}
		r.logger.Info("user has no accounts", zap.String("user", user))
	}

	for _, a := range accounts {
		if !a.IsDefault || a.ID == "" {
			continue
		}
		if a.RateLimit != nil && a.RateLimit.Period != "" {
			return a.ID, *a.RateLimit, nil
		}
		return a.ID, iam.NoRateLimit(), nil
	}
	return iam.DefaultAccount, iam.NoRateLimit(), nil
}
