// Package fake provides in-memory implementations of the iam store interfaces
// for testing.
//
// Use fake.NewClient() in unit tests to run the full pipeline without network
// calls or external dependencies.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	iam "github.com/chimerakang/amp-iam"
	"github.com/chimerakang/amp-iam/apikey"
	"github.com/chimerakang/amp-iam/ratelimit"
)

// Option configures the fake state.
type Option func(*State)

// State holds every fake record. Its accessors return views implementing the
// iam store interfaces.
type State struct {
	mu       sync.RWMutex
	users    map[string]*iam.Claims       // token → claims
	accounts map[string][]iam.Account     // username → accounts
	keys     map[string]*iam.APIKeyRecord // lookup value → record
	usage    map[string]*iam.Usage        // principal → usage
	usageErr error
	touched  map[string]time.Time // api_owner_id → last access
}

// WithUser registers claims returned for a bearer token by the fake JWT resolver.
func WithUser(token string, claims iam.Claims) Option {
	return func(s *State) {
		c := claims
		s.users[token] = &c
	}
}

// WithAccounts sets the account records of a user.
func WithAccounts(username string, accounts ...iam.Account) Option {
	return func(s *State) { s.accounts[username] = accounts }
}

// WithAPIKey registers a registry record under the lookup value of key.
// Versioned keys are stored by digest, legacy keys by value.
func WithAPIKey(key string, rec iam.APIKeyRecord) Option {
	return func(s *State) {
		r := rec
		s.keys[apikey.LookupValue(key)] = &r
	}
}

// WithRegistryEntry registers a registry record under an explicit lookup value.
func WithRegistryEntry(lookupValue string, rec iam.APIKeyRecord) Option {
	return func(s *State) {
		r := rec
		s.keys[lookupValue] = &r
	}
}

// WithUsage sets the accumulated spend of a principal.
func WithUsage(principal string, u iam.Usage) Option {
	return func(s *State) {
		cp := u
		s.usage[principal] = &cp
	}
}

// WithUsageError makes every usage lookup fail with err.
func WithUsageError(err error) Option {
	return func(s *State) { s.usageErr = err }
}

// New creates fake state.
func New(opts ...Option) *State {
	s := &State{
		users:    make(map[string]*iam.Claims),
		accounts: make(map[string][]iam.Account),
		keys:     make(map[string]*iam.APIKeyRecord),
		usage:    make(map[string]*iam.Usage),
		touched:  make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewClient creates an *iam.Client wired to in-memory fakes: bearer tokens
// registered with WithUser resolve as JWT callers, and API keys go through the
// real apikey and ratelimit packages backed by the fake stores. Accepted access
// types and the key prefix come from cfg.
func NewClient(cfg iam.Config, opts ...Option) *iam.Client {
	s := New(opts...)
	c, _ := iam.NewClient(cfg,
		iam.WithJWTResolver(s.Resolver()),
		iam.WithAPIKeyResolver(apikey.NewResolver(s.KeyRegistry(), ratelimit.New(s.UsageStore()), nil)),
	)
	return c
}

// Resolver returns a ClaimsResolver that treats the token as a lookup key.
func (s *State) Resolver() iam.ClaimsResolver { return &fakeResolver{s: s} }

// AccountStore returns the fake account store.
func (s *State) AccountStore() iam.AccountStore { return &fakeAccounts{s: s} }

// KeyRegistry returns the fake API key registry.
func (s *State) KeyRegistry() iam.KeyRegistry { return &fakeKeys{s: s} }

// UsageStore returns the fake usage store.
func (s *State) UsageStore() iam.UsageStore { return &fakeUsage{s: s} }

// LastAccessed returns when the key was last touched.
func (s *State) LastAccessed(apiOwnerID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.touched[apiOwnerID]
	return t, ok
}

// SetUsage replaces the spend of a principal.
func (s *State) SetUsage(principal string, u iam.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[principal] = &u
}

// --- ClaimsResolver ---

type fakeResolver struct{ s *State }

func (f *fakeResolver) Resolve(_ context.Context, token string) (*iam.Claims, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	c, ok := f.s.users[token]
	if !ok {
		return nil, iam.ClaimError("Invalid JWT token", fmt.Errorf("iam/fake: unknown token %q", token))
	}
	out := *c
	return &out, nil
}

// --- AccountStore ---

type fakeAccounts struct{ s *State }

func (f *fakeAccounts) Accounts(_ context.Context, username string) ([]iam.Account, bool, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	accts, ok := f.s.accounts[username]
	if !ok {
		return nil, false, nil
	}
	return append([]iam.Account(nil), accts...), true, nil
}

// --- KeyRegistry ---

type fakeKeys struct{ s *State }

func (f *fakeKeys) Lookup(_ context.Context, lookupValue string) (*iam.APIKeyRecord, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	rec, ok := f.s.keys[lookupValue]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (f *fakeKeys) Touch(_ context.Context, apiOwnerID string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	for _, rec := range f.s.keys {
		if rec.APIOwnerID == apiOwnerID {
			rec.LastAccessed = at
			f.s.touched[apiOwnerID] = at
			return nil
		}
	}
	return fmt.Errorf("iam/fake: key %q not found", apiOwnerID)
}

// --- UsageStore ---

type fakeUsage struct{ s *State }

func (f *fakeUsage) Usage(_ context.Context, principal string) (*iam.Usage, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	if f.s.usageErr != nil {
		return nil, f.s.usageErr
	}
	u, ok := f.s.usage[principal]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}
