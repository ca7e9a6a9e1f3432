package fake_test

import (
	"context"
	"errors"
	"testing"
	"time"

	iam "github.com/chimerakang/amp-iam"
	"github.com/chimerakang/amp-iam/apikey"
	"github.com/chimerakang/amp-iam/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_KnownToken(t *testing.T) {
	s := fake.New(fake.WithUser("tok-alice", iam.Claims{Username: "alice", Account: "acct-1"}))

	claims, err := s.Resolver().Resolve(context.Background(), "tok-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "acct-1", claims.Account)
}

func TestResolver_UnknownToken(t *testing.T) {
	s := fake.New()

	_, err := s.Resolver().Resolve(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, iam.IsKind(err, iam.KindClaim))
}

func TestAccountStore(t *testing.T) {
	s := fake.New(fake.WithAccounts("alice",
		iam.Account{ID: "a1"},
		iam.Account{ID: "a2", IsDefault: true},
	))

	accts, found, err := s.AccountStore().Accounts(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, accts, 2)

	_, found, err = s.AccountStore().Accounts(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeyRegistry_LookupByDigest(t *testing.T) {
	s := fake.New(fake.WithAPIKey("amp-v1-secret", iam.APIKeyRecord{APIOwnerID: "alice/ownerKey/1"}))
	reg := s.KeyRegistry()

	rec, err := reg.Lookup(context.Background(), "amp-v1-secret")
	require.NoError(t, err)
	assert.Nil(t, rec, "versioned keys are stored by digest, not by value")

	rec, err = reg.Lookup(context.Background(), apikey.Digest("amp-v1-secret"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice/ownerKey/1", rec.APIOwnerID)
}

func TestKeyRegistry_LegacyAndTouch(t *testing.T) {
	s := fake.New(fake.WithAPIKey("amp-legacy", iam.APIKeyRecord{APIOwnerID: "alice/ownerKey/1"}))
	reg := s.KeyRegistry()

	rec, err := reg.Lookup(context.Background(), "amp-legacy")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice/ownerKey/1", rec.APIOwnerID)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Touch(context.Background(), "alice/ownerKey/1", at))

	got, ok := s.LastAccessed("alice/ownerKey/1")
	assert.True(t, ok)
	assert.Equal(t, at, got)

	assert.Error(t, reg.Touch(context.Background(), "missing", at))
}

func TestUsageStore(t *testing.T) {
	daily := 3.5
	s := fake.New(fake.WithUsage("alice", iam.Usage{DailyCost: &daily}))

	u, err := s.UsageStore().Usage(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 3.5, *u.DailyCost)

	u, err = s.UsageStore().Usage(context.Background(), "bob")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUsageStore_Error(t *testing.T) {
	s := fake.New(fake.WithUsageError(errors.New("boom")))

	_, err := s.UsageStore().Usage(context.Background(), "alice")
	assert.EqualError(t, err, "boom")
}

func TestNewClient_ResolvesBothOrigins(t *testing.T) {
	c := fake.NewClient(iam.Config{},
		fake.WithUser("jwt-alice", iam.Claims{Username: "alice"}),
		fake.WithAPIKey("amp-legacy", iam.APIKeyRecord{
			APIOwnerID:  "bob/ownerKey/9",
			Active:      true,
			AccessTypes: []iam.AccessType{iam.AccessFullAccess},
			AccountID:   "acct-b",
			Owner:       "bob",
		}),
	)
	require.NotNil(t, c)

	claims, apiOrigin, err := c.ResolveClaims(context.Background(), "jwt-alice")
	require.NoError(t, err)
	assert.False(t, apiOrigin)
	assert.Equal(t, "alice", claims.Username)

	claims, apiOrigin, err = c.ResolveClaims(context.Background(), "amp-legacy")
	require.NoError(t, err)
	assert.True(t, apiOrigin)
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, "acct-b", claims.Account)
}
