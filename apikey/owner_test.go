package apikey_test

import (
	"testing"

	iam "github.com/chimerakang/amp-iam"
	"github.com/chimerakang/amp-iam/apikey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyKind(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"alice/ownerKey/1", "owner"},
		{"alice/delegateKey/1", "delegate"},
		{"svc/systemKey/abc", "system"},
		{"alice/ownerKey/x/systemKey/", "owner"},
		{"no-kind-here", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, apikey.KeyKind(tt.id), tt.id)
	}
}

func TestPrincipal(t *testing.T) {
	rec := &iam.APIKeyRecord{Owner: "alice", Delegate: "dave", SystemID: "sys-1"}

	tests := []struct {
		id   string
		want string
	}{
		{"alice/ownerKey/1", "alice"},
		{"alice/delegateKey/1", "dave"},
		{"alice/systemKey/1", "sys-1"},
	}
	for _, tt := range tests {
		r := *rec
		r.APIOwnerID = tt.id
		got, err := apikey.Principal(&r)
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.want, got)
	}
}

func TestPrincipal_UnknownUser(t *testing.T) {
	tests := []iam.APIKeyRecord{
		{APIOwnerID: "alice/adminKey/1", Owner: "alice"},
		{APIOwnerID: "alice", Owner: "alice"},
		{APIOwnerID: "alice/delegateKey/1", Owner: "alice"},
	}
	for _, rec := range tests {
		_, err := apikey.Principal(&rec)
		assert.True(t, iam.IsKind(err, iam.KindUnknownAPIUser), rec.APIOwnerID)
	}
}
