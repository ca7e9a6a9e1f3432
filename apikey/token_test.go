package apikey_test

import (
	"strings"
	"testing"

	"github.com/chimerakang/amp-iam/apikey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenV1(t *testing.T) {
	tok, err := apikey.NewTokenV1()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(tok.Raw, apikey.V1Prefix))
	assert.Len(t, tok.Digest, 128)
	assert.Equal(t, apikey.Digest(tok.Raw), tok.Digest)
	assert.True(t, tok.Validate(tok.Raw))
	assert.False(t, tok.Validate(tok.Raw+"x"))

	other, err := apikey.NewTokenV1()
	require.NoError(t, err)
	assert.NotEqual(t, tok.Raw, other.Raw)
}

func TestParseTokenV1(t *testing.T) {
	tok, err := apikey.ParseTokenV1("amp-v1-abc")
	require.NoError(t, err)
	assert.Equal(t, apikey.Digest("amp-v1-abc"), tok.Digest)

	_, err = apikey.ParseTokenV1("amp-abc")
	assert.Error(t, err)
}

func TestDigest_Deterministic(t *testing.T) {
	a := apikey.Digest("amp-v1-key")
	assert.Equal(t, a, apikey.Digest("amp-v1-key"))
	assert.NotEqual(t, a, apikey.Digest("amp-v1-kez"))
	assert.Equal(t, strings.ToLower(a), a)
}

func TestLookupValue(t *testing.T) {
	assert.Equal(t, "amp-legacy", apikey.LookupValue("amp-legacy"))
	assert.Equal(t, apikey.Digest("amp-v1-new"), apikey.LookupValue("amp-v1-new"))
	assert.True(t, apikey.IsVersioned("amp-v1-new"))
	assert.False(t, apikey.IsVersioned("amp-v2-new"))
	assert.Equal(t, apikey.V1Prefix, apikey.VersionedPrefix(apikey.Prefix))
	assert.Equal(t, "sk-v1-", apikey.VersionedPrefix("sk-"))
}
