package apikey

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// Prefix marks every API key, legacy or versioned.
	Prefix = "amp-"
	// V1Prefix marks a versioned key whose registry entry holds only the digest.
	V1Prefix = Prefix + versionMarker

	versionMarker = "v1-"

	entropyBytes = 32
	digestBytes  = 64
)

// TokenV1 is a versioned API key. Raw is handed to the caller once; Digest is
// what the registry stores and indexes.
type TokenV1 struct {
	Raw    string
	Digest string
}

// NewTokenV1 generates a fresh versioned key.
func NewTokenV1() (*TokenV1, error) {
	b := make([]byte, entropyBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("iam/apikey: generate key: %w", err)
	}
	raw := V1Prefix + base64.RawURLEncoding.EncodeToString(b)
	return &TokenV1{Raw: raw, Digest: Digest(raw)}, nil
}

// ParseTokenV1 wraps a raw versioned key presented by a caller.
func ParseTokenV1(raw string) (*TokenV1, error) {
	if !IsVersioned(raw) {
		return nil, fmt.Errorf("iam/apikey: key must start with %q", V1Prefix)
	}
	return &TokenV1{Raw: raw, Digest: Digest(raw)}, nil
}

// Validate reports whether raw is the key this token was created from.
func (t *TokenV1) Validate(raw string) bool {
	return subtle.ConstantTimeCompare([]byte(t.Digest), []byte(Digest(raw))) == 1
}

// Digest returns the lowercase hex SHAKE-256 digest (64 bytes) of raw.
// Keys carry enough entropy that no salt is mixed in.
func Digest(raw string) string {
	out := make([]byte, digestBytes)
	sha3.ShakeSum256(out, []byte(raw))
	return hex.EncodeToString(out)
}

// VersionedPrefix returns the versioned key marker for an API key prefix.
func VersionedPrefix(prefix string) string {
	return prefix + versionMarker
}

// IsVersioned reports whether raw uses the versioned key format.
func IsVersioned(raw string) bool {
	return strings.HasPrefix(raw, V1Prefix)
}

// LookupValue returns the registry index value for a presented key: the digest
// for versioned keys, the key itself for legacy keys.
func LookupValue(raw string) string {
	return lookupValue(raw, V1Prefix)
}

func lookupValue(raw, versioned string) string {
	if strings.HasPrefix(raw, versioned) {
		return Digest(raw)
	}
	return raw
}
