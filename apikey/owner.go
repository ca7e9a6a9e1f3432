package apikey

import (
	"fmt"
	"regexp"

	iam "github.com/chimerakang/amp-iam"
)

// Key kinds encoded in an api_owner_id such as "alice/ownerKey/7f3c".
const (
	KindOwner    = "owner"
	KindDelegate = "delegate"
	KindSystem   = "system"
)

var keyKindPattern = regexp.MustCompile(`/(.*?)Key/`)

// KeyKind extracts the key kind from an api_owner_id. It returns "" when the id
// carries no kind.
func KeyKind(apiOwnerID string) string {
	m := keyKindPattern.FindStringSubmatch(apiOwnerID)
	if m == nil {
		return ""
	}
	return m[1]
}

// Principal returns the identity a registry record acts as. An unknown kind or a
// missing identity field is a registry integrity problem and yields an
// UnknownAPIUser error.
func Principal(rec *iam.APIKeyRecord) (string, error) {
	kind := KeyKind(rec.APIOwnerID)

	var user string
	switch kind {
	case KindOwner:
		user = rec.Owner
	case KindDelegate:
		user = rec.Delegate
	case KindSystem:
		user = rec.SystemID
	default:
		return "", iam.UnknownAPIUserError(fmt.Sprintf("unknown or missing key type %q in api_owner_id", kind))
	}

	if user == "" {
		return "", iam.UnknownAPIUserError(fmt.Sprintf("no %s identity on key record", kind))
	}
	return user, nil
}
