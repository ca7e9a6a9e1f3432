package iam

import (
	"maps"
	"slices"
	"strings"
)

// DefaultAPIKeyPrefix marks tokens issued as API keys.
const DefaultAPIKeyPrefix = "amp-"

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>" header.
// Header names are matched case-insensitively. When several spellings are
// present, the lower-case "authorization" wins, then the remaining names in
// sorted order.
func ExtractBearerToken(headers map[string]string) (string, error) {
	value, found := headers["authorization"]
	if !found {
		for _, k := range slices.Sorted(maps.Keys(headers)) {
			if strings.EqualFold(k, "authorization") {
				value, found = headers[k], true
				break
			}
		}
	}
	if !found {
		return "", Unauthorized("No Access Token Found")
	}

	parts := strings.Fields(value)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", Unauthorized("No Access Token Found")
	}
	return parts[1], nil
}
