package iam

import "time"

// DefaultAccount is the account assigned to principals that have no account flagged as default.
const DefaultAccount = "general_account"

// Period is the bucket a rate limit is accounted against.
type Period string

const (
	PeriodUnlimited Period = "Unlimited"
	PeriodHourly    Period = "Hourly"
	PeriodDaily     Period = "Daily"
	PeriodMonthly   Period = "Monthly"
)

// Valid reports whether p is one of the known periods.
func (p Period) Valid() bool {
	switch p {
	case PeriodUnlimited, PeriodHourly, PeriodDaily, PeriodMonthly:
		return true
	}
	return false
}

// RateLimit is a usage quota. Rate is ignored when Period is Unlimited.
type RateLimit struct {
	Period Period   `json:"period"`
	Rate   *float64 `json:"rate"`
}

// NoRateLimit returns the quota applied when a principal has none configured.
func NoRateLimit() RateLimit {
	return RateLimit{Period: PeriodUnlimited}
}

// AccessType is a capability tag carried by claims and API keys.
type AccessType string

const (
	AccessFullAccess     AccessType = "full_access"
	AccessChat           AccessType = "chat"
	AccessAssistants     AccessType = "assistants"
	AccessFileUpload     AccessType = "file_upload"
	AccessShare          AccessType = "share"
	AccessDualEmbedding  AccessType = "dual_embedding"
	AccessAPIKey         AccessType = "api_key"
	AccessArtifacts      AccessType = "artifacts"
	AccessAdmin          AccessType = "admin"
	AccessDataDisclosure AccessType = "data-disclosure"
	AccessEmbedding      AccessType = "embedding"
)

// Claims is the resolved identity and entitlement record for one request.
type Claims struct {
	Username      string
	Account       string
	AllowedAccess []AccessType
	RateLimit     RateLimit

	// Set only for API key callers.
	APIKeyID string
	Purpose  string
}

// HasAccess reports whether the claims carry any of the given access types.
// full_access satisfies every request.
func (c *Claims) HasAccess(types ...AccessType) bool {
	for _, have := range c.AllowedAccess {
		if have == AccessFullAccess {
			return true
		}
		for _, want := range types {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Account is one of a user's account sub-records.
type Account struct {
	ID        string
	IsDefault bool
	RateLimit *RateLimit
}

// APIKeyRecord is a registry entry for a long-lived API key.
type APIKeyRecord struct {
	// APIOwnerID encodes the key kind, e.g. "alice/ownerKey/42".
	APIOwnerID     string
	Active         bool
	ExpirationDate string // YYYY-MM-DD, empty when the key never expires
	AccessTypes    []AccessType
	AccountID      string
	RateLimit      RateLimit
	Owner          string
	Delegate       string
	SystemID       string
	Purpose        string
	LastAccessed   time.Time
}

// Usage is accumulated spend for a principal.
//
// A nil HourlyCost means the column is absent. A non-nil HourlyCost shorter than
// the current hour index (including an empty slice, which stores use for data that
// is not a list) is malformed.
type Usage struct {
	HourlyCost  []float64
	DailyCost   *float64
	MonthlyCost *float64
}
