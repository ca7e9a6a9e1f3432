// Package config reads deployment settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	iam "github.com/chimerakang/amp-iam"
)

// Environment variable names.
const (
	EnvIssuerURL      = "OAUTH_ISSUER_BASE_URL"
	EnvAudience       = "OAUTH_AUDIENCE"
	EnvAccountsTable  = "ACCOUNTS_DYNAMO_TABLE"
	EnvAPIKeysTable   = "API_KEYS_DYNAMODB_TABLE"
	EnvCostTable      = "COST_CALCULATIONS_DYNAMO_TABLE"
	EnvIDPPrefix      = "IDP_PREFIX"
	EnvAPIBaseURL     = "API_BASE_URL"
	EnvRulesFile      = "VALIDATION_RULES_FILE"
	EnvAccessTypes    = "API_ACCESS_TYPES"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvAWSRegion      = "AWS_REGION"
	EnvDynamoEndpoint = "DYNAMODB_ENDPOINT"
)

// Config holds the settings needed to wire an iam.Client.
type Config struct {
	IssuerURL     string
	Audience      string
	AccountsTable string
	APIKeysTable  string
	// CostTable is required unless RedisAddr selects the Redis usage store.
	CostTable string
	// IDPPrefix is lower-cased.
	IDPPrefix  string
	APIBaseURL string
	RulesFile  string
	// AccessTypes extends the accepted API access types (comma separated).
	AccessTypes    []iam.AccessType
	RedisAddr      string
	AWSRegion      string
	DynamoEndpoint string
}

// Require reports every unset variable in names as one error.
func Require(names ...string) error {
	var result *multierror.Error
	for _, name := range names {
		if os.Getenv(name) == "" {
			result = multierror.Append(result, fmt.Errorf("Env Var: '%s' is not set", name))
		}
	}
	return result.ErrorOrNil()
}

// FromEnv reads Config from the environment.
func FromEnv() (*Config, error) {
	required := []string{EnvIssuerURL, EnvAudience, EnvAccountsTable, EnvAPIKeysTable}
	if os.Getenv(EnvRedisAddr) == "" {
		required = append(required, EnvCostTable)
	}
	if err := Require(required...); err != nil {
		return nil, fmt.Errorf("iam/config: %w", err)
	}

	return &Config{
		IssuerURL:      os.Getenv(EnvIssuerURL),
		Audience:       os.Getenv(EnvAudience),
		AccountsTable:  os.Getenv(EnvAccountsTable),
		APIKeysTable:   os.Getenv(EnvAPIKeysTable),
		CostTable:      os.Getenv(EnvCostTable),
		IDPPrefix:      strings.ToLower(os.Getenv(EnvIDPPrefix)),
		APIBaseURL:     os.Getenv(EnvAPIBaseURL),
		RulesFile:      os.Getenv(EnvRulesFile),
		AccessTypes:    parseAccessTypes(os.Getenv(EnvAccessTypes)),
		RedisAddr:      os.Getenv(EnvRedisAddr),
		AWSRegion:      os.Getenv(EnvAWSRegion),
		DynamoEndpoint: os.Getenv(EnvDynamoEndpoint),
	}, nil
}

// JWKSURL returns the issuer's well-known key set location.
func (c *Config) JWKSURL() string {
	return strings.TrimSuffix(c.IssuerURL, "/") + "/.well-known/jwks.json"
}

// IAMConfig returns the pipeline configuration with the configured access types added.
func (c *Config) IAMConfig() iam.Config {
	var cfg iam.Config
	cfg.AddAccessTypes(c.AccessTypes...)
	return cfg
}

func parseAccessTypes(raw string) []iam.AccessType {
	var out []iam.AccessType
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, iam.AccessType(p))
		}
	}
	return out
}
