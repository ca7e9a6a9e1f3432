package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table maps route path → operation → JSON Schema.
type Table map[string]map[string]map[string]any

// Rules holds the two rule tables, one per request origin.
type Rules struct {
	// Validators apply to requests authenticated with a user JWT.
	Validators Table `yaml:"validators" json:"validators"`
	// APIValidators apply to requests authenticated with an API key.
	APIValidators Table `yaml:"api_validators" json:"api_validators"`
}

// table returns the rule table for the request origin.
func (r Rules) table(apiOrigin bool) Table {
	if apiOrigin {
		return r.APIValidators
	}
	return r.Validators
}

// ParseRules decodes a rules document. YAML is a superset of JSON, so both are accepted.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("iam/schema: parse rules: %w", err)
	}
	return r, nil
}

// LoadRules reads a rules file (.yaml, .yml or .json).
func LoadRules(path string) (Rules, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return Rules{}, fmt.Errorf("iam/schema: unsupported rules file %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("iam/schema: read rules: %w", err)
	}
	return ParseRules(data)
}
