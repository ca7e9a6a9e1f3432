// Package schema validates request bodies against per-route JSON Schemas.
//
// Rules are keyed by route path and operation, with separate tables for user and
// API key callers. An empty schema ({}) disables validation for that operation;
// any other schema is applied to the body's "data" member.
package schema

import (
	"errors"
	"fmt"
	"strings"

	iam "github.com/chimerakang/amp-iam"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// DataField is the body member validated against a non-empty schema.
const DataField = "data"

// msgNoRule is shared by "no table" and "no entry" so callers cannot probe for routes.
const msgNoRule = "Invalid data or path"

// Validator implements iam.BodyValidator.
type Validator struct {
	rules  Rules
	logger *zap.Logger
}

// compile-time check
var _ iam.BodyValidator = (*Validator)(nil)

// Option configures the Validator.
type Option func(*Validator)

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// New creates a Validator for rules.
func New(rules Rules, opts ...Option) *Validator {
	v := &Validator{rules: rules, logger: zap.NewNop()}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate checks body against the schema registered for route and op.
func (v *Validator) Validate(route, op string, body map[string]any, apiOrigin bool) error {
	log := v.logger.With(zap.String("route", route), zap.String("op", op), zap.Bool("api_accessed", apiOrigin))

	table := v.rules.table(apiOrigin)
	if len(table) == 0 {
		log.Info("no validation rules configured for origin")
		return iam.ValidationError(msgNoRule, errors.New("no rule table"))
	}
	schema, ok := table[route][op]
	if !ok {
		log.Info("no validation rule for operation")
		return iam.ValidationError(msgNoRule, fmt.Errorf("no rule for %s %s", route, op))
	}
	if len(schema) == 0 {
		return nil
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		log.Error("invalid schema", zap.Error(err))
		return iam.SchemaError("Invalid schema: "+err.Error(), err)
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(body[DataField]))
	if err != nil {
		return iam.ValidationError("Invalid data: "+err.Error(), err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		log.Info("body failed validation", zap.Strings("errors", msgs))
		return iam.ValidationError("Invalid data: "+strings.Join(msgs, "; "), nil)
	}
	return nil
}
