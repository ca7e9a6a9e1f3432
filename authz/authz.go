// Package authz provides iam.PermissionChecker implementations.
//
// A checker is consulted in two steps: Prepare sees the user, route, operation
// and request body, and returns the Decision that is then evaluated. Returning a
// nil Decision grants the request.
package authz

import (
	"context"

	iam "github.com/chimerakang/amp-iam"
)

// Func adapts a two-step function to iam.PermissionChecker.
type Func func(ctx context.Context, user, route, op string, data map[string]any) iam.Decision

// Prepare calls f.
func (f Func) Prepare(ctx context.Context, user, route, op string, data map[string]any) iam.Decision {
	return f(ctx, user, route, op, data)
}

// Predicate adapts a single-step check to iam.PermissionChecker.
type Predicate func(user, route, op string, data map[string]any) bool

// Prepare binds route and op into a Decision.
func (p Predicate) Prepare(_ context.Context, _, route, op string, _ map[string]any) iam.Decision {
	return func(user string, data map[string]any) bool {
		return p(user, route, op, data)
	}
}

// AccessRules maps route → operation → access types, any one of which grants the call.
type AccessRules map[string]map[string][]iam.AccessType

// RequireAccess checks the caller's AllowedAccess against rules. Routes and
// operations without a rule are granted. The caller's claims are read from the
// request context.
func RequireAccess(rules AccessRules) iam.PermissionChecker {
	return Func(func(ctx context.Context, _, route, op string, _ map[string]any) iam.Decision {
		want, ok := rules[route][op]
		if !ok {
			return nil
		}
		claims := iam.ClaimsFromContext(ctx)
		return func(string, map[string]any) bool {
			return claims != nil && claims.HasAccess(want...)
		}
	})
}

// All grants a request only when every checker grants it.
func All(checkers ...iam.PermissionChecker) iam.PermissionChecker {
	return Func(func(ctx context.Context, user, route, op string, data map[string]any) iam.Decision {
		var decisions []iam.Decision
		for _, c := range checkers {
			if c == nil {
				continue
			}
			if d := c.Prepare(ctx, user, route, op, data); d != nil {
				decisions = append(decisions, d)
			}
		}
		if len(decisions) == 0 {
			return nil
		}
		return func(user string, data map[string]any) bool {
			for _, d := range decisions {
				if !d(user, data) {
					return false
				}
			}
			return true
		}
	})
}
