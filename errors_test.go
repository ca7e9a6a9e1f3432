package iam_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	iam "github.com/chimerakang/amp-iam"
)

func TestKind_StatusCode(t *testing.T) {
	tests := []struct {
		err  *iam.Error
		want int
	}{
		{iam.Unauthorized("x"), 401},
		{iam.LookupError("x"), 401},
		{iam.PermissionError("x"), 401},
		{iam.ClaimError("x", nil), 401},
		{iam.UnknownAPIUserError("x"), 401},
		{iam.BadRequest("x"), 400},
		{iam.ValidationError("x", nil), 400},
		{iam.SchemaError("x", nil), 400},
		{iam.NotFound("x"), 404},
		{&iam.Error{Message: "x"}, 500},
	}
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestError_Public(t *testing.T) {
	assert.Equal(t, "API key is inactive.", iam.PermissionError("API key is inactive.").Public())
	assert.Equal(t, "Unauthorized", iam.UnknownAPIUserError("record has no owner").Public())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("crypto/rsa: verification error")
	err := fmt.Errorf("resolve: %w", iam.ClaimError("Invalid JWT token", cause))

	assert.ErrorIs(t, err, cause)
	assert.True(t, iam.IsKind(err, iam.KindClaim))
	assert.False(t, iam.IsKind(err, iam.KindLookup))
	assert.False(t, iam.IsKind(cause, iam.KindClaim))
	assert.Contains(t, err.Error(), "claim: Invalid JWT token")
}
