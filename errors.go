package iam

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindBadRequest
	KindNotFound
	// KindLookup means an API key was not found.
	KindLookup
	// KindPermission means an API key is inactive, expired or lacks scope.
	KindPermission
	// KindClaim covers every JWT and JWKS verification problem.
	KindClaim
	// KindUnknownAPIUser is a data-integrity problem in the key registry.
	KindUnknownAPIUser
	// KindValidation means the request body did not match its schema or no schema exists.
	KindValidation
	// KindSchema means the configured schema itself is invalid.
	KindSchema
)

var kindNames = map[Kind]string{
	KindUnauthorized:   "unauthorized",
	KindBadRequest:     "bad_request",
	KindNotFound:       "not_found",
	KindLookup:         "lookup",
	KindPermission:     "permission",
	KindClaim:          "claim",
	KindUnknownAPIUser: "unknown_api_user",
	KindValidation:     "validation",
	KindSchema:         "schema",
}

// String returns the metric/log label for k.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// StatusCode maps k to the transport status code. This is the only place the mapping lives.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest, KindValidation, KindSchema:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized, KindLookup, KindPermission, KindClaim, KindUnknownAPIUser:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Error is a typed pipeline failure. Anything that is not an *Error is treated
// as an infrastructure failure and is never converted into a response.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode returns the transport status code for the failure.
func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

// Public returns the message that may be shown to the caller.
func (e *Error) Public() string {
	if e.Kind == KindUnknownAPIUser {
		return "Unauthorized"
	}
	return e.Message
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Unauthorized returns a 401 failure.
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg, nil) }

// BadRequest returns a 400 failure.
func BadRequest(msg string) *Error { return newError(KindBadRequest, msg, nil) }

// NotFound returns a 404 failure.
func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

// LookupError reports a missing API key.
func LookupError(msg string) *Error { return newError(KindLookup, msg, nil) }

// PermissionError reports an API key that may not be used.
func PermissionError(msg string) *Error { return newError(KindPermission, msg, nil) }

// ClaimError reports a token verification failure.
func ClaimError(msg string, cause error) *Error { return newError(KindClaim, msg, cause) }

// UnknownAPIUserError reports a registry record whose principal cannot be determined.
func UnknownAPIUserError(msg string) *Error { return newError(KindUnknownAPIUser, msg, nil) }

// ValidationError reports a body that failed validation.
func ValidationError(msg string, cause error) *Error { return newError(KindValidation, msg, cause) }

// SchemaError reports an invalid configured schema.
func SchemaError(msg string, cause error) *Error { return newError(KindSchema, msg, cause) }
