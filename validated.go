package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chimerakang/amp-iam/audit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler is the business logic behind a validated operation. data is the
// validated body enriched with the caller's token, account, origin and access types.
type Handler func(ctx context.Context, event *Event, user, route string, data map[string]any) (any, error)

// LambdaHandler is a handler wrapped by Validated.
//
// Typed failures (*Error) become an error envelope with a nil error. Any other
// error is returned as-is with a nil Response so the hosting runtime sees it.
type LambdaHandler func(ctx context.Context, event *Event) (*Response, error)

// Keys added to the handler's data map.
const (
	DataAccessToken   = "access_token"
	DataAccount       = "account"
	DataAPIKeyID      = "api_key_id"
	DataRateLimit     = "rate_limit"
	DataAPIAccessed   = "api_accessed"
	DataAllowedAccess = "allowed_access"
	DataPurpose       = "purpose"
)

// ValidatedOption configures a single wrapped operation.
type ValidatedOption func(*validatedConfig)

type validatedConfig struct {
	validateBody bool
}

// WithoutBodyValidation skips body parsing and schema validation for the operation.
func WithoutBodyValidation() ValidatedOption {
	return func(vc *validatedConfig) { vc.validateBody = false }
}

// requestState tracks what the pipeline learned before it stopped.
type requestState struct {
	claims    *Claims
	apiOrigin bool
	route     string
}

func (s *requestState) origin() string {
	if s.apiOrigin {
		return "api"
	}
	return "user"
}

// Validated wraps h with token extraction, claims resolution, body validation,
// permission checking and response wrapping.
func (c *Client) Validated(op string, h Handler, opts ...ValidatedOption) LambdaHandler {
	vc := validatedConfig{validateBody: true}
	for _, o := range opts {
		o(&vc)
	}

	return func(ctx context.Context, event *Event) (*Response, error) {
		start := c.now()
		if event == nil {
			event = &Event{}
		}
		reqID := event.RequestID()
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = WithRequestID(ctx, reqID)
		if c.audit != nil {
			ctx = audit.WithContext(ctx, c.audit)
		}
		log := c.logger.With(zap.String("op", op), zap.String("request_id", reqID))

		st := &requestState{}
		result, err := c.run(ctx, event, op, h, vc, st, log)
		if err != nil {
			var e *Error
			if !errors.As(err, &e) {
				log.Error("unhandled failure", zap.String("route", st.route), zap.Error(err))
				c.metrics.RecordRequest(st.origin(), 500, c.now().Sub(start).Seconds())
				return nil, err
			}
			resp := ErrorResponse(e)
			c.logFailure(log, e, st)
			c.metrics.RecordRequest(st.origin(), resp.StatusCode, c.now().Sub(start).Seconds())
			c.auditLog(reqID, op, st, resp.StatusCode, e)
			return resp, nil
		}

		body, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("iam: encode result of %s: %w", op, err)
		}
		c.metrics.RecordRequest(st.origin(), 200, c.now().Sub(start).Seconds())
		c.auditLog(reqID, op, st, 200, nil)
		return &Response{StatusCode: 200, Body: string(body)}, nil
	}
}

func (c *Client) run(ctx context.Context, event *Event, op string, h Handler, vc validatedConfig, st *requestState, log *zap.Logger) (any, error) {
	token, err := ExtractBearerToken(event.Headers)
	if err != nil {
		return nil, err
	}

	claims, apiOrigin, err := c.ResolveClaims(ctx, token)
	st.apiOrigin = apiOrigin
	if err != nil {
		return nil, err
	}
	st.claims = claims
	log.Debug("claims resolved", zap.String("user", claims.Username), zap.Bool("api_accessed", apiOrigin))

	ctx = WithClaims(ctx, claims)
	ctx = WithAPIOrigin(ctx, apiOrigin)
	ctx = WithAccessToken(ctx, token)

	route, data, err := c.parseAndValidate(ctx, event, op, claims.Username, apiOrigin, vc.validateBody)
	st.route = route
	if err != nil {
		return nil, err
	}

	data[DataAccessToken] = token
	data[DataAccount] = claims.Account
	data[DataAPIKeyID] = claims.APIKeyID
	data[DataRateLimit] = claims.RateLimit
	data[DataAPIAccessed] = apiOrigin
	data[DataAllowedAccess] = claims.AllowedAccess
	data[DataPurpose] = claims.Purpose

	return h(ctx, event, claims.Username, route, data)
}

func (c *Client) parseAndValidate(ctx context.Context, event *Event, op, user string, apiOrigin, validateBody bool) (string, map[string]any, error) {
	data := map[string]any{}
	if validateBody {
		d, err := event.DecodeBody()
		if err != nil {
			return "", nil, BadRequest("Unable to parse JSON body.")
		}
		data = d
	}

	route, ok := event.RoutePath()
	if !ok {
		return "", nil, BadRequest("Unable to perform the operation, invalid request.")
	}

	if validateBody {
		if err := c.validateBody(route, op, data, apiOrigin); err != nil {
			return route, nil, err
		}
	}

	if err := c.checkPermission(ctx, user, route, op, data); err != nil {
		return route, nil, err
	}
	return route, data, nil
}

func (c *Client) validateBody(route, op string, data map[string]any, apiOrigin bool) error {
	if c.config.Validator == nil {
		c.metrics.RecordValidation("no_rules")
		return ValidationError("Invalid data or path", nil)
	}
	if err := c.config.Validator.Validate(route, op, data, apiOrigin); err != nil {
		c.metrics.RecordValidation("invalid")
		var e *Error
		if errors.As(err, &e) {
			return e
		}
		return BadRequest(err.Error())
	}
	c.metrics.RecordValidation("valid")
	return nil
}

func (c *Client) checkPermission(ctx context.Context, user, route, op string, data map[string]any) error {
	checker := c.config.PermissionChecker
	if checker == nil {
		return nil
	}

	start := c.now()
	decide := checker.Prepare(ctx, user, route, op, data)
	if decide == nil {
		return nil
	}
	if !decide(user, data) {
		c.metrics.RecordPermissionCheck("denied", c.now().Sub(start).Seconds())
		return Unauthorized("User does not have permission to perform the operation.")
	}
	c.metrics.RecordPermissionCheck("allowed", c.now().Sub(start).Seconds())
	return nil
}

// ErrorResponse builds the envelope for a typed failure.
func ErrorResponse(e *Error) *Response {
	code := e.StatusCode()
	body, _ := json.Marshal(map[string]string{
		"error": fmt.Sprintf("Error: %d - %s", code, e.Public()),
	})
	return &Response{StatusCode: code, Body: string(body)}
}

func (c *Client) logFailure(log *zap.Logger, e *Error, st *requestState) {
	fields := []zap.Field{
		zap.String("kind", e.Kind.String()),
		zap.Int("status", e.StatusCode()),
		zap.String("origin", st.origin()),
		zap.String("route", st.route),
		zap.String("detail", e.Error()),
	}
	if st.claims != nil {
		fields = append(fields, zap.String("user", st.claims.Username))
	}

	switch e.Kind {
	case KindUnknownAPIUser:
		log.Error("api key registry record has no usable principal", fields...)
	case KindClaim, KindLookup, KindPermission:
		log.Warn("authentication failed", fields...)
	default:
		log.Info("request rejected", fields...)
	}
}

func (c *Client) auditLog(reqID, op string, st *requestState, status int, e *Error) {
	if c.audit == nil {
		return
	}
	ev := audit.Event{
		Timestamp: c.now(),
		RequestID: reqID,
		Origin:    st.origin(),
		Action:    op,
		Resource:  st.route,
		Result:    "success",
		Status:    status,
	}
	if st.claims != nil {
		ev.Username = st.claims.Username
		ev.Account = st.claims.Account
		ev.APIKeyID = st.claims.APIKeyID
	}
	if e != nil {
		ev.Result = "failure"
		if e.Kind == KindUnauthorized && st.claims != nil {
			ev.Result = "denied"
		}
		ev.Kind = e.Kind.String()
		ev.Error = e.Public()
	}
	c.audit.Log(ev)
}
