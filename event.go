package iam

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Event is an inbound HTTP-style event as delivered by API Gateway, Lambda
// function URLs, or container function URLs.
type Event struct {
	Headers         map[string]string `json:"headers"`
	Path            string            `json:"path,omitempty"`
	RawPath         string            `json:"rawPath,omitempty"`
	RequestContext  *RequestContext   `json:"requestContext,omitempty"`
	Body            string            `json:"body,omitempty"`
	IsBase64Encoded bool              `json:"isBase64Encoded,omitempty"`
}

// RequestContext holds the nested request metadata of an event.
type RequestContext struct {
	RequestID string       `json:"requestId,omitempty"`
	Path      string       `json:"path,omitempty"`
	HTTP      *HTTPContext `json:"http,omitempty"`
}

// HTTPContext is the function-URL flavour of request metadata.
type HTTPContext struct {
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Response is the envelope returned for every handled request.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// pathStrategy locates the route path in one event shape.
type pathStrategy func(e *Event) (string, bool)

// pathStrategies are tried in order; the first hit wins.
var pathStrategies = []pathStrategy{
	// API Gateway
	func(e *Event) (string, bool) { return e.Path, e.Path != "" },
	// Lambda function URL
	func(e *Event) (string, bool) { return e.RawPath, e.RawPath != "" },
	func(e *Event) (string, bool) {
		if e.RequestContext == nil || e.RequestContext.HTTP == nil {
			return "", false
		}
		return e.RequestContext.HTTP.Path, e.RequestContext.HTTP.Path != ""
	},
	// Container function URL
	func(e *Event) (string, bool) {
		if e.RequestContext == nil {
			return "", false
		}
		return e.RequestContext.Path, e.RequestContext.Path != ""
	},
}

// RoutePath returns the route path from whichever event shape carries it.
func (e *Event) RoutePath() (string, bool) {
	for _, s := range pathStrategies {
		if p, ok := s(e); ok {
			return p, true
		}
	}
	return "", false
}

// RequestID returns the request ID carried by the event, if any.
func (e *Event) RequestID() string {
	if e.RequestContext == nil {
		return ""
	}
	return e.RequestContext.RequestID
}

// DecodeBody parses the body as a JSON object. An empty body yields an empty map.
func (e *Event) DecodeBody() (map[string]any, error) {
	raw := []byte(e.Body)
	if e.IsBase64Encoded && len(raw) > 0 {
		decoded, err := base64.StdEncoding.DecodeString(e.Body)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
		raw = decoded
	}
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		// literal "null"
		data = map[string]any{}
	}
	return data, nil
}
