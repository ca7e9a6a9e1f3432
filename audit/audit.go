// Package audit provides structured audit events for authorization decisions.
//
// Handlers run synchronously on the request goroutine; a Logger holds no
// queue and starts no background work.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event represents an authorization audit event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Account   string    `json:"account,omitempty"`
	APIKeyID  string    `json:"api_key_id,omitempty"`
	Origin    string    `json:"origin,omitempty"` // user or api
	Action    string    `json:"action"`           // operation name
	Resource  string    `json:"resource,omitempty"`
	Result    string    `json:"result"` // success, failure, denied
	Status    int       `json:"status"`
	Kind      string    `json:"kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Handler processes audit events. Implementations must not block for long.
type Handler func(event Event)

// Logger emits audit events to configured handlers.
type Logger struct {
	handlers []Handler
}

// Option configures Logger behavior.
type Option func(*Logger)

// WithZapHandler adds a handler that writes events through a zap logger.
func WithZapHandler(zl *zap.Logger) Option {
	return func(l *Logger) {
		l.AddHandler(func(e Event) {
			zl.Info("audit",
				zap.Time("timestamp", e.Timestamp),
				zap.String("request_id", e.RequestID),
				zap.String("username", e.Username),
				zap.String("account", e.Account),
				zap.String("api_key_id", e.APIKeyID),
				zap.String("origin", e.Origin),
				zap.String("action", e.Action),
				zap.String("resource", e.Resource),
				zap.String("result", e.Result),
				zap.Int("status", e.Status),
				zap.String("kind", e.Kind),
				zap.String("error", e.Error),
			)
		})
	}
}

// WithHandler adds a custom event handler.
func WithHandler(h Handler) Option {
	return func(l *Logger) {
		l.AddHandler(h)
	}
}

// New creates a new audit logger.
func New(opts ...Option) *Logger {
	logger := &Logger{}
	for _, opt := range opts {
		opt(logger)
	}
	return logger
}

// AddHandler adds a handler to receive audit events. Call before the logger is shared.
func (l *Logger) AddHandler(h Handler) {
	l.handlers = append(l.handlers, h)
}

// Log delivers event to every handler. A nil Logger drops the event.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, h := range l.handlers {
		h(event)
	}
}

// FromContext retrieves the audit logger from context.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKeyLogger).(*Logger)
	if !ok {
		return nil
	}
	return logger
}

// WithContext stores the audit logger in context.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKeyLogger, logger)
}

type contextKey string

const contextKeyLogger contextKey = "audit.logger"
