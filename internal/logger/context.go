package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds operation-scoped logging context. It is attached to a
// context.Context at the boundary of a queue/list/pool/session operation so
// every log line emitted underneath carries the same identifiers without
// threading a logger through every call site.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	RunID     string    // Crawl run identifier
	Component string    // queue, list, pool, session, snapshot
	QueueID   string    // RequestQueue identifier, if applicable
	ListID    string    // RequestList identifier, if applicable
	RequestID string    // Request.id, if applicable
	SessionID string    // Session.id, if applicable
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given run and component.
func NewLogContext(runID, component string) *LogContext {
	return &LogContext{
		RunID:     runID,
		Component: component,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		RunID:     lc.RunID,
		Component: lc.Component,
		QueueID:   lc.QueueID,
		ListID:    lc.ListID,
		RequestID: lc.RequestID,
		SessionID: lc.SessionID,
		StartTime: lc.StartTime,
	}
}

// WithQueue returns a copy with the queue identifier set.
func (lc *LogContext) WithQueue(queueID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.QueueID = queueID
	}
	return clone
}

// WithRequest returns a copy with the request identifier set.
func (lc *LogContext) WithRequest(requestID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.RequestID = requestID
	}
	return clone
}

// WithSession returns a copy with the session identifier set.
func (lc *LogContext) WithSession(sessionID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = sessionID
	}
	return clone
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
