package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so aggregation and
// querying works the same way in every component (queue, list, pool, session).
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Run / Component identity
	// ========================================================================
	KeyRunID     = "run_id"     // Identifier for the current crawl run
	KeyComponent = "component"  // queue, list, pool, session, snapshot
	KeyQueueID   = "queue_id"   // RequestQueue identifier
	KeyListID    = "list_id"    // RequestList identifier
	KeyStoreID   = "store_id"   // Key-value store identifier

	// ========================================================================
	// Request lifecycle
	// ========================================================================
	KeyRequestID  = "request_id"  // Request.id
	KeyUniqueKey  = "unique_key"  // Request.uniqueKey
	KeyURL        = "url"         // Request.url
	KeyMethod     = "method"      // Request.method
	KeyForefront  = "forefront"   // forefront vs. backfront insertion
	KeyRetryCount = "retry_count" // Request.retryCount

	// ========================================================================
	// Session
	// ========================================================================
	KeySessionID    = "session_id"    // Session.id
	KeyErrorScore   = "error_score"   // Session.errorScore
	KeyUsageCount   = "usage_count"   // Session.usageCount
	KeyRetireReason = "retire_reason" // why a session was retired

	// ========================================================================
	// AutoscaledPool
	// ========================================================================
	KeyDesiredConcurrency = "desired_concurrency"
	KeyRunningCount       = "running_count"
	KeyMinConcurrency     = "min_concurrency"
	KeyMaxConcurrency     = "max_concurrency"

	// ========================================================================
	// Snapshotter / SystemStatus
	// ========================================================================
	KeyDimension     = "dimension"     // memory, cpu, event_loop, client
	KeyIsOverloaded  = "is_overloaded"
	KeyOverloadRatio = "overload_ratio"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric/string error code
	KeySource     = "source"      // Data source: local, badger, sql, remote
	KeyOperation  = "operation"   // Sub-operation type for complex operations

	// ========================================================================
	// Storage Backend
	// ========================================================================
	KeyStoreName  = "store_name"  // Named backend identifier
	KeyStoreType  = "store_type"  // local, badger, sql, s3, remote
	KeyBucket     = "bucket"      // Cloud bucket name (S3)
	KeyKey        = "key"         // Object key in cloud/KV storage
	KeyRegion     = "region"      // Cloud region
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts

	// ========================================================================
	// Cache / LRU Layer
	// ========================================================================
	KeyCacheHit      = "cache_hit"
	KeyCacheSize     = "cache_size"
	KeyCacheCapacity = "cache_capacity"
	KeyEvicted       = "evicted"
)

// ----------------------------------------------------------------------------
// Field constructors for type safety
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// RunID returns a slog.Attr for the crawl run identifier.
func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

// Component returns a slog.Attr naming the emitting subsystem.
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// QueueID returns a slog.Attr for a RequestQueue identifier.
func QueueID(id string) slog.Attr {
	return slog.String(KeyQueueID, id)
}

// ListID returns a slog.Attr for a RequestList identifier.
func ListID(id string) slog.Attr {
	return slog.String(KeyListID, id)
}

// RequestID returns a slog.Attr for a Request identifier.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// UniqueKey returns a slog.Attr for a Request's dedup key.
func UniqueKey(key string) slog.Attr {
	return slog.String(KeyUniqueKey, key)
}

// URL returns a slog.Attr for a Request's URL.
func URL(url string) slog.Attr {
	return slog.String(KeyURL, url)
}

// Forefront returns a slog.Attr for the forefront/backfront insertion flag.
func Forefront(forefront bool) slog.Attr {
	return slog.Bool(KeyForefront, forefront)
}

// SessionID returns a slog.Attr for a Session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// ErrorScore returns a slog.Attr for a Session's error score.
func ErrorScore(score float64) slog.Attr {
	return slog.Float64(KeyErrorScore, score)
}

// DesiredConcurrency returns a slog.Attr for the pool's target concurrency.
func DesiredConcurrency(n int) slog.Attr {
	return slog.Int(KeyDesiredConcurrency, n)
}

// RunningCount returns a slog.Attr for the pool's in-flight task count.
func RunningCount(n int) slog.Attr {
	return slog.Int(KeyRunningCount, n)
}

// Dimension returns a slog.Attr naming a resource dimension.
func Dimension(name string) slog.Attr {
	return slog.String(KeyDimension, name)
}

// IsOverloaded returns a slog.Attr for an overload verdict.
func IsOverloaded(v bool) slog.Attr {
	return slog.Bool(KeyIsOverloaded, v)
}

// DurationMs returns a slog.Attr for an operation duration.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error value's message.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// StoreType returns a slog.Attr naming a backend kind (local, badger, sql, s3, remote).
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
