package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for crawl-core spans, following OpenTelemetry semantic
// convention naming (dot-separated namespaces) where applicable.
const (
	// ========================================================================
	// Run / component identity
	// ========================================================================
	AttrRunID     = "crawl.run_id"
	AttrComponent = "crawl.component" // queue, list, pool, session, snapshot
	AttrQueueID   = "crawl.queue_id"
	AttrListID    = "crawl.list_id"
	AttrStoreID   = "crawl.store_id"

	// ========================================================================
	// Request lifecycle
	// ========================================================================
	AttrRequestID  = "request.id"
	AttrUniqueKey  = "request.unique_key"
	AttrURL        = "request.url"
	AttrMethod     = "request.method"
	AttrForefront  = "request.forefront"
	AttrRetryCount = "request.retry_count"

	// ========================================================================
	// Session
	// ========================================================================
	AttrSessionID    = "session.id"
	AttrErrorScore   = "session.error_score"
	AttrUsageCount   = "session.usage_count"
	AttrRetireReason = "session.retire_reason"

	// ========================================================================
	// AutoscaledPool
	// ========================================================================
	AttrDesiredConcurrency = "pool.desired_concurrency"
	AttrRunningCount       = "pool.running_count"
	AttrMinConcurrency     = "pool.min_concurrency"
	AttrMaxConcurrency     = "pool.max_concurrency"

	// ========================================================================
	// Snapshotter / SystemStatus
	// ========================================================================
	AttrDimension     = "snapshot.dimension" // memory, cpu, event_loop, client
	AttrIsOverloaded  = "snapshot.is_overloaded"
	AttrOverloadRatio = "snapshot.overload_ratio"

	// ========================================================================
	// Storage backend
	// ========================================================================
	AttrStoreName = "store.name"
	AttrStoreType = "store.type" // local, badger, sql, s3, remote
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
	AttrRegion    = "storage.region"
	AttrAttempt   = "retry.attempt"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit  = "cache.hit"
	AttrCacheSize = "cache.size"
)

// Span names for core operations. Format: <component>.<operation>.
const (
	SpanQueueAdd            = "queue.add_request"
	SpanQueueFetchNext      = "queue.fetch_next_request"
	SpanQueueMarkHandled    = "queue.mark_request_handled"
	SpanQueueReclaim        = "queue.reclaim_request"
	SpanQueueIsFinished     = "queue.is_finished"
	SpanListFetchNext       = "list.fetch_next_request"
	SpanListMarkHandled     = "list.mark_request_handled"
	SpanListReclaim         = "list.reclaim_request"
	SpanPoolRunTask         = "pool.run_task"
	SpanPoolTick            = "pool.tick"
	SpanSessionGet          = "session.get_session"
	SpanSessionRetire       = "session.retire_session"
	SpanSnapshotSample      = "snapshot.sample"
	SpanKVStoreGetRecord    = "kvstore.get_record"
	SpanKVStoreSetRecord    = "kvstore.set_record"
	SpanKVStoreDeleteRecord = "kvstore.delete_record"
)

// RunID returns an attribute for the crawl run identifier.
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// Component returns an attribute naming the emitting subsystem.
func Component(name string) attribute.KeyValue {
	return attribute.String(AttrComponent, name)
}

// QueueID returns an attribute for a RequestQueue identifier.
func QueueID(id string) attribute.KeyValue {
	return attribute.String(AttrQueueID, id)
}

// ListID returns an attribute for a RequestList identifier.
func ListID(id string) attribute.KeyValue {
	return attribute.String(AttrListID, id)
}

// RequestID returns an attribute for a Request identifier.
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// UniqueKey returns an attribute for a Request's dedup key.
func UniqueKey(key string) attribute.KeyValue {
	return attribute.String(AttrUniqueKey, key)
}

// URL returns an attribute for a Request's URL.
func URL(url string) attribute.KeyValue {
	return attribute.String(AttrURL, url)
}

// Forefront returns an attribute for the forefront/backfront insertion flag.
func Forefront(forefront bool) attribute.KeyValue {
	return attribute.Bool(AttrForefront, forefront)
}

// RetryCount returns an attribute for a Request's retry count.
func RetryCount(n int) attribute.KeyValue {
	return attribute.Int(AttrRetryCount, n)
}

// SessionID returns an attribute for a Session identifier.
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// ErrorScore returns an attribute for a Session's error score.
func ErrorScore(score float64) attribute.KeyValue {
	return attribute.Float64(AttrErrorScore, score)
}

// RetireReason returns an attribute naming why a session was retired.
func RetireReason(reason string) attribute.KeyValue {
	return attribute.String(AttrRetireReason, reason)
}

// DesiredConcurrency returns an attribute for the pool's target concurrency.
func DesiredConcurrency(n int) attribute.KeyValue {
	return attribute.Int(AttrDesiredConcurrency, n)
}

// RunningCount returns an attribute for the pool's in-flight task count.
func RunningCount(n int) attribute.KeyValue {
	return attribute.Int(AttrRunningCount, n)
}

// Dimension returns an attribute naming a resource dimension.
func Dimension(name string) attribute.KeyValue {
	return attribute.String(AttrDimension, name)
}

// IsOverloaded returns an attribute for an overload verdict.
func IsOverloaded(v bool) attribute.KeyValue {
	return attribute.Bool(AttrIsOverloaded, v)
}

// OverloadRatio returns an attribute for a sampled overload ratio.
func OverloadRatio(ratio float64) attribute.KeyValue {
	return attribute.Float64(AttrOverloadRatio, ratio)
}

// StoreName returns an attribute for a named backend instance.
func StoreName(name string) attribute.KeyValue {
	return attribute.String(AttrStoreName, name)
}

// StoreType returns an attribute naming a backend kind.
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an object/record key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for a cloud region.
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// Attempt returns an attribute for a retry attempt number.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// CacheHit returns an attribute for a cache hit/miss verdict.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// StartQueueSpan starts a span for a RequestQueue operation.
func StartQueueSpan(ctx context.Context, spanName, queueID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{QueueID(queueID)}, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartListSpan starts a span for a RequestList operation.
func StartListSpan(ctx context.Context, spanName, listID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{ListID(listID)}, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartPoolSpan starts a span for an AutoscaledPool operation.
func StartPoolSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, spanName, trace.WithAttributes(attrs...))
}

// StartSessionSpan starts a span for a SessionPool operation.
func StartSessionSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, spanName, trace.WithAttributes(attrs...))
}

// StartKVStoreSpan starts a span for a key-value store operation.
func StartKVStoreSpan(ctx context.Context, spanName, storeID, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{attribute.String(AttrStoreID, storeID), StorageKey(key)}, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}
