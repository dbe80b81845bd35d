// Package requestqueue implements the persistent, deduplicating, ordered
// queue of crawl targets: the hardest of the four core subsystems. It
// supports forefront/backfront insertion, head caching, in-progress
// tracking, eventual-consistency handling against pluggable backends, and
// client-side heuristics for isFinished.
package requestqueue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/internal/logger"
	"github.com/scrapeforge/crawlcore/internal/retry"
	"github.com/scrapeforge/crawlcore/internal/telemetry"
	"github.com/scrapeforge/crawlcore/pkg/metrics"
	"github.com/scrapeforge/crawlcore/pkg/request"
)

// Backend is the pluggable persistence surface a RequestQueue drives. Local
// filesystem and BadgerDB implementations live in sibling packages; a
// RemoteStorageClient-backed implementation lives in pkg/requestqueue/remote.
type Backend interface {
	// AddRequest persists req (req.ID is already assigned) and reports
	// whether it was already present/handled.
	AddRequest(ctx context.Context, req *request.Request, forefront bool) (wasAlreadyPresent, wasAlreadyHandled bool, err error)

	// GetRequest returns the request for id, or (nil, false) if not found
	// (including not-yet-visible due to consistency lag).
	GetRequest(ctx context.Context, id string) (*request.Request, bool, error)

	// UpdateRequest persists a state transition (reclaim or mark-handled).
	UpdateRequest(ctx context.Context, req *request.Request, forefront bool) error

	// GetHead returns up to limit pending ids/uniqueKeys in queue order,
	// the modification time of the most recent write the backend is aware
	// of, and whether multiple writers may be sharing this backend.
	GetHead(ctx context.Context, limit int) (items []HeadItem, queueModifiedAt time.Time, hadMultipleClients bool, err error)

	// Drop permanently removes all queue state.
	Drop(ctx context.Context) error
}

// HeadItem is one entry in a backend head response.
type HeadItem struct {
	ID        string
	UniqueKey string
}

// OperationInfo is the result of addRequest/markRequestHandled/reclaimRequest.
type OperationInfo struct {
	RequestID         string
	WasAlreadyPresent bool
	WasAlreadyHandled bool
	Request           *request.Request
}

// Config tunes the client-side caching and consistency behavior layered
// over any backend.
type Config struct {
	// QueryHeadMinLength is the base number of items requested on a head
	// refresh.
	QueryHeadMinLength int
	// QueryHeadBufferLength is added to QueryHeadMinLength on every head
	// refresh, leaving room for entries skipped as in-progress.
	QueryHeadBufferLength int
	// RecentlyHandledCapacity bounds the recentlyHandled LRU.
	RecentlyHandledCapacity int
	// RequestsCacheCapacity bounds the uniqueKey->id cache.
	RequestsCacheCapacity int
	// StorageConsistencyDelay is the pause before a reclaim/consistency
	// retry to let a write propagate.
	StorageConsistencyDelay time.Duration
	// APIProcessedRequestsDelay is how stale a head's queueModifiedAt must
	// be before an empty head counts toward isFinished.
	APIProcessedRequestsDelay time.Duration
	Retry                     retry.Config
}

// DefaultConfig mirrors the reference defaults (~50ms consistency delay,
// ~10s processed-requests delay).
func DefaultConfig() Config {
	return Config{
		QueryHeadMinLength:        100,
		QueryHeadBufferLength:     0,
		RecentlyHandledCapacity:   1000,
		RequestsCacheCapacity:     1000,
		StorageConsistencyDelay:   50 * time.Millisecond,
		APIProcessedRequestsDelay: 10 * time.Second,
		Retry:                     retry.DefaultConfig(),
	}
}

type cachedRequestInfo struct {
	id                string
	wasAlreadyHandled bool
}

// Queue is a persistent, deduplicating RequestQueue backed by a pluggable
// Backend.
type Queue struct {
	id      string
	backend Backend
	cfg     Config
	metrics metrics.QueueMetrics

	mu sync.Mutex

	queueHeadDict   *list.List          // of HeadItem, front = next to fetch
	inProgress      map[string]struct{} // request id -> present
	recentlyHandled *lruCache           // id -> struct{}
	requestsCache   *lruCache           // uniqueKey -> cachedRequestInfo

	assumedTotalCount   int
	assumedHandledCount int
	queueHeadQueriedAt  time.Time
}

// New constructs a Queue with the given id over backend.
func New(id string, backend Backend, cfg Config) *Queue {
	return &Queue{
		id:              id,
		backend:         backend,
		cfg:             cfg,
		queueHeadDict:   list.New(),
		inProgress:      make(map[string]struct{}),
		recentlyHandled: newLRUCache(cfg.RecentlyHandledCapacity),
		requestsCache:   newLRUCache(cfg.RequestsCacheCapacity),
	}
}

// ID returns the queue's identifier.
func (q *Queue) ID() string { return q.id }

// SetMetrics attaches a QueueMetrics collector. Pass nil to disable
// collection; the zero value already behaves this way.
func (q *Queue) SetMetrics(m metrics.QueueMetrics) { q.metrics = m }

// AddRequest adds req to the queue, deduplicating by UniqueKey. req must not
// already have an ID assigned.
func (q *Queue) AddRequest(ctx context.Context, req *request.Request, forefront bool) (*OperationInfo, error) {
	if req.ID != "" {
		return nil, corekit.NewInvalidInputError("request already has an id assigned", req.ID)
	}

	ctx, span := telemetry.StartQueueSpan(ctx, telemetry.SpanQueueAdd, q.id,
		telemetry.UniqueKey(req.UniqueKey), telemetry.Forefront(forefront))
	defer span.End()

	start := time.Now()

	q.mu.Lock()
	if cached, ok := q.requestsCache.Get(req.UniqueKey); ok {
		info := cached.(cachedRequestInfo)
		q.mu.Unlock()
		if q.metrics != nil {
			q.metrics.ObserveAddRequest(time.Since(start), true)
		}
		return &OperationInfo{RequestID: info.id, WasAlreadyPresent: true, WasAlreadyHandled: info.wasAlreadyHandled, Request: req}, nil
	}
	q.mu.Unlock()

	req.AssignID()

	var wasAlreadyPresent, wasAlreadyHandled bool
	err := retry.Do(ctx, q.cfg.Retry, func(ctx context.Context, attempt uint) error {
		var err error
		wasAlreadyPresent, wasAlreadyHandled, err = q.backend.AddRequest(ctx, req, forefront)
		return err
	})
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.requestsCache.Put(req.UniqueKey, cachedRequestInfo{id: req.ID, wasAlreadyHandled: wasAlreadyHandled})
	if !wasAlreadyPresent {
		q.assumedTotalCount++
		if forefront {
			q.queueHeadDict.PushFront(HeadItem{ID: req.ID, UniqueKey: req.UniqueKey})
		}
	}
	totalCount := q.assumedTotalCount
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.ObserveAddRequest(time.Since(start), wasAlreadyPresent)
		q.metrics.RecordQueueLength(q.id, totalCount-q.HandledCount())
	}

	logger.InfoCtx(ctx, "request added", logger.QueueID(q.id), logger.RequestID(req.ID), logger.Forefront(forefront))
	return &OperationInfo{RequestID: req.ID, WasAlreadyPresent: wasAlreadyPresent, WasAlreadyHandled: wasAlreadyHandled, Request: req}, nil
}

// GetRequest returns the request for id.
func (q *Queue) GetRequest(ctx context.Context, id string) (*request.Request, bool, error) {
	return q.backend.GetRequest(ctx, id)
}

// FetchNextRequest drains the head cache first, skipping ids already
// in-progress or recently handled; refreshes from the backend when
// exhausted. Returns (nil, nil) when nothing is available right now.
func (q *Queue) FetchNextRequest(ctx context.Context) (*request.Request, error) {
	ctx, span := telemetry.StartQueueSpan(ctx, telemetry.SpanQueueFetchNext, q.id)
	defer span.End()

	start := time.Now()
	for {
		item, ok := q.popHeadCandidate()
		if !ok {
			if err := q.refreshHead(ctx); err != nil {
				return nil, err
			}
			item, ok = q.popHeadCandidate()
			if !ok {
				if q.metrics != nil {
					q.metrics.ObserveFetchNextRequest(time.Since(start), false)
				}
				return nil, nil
			}
		}

		req, found, err := q.backend.GetRequest(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			// Consistency lag: the head listed an id the backend can't
			// yet serve. Drop it silently and let a later head refresh
			// pick it up again once it propagates.
			time.Sleep(q.cfg.StorageConsistencyDelay)
			continue
		}

		q.mu.Lock()
		q.inProgress[req.ID] = struct{}{}
		inProgressCount := len(q.inProgress)
		q.mu.Unlock()

		if q.metrics != nil {
			q.metrics.ObserveFetchNextRequest(time.Since(start), true)
			q.metrics.RecordInProgressCount(q.id, inProgressCount)
		}

		logger.DebugCtx(ctx, "request fetched", logger.QueueID(q.id), logger.RequestID(req.ID))
		return req, nil
	}
}

func (q *Queue) popHeadCandidate() (HeadItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for el := q.queueHeadDict.Front(); el != nil; el = q.queueHeadDict.Front() {
		item := el.Value.(HeadItem)
		q.queueHeadDict.Remove(el)
		if _, inProgress := q.inProgress[item.ID]; inProgress {
			continue
		}
		if q.recentlyHandled.Has(item.ID) {
			continue
		}
		return item, true
	}
	return HeadItem{}, false
}

func (q *Queue) refreshHead(ctx context.Context) error {
	limit := q.cfg.QueryHeadMinLength + q.cfg.QueryHeadBufferLength
	var items []HeadItem
	err := retry.Do(ctx, q.cfg.Retry, func(ctx context.Context, attempt uint) error {
		var err error
		items, _, _, err = q.backend.GetHead(ctx, limit)
		return err
	})
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.queueHeadQueriedAt = time.Now()
	for _, item := range items {
		if _, inProgress := q.inProgress[item.ID]; inProgress {
			continue
		}
		if q.recentlyHandled.Has(item.ID) {
			continue
		}
		q.queueHeadDict.PushBack(item)
	}
	return nil
}

// MarkRequestHandled transitions req to its terminal state.
func (q *Queue) MarkRequestHandled(ctx context.Context, req *request.Request) (*OperationInfo, error) {
	ctx, span := telemetry.StartQueueSpan(ctx, telemetry.SpanQueueMarkHandled, q.id, telemetry.RequestID(req.ID))
	defer span.End()

	q.mu.Lock()
	if _, ok := q.inProgress[req.ID]; !ok {
		q.mu.Unlock()
		return nil, corekit.NewStateMismatchError("request is not in progress", req.ID)
	}
	q.mu.Unlock()

	req.MarkHandled(time.Now())
	err := retry.Do(ctx, q.cfg.Retry, func(ctx context.Context, attempt uint) error {
		return q.backend.UpdateRequest(ctx, req, false)
	})
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	delete(q.inProgress, req.ID)
	q.recentlyHandled.Put(req.ID, struct{}{})
	q.assumedHandledCount++
	q.mu.Unlock()

	logger.InfoCtx(ctx, "request handled", logger.QueueID(q.id), logger.RequestID(req.ID))
	return &OperationInfo{RequestID: req.ID, Request: req}, nil
}

// ReclaimRequest returns an in-progress request to pending.
func (q *Queue) ReclaimRequest(ctx context.Context, req *request.Request, forefront bool) (*OperationInfo, error) {
	ctx, span := telemetry.StartQueueSpan(ctx, telemetry.SpanQueueReclaim, q.id, telemetry.RequestID(req.ID), telemetry.Forefront(forefront))
	defer span.End()

	q.mu.Lock()
	if _, ok := q.inProgress[req.ID]; !ok {
		q.mu.Unlock()
		return nil, corekit.NewStateMismatchError("request is not in progress", req.ID)
	}
	q.mu.Unlock()

	err := retry.Do(ctx, q.cfg.Retry, func(ctx context.Context, attempt uint) error {
		return q.backend.UpdateRequest(ctx, req, forefront)
	})
	if err != nil {
		return nil, err
	}

	// Guard against reading a stale head that would re-dispatch this
	// still-in-progress request before the write propagates.
	time.Sleep(q.cfg.StorageConsistencyDelay)

	q.mu.Lock()
	delete(q.inProgress, req.ID)
	if forefront {
		q.queueHeadDict.PushFront(HeadItem{ID: req.ID, UniqueKey: req.UniqueKey})
	}
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordReclaim(q.id)
	}

	logger.InfoCtx(ctx, "request reclaimed", logger.QueueID(q.id), logger.RequestID(req.ID))
	return &OperationInfo{RequestID: req.ID, Request: req}, nil
}

// IsEmpty reports whether no pending queue head is currently known.
func (q *Queue) IsEmpty(ctx context.Context) (bool, error) {
	q.mu.Lock()
	headKnown := q.queueHeadDict.Len() > 0
	q.mu.Unlock()
	if headKnown {
		return false, nil
	}
	items, _, _, err := q.backend.GetHead(ctx, q.cfg.QueryHeadMinLength)
	if err != nil {
		return false, err
	}
	return len(items) == 0, nil
}

// IsFinished reports whether the queue is confirmed empty and consistent: no
// in-progress requests, no cached head, and a freshly fetched head — old
// enough to trust, unless the backend reports a single writer — is also
// empty.
func (q *Queue) IsFinished(ctx context.Context) (bool, error) {
	ctx, span := telemetry.StartQueueSpan(ctx, telemetry.SpanQueueIsFinished, q.id)
	defer span.End()

	q.mu.Lock()
	inProgressEmpty := len(q.inProgress) == 0
	headDictEmpty := q.queueHeadDict.Len() == 0
	q.mu.Unlock()

	if !inProgressEmpty || !headDictEmpty {
		return false, nil
	}

	items, queueModifiedAt, hadMultipleClients, err := q.backend.GetHead(ctx, q.cfg.QueryHeadMinLength)
	if err != nil {
		return false, err
	}
	if len(items) > 0 {
		return false, nil
	}
	if !hadMultipleClients {
		return true, nil
	}
	return time.Since(queueModifiedAt) >= q.cfg.APIProcessedRequestsDelay, nil
}

// HandledCount returns the number of requests marked handled so far.
func (q *Queue) HandledCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.assumedHandledCount
}

// Info summarizes the queue's client-side view of its state.
type Info struct {
	ID                  string
	AssumedTotalCount   int
	AssumedHandledCount int
	InProgressCount     int
}

// GetInfo returns the queue's current Info snapshot.
func (q *Queue) GetInfo() Info {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Info{
		ID:                  q.id,
		AssumedTotalCount:   q.assumedTotalCount,
		AssumedHandledCount: q.assumedHandledCount,
		InProgressCount:     len(q.inProgress),
	}
}

// Drop permanently removes the queue and its backend state.
func (q *Queue) Drop(ctx context.Context) error {
	return q.backend.Drop(ctx)
}
