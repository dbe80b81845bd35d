// Package requestlist implements the static, ordered, restartable seed set:
// a precomputed sequence of requests with a progress pointer, a reclaimed
// set drained before advancing, and opt-in state persistence.
package requestlist

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/internal/logger"
	"github.com/scrapeforge/crawlcore/internal/telemetry"
	"github.com/scrapeforge/crawlcore/pkg/kvstore"
	"github.com/scrapeforge/crawlcore/pkg/request"
)

// State is the persisted progress snapshot: next index into the ordered
// sources, the uniqueKey expected at that index (a cheap drift check on
// restore), and the ids currently dispatched but unresolved.
type State struct {
	NextIndex     int             `json:"nextIndex"`
	NextUniqueKey *string         `json:"nextUniqueKey"`
	InProgress    map[string]bool `json:"inProgress"`
}

// List is a deterministic, restartable iterator over a precomputed request
// set. Initialize must precede every other operation.
type List struct {
	id              string
	persistStateKey string
	store           kvstore.Store

	mu          sync.Mutex
	sources     []*request.Request // fully expanded, deduplicated, in order
	byUniqueKey map[string]int     // uniqueKey -> index into sources
	nextIndex   int
	inProgress  map[string]struct{} // uniqueKey -> present
	reclaimed   *list.List          // of uniqueKey, drained before advancing
	handled     map[string]struct{} // uniqueKey -> handled
	dirty       bool
}

// Options configures a List before Initialize is called.
type Options struct {
	ID                string
	Sources           []*request.Request // already-expanded requests, in order
	KeepDuplicateURLs bool
	PersistStateKey   string
	Store             kvstore.Store // required if PersistStateKey is set
}

// New builds a List from Options. Call Initialize before use.
func New(opts Options) *List {
	return &List{
		id:              opts.ID,
		persistStateKey: opts.PersistStateKey,
		store:           opts.Store,
		sources:         dedupeSources(opts.Sources, opts.KeepDuplicateURLs),
		byUniqueKey:     make(map[string]int),
		inProgress:      make(map[string]struct{}),
		reclaimed:       list.New(),
		handled:         make(map[string]struct{}),
	}
}

func dedupeSources(sources []*request.Request, keepDuplicates bool) []*request.Request {
	if keepDuplicates {
		return sources
	}
	seen := make(map[string]struct{}, len(sources))
	out := make([]*request.Request, 0, len(sources))
	for _, r := range sources {
		if _, ok := seen[r.UniqueKey]; ok {
			continue
		}
		seen[r.UniqueKey] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Initialize loads prior persisted state, if configured, reconciling any
// in-progress entries that no longer exist among the current sources by
// dropping them with a warning rather than failing. Restored in-progress
// entries are queued as reclaimed, so they are fetched again first.
func (l *List) Initialize(ctx context.Context) error {
	l.mu.Lock()
	for i, r := range l.sources {
		l.byUniqueKey[r.UniqueKey] = i
	}
	l.mu.Unlock()

	if l.persistStateKey == "" || l.store == nil {
		return nil
	}

	data, found, err := l.store.GetRecord(ctx, l.persistStateKey)
	if err != nil {
		return corekit.NewTransientError("failed to load request list state", l.persistStateKey, err)
	}
	if !found {
		return nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return corekit.NewInvalidInputError("corrupt request list state", l.persistStateKey)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextIndex = state.NextIndex
	for uniqueKey := range state.InProgress {
		if _, ok := l.byUniqueKey[uniqueKey]; !ok {
			logger.Warn("dropping stale in-progress entry on restore, not present in current sources",
				logger.ListID(l.id), logger.UniqueKey(uniqueKey))
			continue
		}
		l.inProgress[uniqueKey] = struct{}{}
		l.reclaimed.PushBack(uniqueKey)
	}
	return nil
}

// FetchNextRequest drains the reclaimed set first, then advances through
// sources. Returns nil when exhausted.
func (l *List) FetchNextRequest(ctx context.Context) (*request.Request, error) {
	_, span := telemetry.StartListSpan(ctx, telemetry.SpanListFetchNext, l.id)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if el := l.reclaimed.Front(); el != nil {
		uniqueKey := el.Value.(string)
		l.reclaimed.Remove(el)
		l.inProgress[uniqueKey] = struct{}{}
		return l.sources[l.byUniqueKey[uniqueKey]], nil
	}

	for l.nextIndex < len(l.sources) {
		r := l.sources[l.nextIndex]
		l.nextIndex++
		if _, handled := l.handled[r.UniqueKey]; handled {
			continue
		}
		if _, inProgress := l.inProgress[r.UniqueKey]; inProgress {
			continue
		}
		l.inProgress[r.UniqueKey] = struct{}{}
		l.dirty = true
		return r, nil
	}
	return nil, nil
}

// MarkRequestHandled removes req from in-progress and records it terminal.
func (l *List) MarkRequestHandled(_ context.Context, req *request.Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inProgress, req.UniqueKey)
	l.handled[req.UniqueKey] = struct{}{}
	l.dirty = true
	return nil
}

// ReclaimRequest adds req to the reclaimed set. It stays in progress (and in
// the persisted state) until it is marked handled.
func (l *List) ReclaimRequest(_ context.Context, req *request.Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.inProgress[req.UniqueKey]; !ok {
		return corekit.NewStateMismatchError("request is not in progress", req.UniqueKey)
	}
	l.reclaimed.PushBack(req.UniqueKey)
	l.dirty = true
	return nil
}

// IsEmpty reports whether there is nothing left to fetch right now.
func (l *List) IsEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reclaimed.Len() == 0 && l.nextIndex >= len(l.sources)
}

// IsFinished reports whether the list is fully drained: nothing left to
// fetch and nothing still in progress.
func (l *List) IsFinished() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reclaimed.Len() == 0 && l.nextIndex >= len(l.sources) && len(l.inProgress) == 0
}

// Length returns the total number of sources.
func (l *List) Length() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sources)
}

// HandledCount returns the number of requests marked handled.
func (l *List) HandledCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handled)
}

// GetState returns the current persistable snapshot.
func (l *List) GetState() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	inProgress := make(map[string]bool, len(l.inProgress))
	for k := range l.inProgress {
		inProgress[k] = true
	}
	var nextUniqueKey *string
	if l.nextIndex < len(l.sources) {
		k := l.sources[l.nextIndex].UniqueKey
		nextUniqueKey = &k
	}
	return State{NextIndex: l.nextIndex, NextUniqueKey: nextUniqueKey, InProgress: inProgress}
}

// PersistState serializes and stores the current state under
// PersistStateKey, iff dirty since the last persist. Persisting is
// idempotent.
func (l *List) PersistState(ctx context.Context) error {
	l.mu.Lock()
	if l.persistStateKey == "" || l.store == nil || !l.dirty {
		l.mu.Unlock()
		return nil
	}
	state := l.GetStateLocked()
	l.dirty = false
	l.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return corekit.NewInvalidInputError("failed to marshal request list state", l.persistStateKey)
	}
	if err := l.store.SetRecord(ctx, l.persistStateKey, data, "application/json"); err != nil {
		return corekit.NewTransientError("failed to persist request list state", l.persistStateKey, err)
	}
	return nil
}

// GetStateLocked is GetState without acquiring the lock, for callers that
// already hold it.
func (l *List) GetStateLocked() State {
	inProgress := make(map[string]bool, len(l.inProgress))
	for k := range l.inProgress {
		inProgress[k] = true
	}
	var nextUniqueKey *string
	if l.nextIndex < len(l.sources) {
		k := l.sources[l.nextIndex].UniqueKey
		nextUniqueKey = &k
	}
	return State{NextIndex: l.nextIndex, NextUniqueKey: nextUniqueKey, InProgress: inProgress}
}
