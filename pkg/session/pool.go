package session

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/internal/logger"
	"github.com/scrapeforge/crawlcore/internal/telemetry"
	"github.com/scrapeforge/crawlcore/pkg/kvstore"
	"github.com/scrapeforge/crawlcore/pkg/metrics"
	"github.com/scrapeforge/crawlcore/pkg/pubsub"
)

// RetiredEvent carries the session that was just retired.
type RetiredEvent struct {
	Session *Session
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	MaxPoolSize     int
	SessionOptions  Options
	PersistStateKey string
	Store           kvstore.Store
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = 1000
	}
	return c
}

// Pool is a bounded, scored, rotating set of Sessions.
type Pool struct {
	cfg     PoolConfig
	retired *pubsub.Topic[RetiredEvent]
	metrics metrics.SessionMetrics

	mu       sync.Mutex
	sessions []*Session
}

// SetMetrics attaches a SessionMetrics collector. Pass nil to disable
// collection; the zero value already behaves this way.
func (p *Pool) SetMetrics(m metrics.SessionMetrics) { p.metrics = m }

// NewPool builds an empty Pool.
func NewPool(cfg PoolConfig) *Pool {
	return &Pool{
		cfg:     cfg.withDefaults(),
		retired: pubsub.NewTopic[RetiredEvent](),
	}
}

// SubscribeRetired registers a handler invoked whenever a session retires.
func (p *Pool) SubscribeRetired(handler func(RetiredEvent)) (unsubscribe func()) {
	return p.retired.Subscribe(handler)
}

type PoolState struct {
	Sessions []State `json:"sessions"`
}

// Initialize loads persisted state, if PersistStateKey is set, reconstructing
// each session with usageCount and errorScore preserved exactly.
func (p *Pool) Initialize(ctx context.Context) error {
	if p.cfg.PersistStateKey == "" || p.cfg.Store == nil {
		return nil
	}
	data, found, err := p.cfg.Store.GetRecord(ctx, p.cfg.PersistStateKey)
	if err != nil {
		return corekit.NewTransientError("failed to load session pool state", p.cfg.PersistStateKey, err)
	}
	if !found {
		return nil
	}
	var state PoolState
	if err := json.Unmarshal(data, &state); err != nil {
		return corekit.NewInvalidInputError("corrupt session pool state", p.cfg.PersistStateKey)
	}
	p.mu.Lock()
	for _, st := range state.Sessions {
		p.sessions = append(p.sessions, FromState(st, p.cfg.SessionOptions))
	}
	p.mu.Unlock()
	return nil
}

// GetSession returns a uniformly-random usable session; creates a fresh one
// if none exists and the pool has room; if the pool is full with none
// usable, creates one replacing the oldest retired slot.
func (p *Pool) GetSession(ctx context.Context) (*Session, error) {
	_, span := telemetry.StartSessionSpan(ctx, telemetry.SpanSessionGet)
	defer span.End()

	p.mu.Lock()

	usable := make([]int, 0, len(p.sessions))
	for i, s := range p.sessions {
		if s.IsUsable() {
			usable = append(usable, i)
		}
	}
	if len(usable) > 0 {
		picked := p.sessions[usable[rand.Intn(len(usable))]]
		p.mu.Unlock()
		return picked, nil
	}

	if len(p.sessions) < p.cfg.MaxPoolSize {
		fresh := New(p.cfg.SessionOptions)
		p.sessions = append(p.sessions, fresh)
		p.mu.Unlock()
		p.recordPoolChange()
		return fresh, nil
	}

	idx := p.oldestRetiredOrFirst()
	var toRetire *Session
	if idx >= 0 && !p.sessions[idx].IsUsable() {
		toRetire = p.sessions[idx]
	}
	fresh := New(p.cfg.SessionOptions)
	if idx >= 0 {
		p.sessions[idx] = fresh
	} else {
		p.sessions = append(p.sessions, fresh)
	}
	p.mu.Unlock()

	if toRetire != nil {
		p.retireAndEmit(toRetire)
	}
	p.recordPoolChange()
	return fresh, nil
}

func (p *Pool) recordPoolChange() {
	if p.metrics == nil {
		return
	}
	p.mu.Lock()
	size := len(p.sessions)
	p.mu.Unlock()
	p.metrics.RecordPoolSize(size)
	p.metrics.RecordSessionCreated()
}

// oldestRetiredOrFirst must be called with p.mu held.
func (p *Pool) oldestRetiredOrFirst() int {
	for i, s := range p.sessions {
		if s.isRetired() {
			return i
		}
	}
	if len(p.sessions) > 0 {
		return 0
	}
	return -1
}

// AddSession inserts an externally-constructed session, respecting
// maxPoolSize.
func (p *Pool) AddSession(s *Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) >= p.cfg.MaxPoolSize {
		return corekit.NewStateMismatchError("session pool is full", s.ID())
	}
	p.sessions = append(p.sessions, s)
	return nil
}

// Retire retires s and publishes a RetiredEvent.
func (p *Pool) Retire(s *Session) {
	p.retireAndEmit(s)
}

// MarkGood records a successful use of s, retiring it if it crossed a
// retirement threshold as a result.
func (p *Pool) MarkGood(s *Session) {
	s.MarkGood()
	if p.metrics != nil {
		p.metrics.RecordSessionOutcome(true)
	}
	if !s.IsUsable() {
		p.retireAndEmit(s)
	}
}

// MarkBad records a failed use of s, retiring it if it crossed a retirement
// threshold as a result.
func (p *Pool) MarkBad(s *Session) {
	s.MarkBad()
	if p.metrics != nil {
		p.metrics.RecordSessionOutcome(false)
	}
	if !s.IsUsable() {
		p.retireAndEmit(s)
	}
}

func (p *Pool) retireAndEmit(s *Session) {
	reason := retireReason(s)
	s.Retire()
	if p.metrics != nil {
		p.metrics.RecordSessionRetired(reason)
	}
	logger.Debug("session retired", logger.SessionID(s.ID()))
	p.retired.Publish(RetiredEvent{Session: s})
}

func retireReason(s *Session) string {
	switch {
	case s.IsExpired():
		return "expired"
	case s.IsMaxUsageReached():
		return "max_usage"
	case s.IsBlocked():
		return "blocked"
	default:
		return "explicit"
	}
}

// Size returns the number of sessions currently held, including retired
// ones not yet replaced.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// GetState returns a JSON-friendly snapshot of every session in the pool.
func (p *Pool) GetState() PoolState {
	p.mu.Lock()
	sessions := make([]*Session, len(p.sessions))
	copy(sessions, p.sessions)
	p.mu.Unlock()

	states := make([]State, 0, len(sessions))
	for _, s := range sessions {
		states = append(states, s.GetState())
	}
	return PoolState{Sessions: states}
}

// PersistState serializes and stores the pool's current state.
func (p *Pool) PersistState(ctx context.Context) error {
	if p.cfg.PersistStateKey == "" || p.cfg.Store == nil {
		return nil
	}
	data, err := json.Marshal(p.GetState())
	if err != nil {
		return corekit.NewInvalidInputError("failed to marshal session pool state", p.cfg.PersistStateKey)
	}
	if err := p.cfg.Store.SetRecord(ctx, p.cfg.PersistStateKey, data, "application/json"); err != nil {
		return corekit.NewTransientError("failed to persist session pool state", p.cfg.PersistStateKey, err)
	}
	return nil
}

// Teardown persists final state (best-effort) and clears the pool.
func (p *Pool) Teardown(ctx context.Context) error {
	err := p.PersistState(ctx)
	p.mu.Lock()
	p.sessions = nil
	p.mu.Unlock()
	return err
}
