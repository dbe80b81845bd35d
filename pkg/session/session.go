// Package session implements Session, a reusable identity (cookie jar plus
// an error score), and SessionPool, the bounded, scored, rotating set that
// hands sessions out to crawl tasks.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an identity reused across requests: a cookie jar and a score
// that degrades on failure and recovers on success.
type Session struct {
	mu sync.Mutex

	id                  string
	cookies             *trackingJar
	userData            map[string]any
	createdAt           time.Time
	expiresAt           time.Time
	usageCount          int
	errorScore          float64
	maxErrorScore       float64
	errorScoreDecrement float64
	maxUsageCount       int
	retired             bool
}

// Options configures a new Session. Zero values fall back to sane defaults.
type Options struct {
	TTL                 time.Duration
	MaxErrorScore       float64
	ErrorScoreDecrement float64
	MaxUsageCount       int
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 50 * time.Minute
	}
	if o.MaxErrorScore <= 0 {
		o.MaxErrorScore = 3
	}
	if o.ErrorScoreDecrement <= 0 {
		o.ErrorScoreDecrement = 0.5
	}
	if o.MaxUsageCount <= 0 {
		o.MaxUsageCount = 50
	}
	return o
}

// New creates a fresh Session with its own empty cookie jar.
func New(opts Options) *Session {
	opts = opts.withDefaults()
	now := time.Now()
	return &Session{
		id:                  uuid.NewString(),
		cookies:             newTrackingJar(),
		userData:            make(map[string]any),
		createdAt:           now,
		expiresAt:           now.Add(opts.TTL),
		maxErrorScore:       opts.MaxErrorScore,
		errorScoreDecrement: opts.ErrorScoreDecrement,
		maxUsageCount:       opts.MaxUsageCount,
	}
}

// ID returns the session's stable identifier.
func (s *Session) ID() string { return s.id }

// Cookies returns the session's cookie jar, for use as an http.Client Jar.
func (s *Session) Cookies() http.CookieJar { return s.cookies }

// UserData returns the session's opaque user-data bag.
func (s *Session) UserData() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userData
}

// IsExpired reports whether the session has outlived its TTL.
func (s *Session) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().After(s.expiresAt)
}

// IsMaxUsageReached reports whether usageCount has hit maxUsageCount.
func (s *Session) IsMaxUsageReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usageCount >= s.maxUsageCount
}

// IsBlocked reports whether errorScore has crossed maxErrorScore.
func (s *Session) IsBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorScore >= s.maxErrorScore
}

// IsUsable reports whether none of the retirement predicates hold.
func (s *Session) IsUsable() bool {
	return !s.IsExpired() && !s.IsMaxUsageReached() && !s.IsBlocked() && !s.isRetired()
}

func (s *Session) isRetired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retired
}

// MarkGood decrements errorScore (floored at zero) and increments usage.
func (s *Session) MarkGood() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorScore -= s.errorScoreDecrement
	if s.errorScore < 0 {
		s.errorScore = 0
	}
	s.usageCount++
}

// MarkBad increments errorScore and usage.
func (s *Session) MarkBad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorScore++
	s.usageCount++
}

// Retire marks the session as no longer usable.
func (s *Session) Retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = true
}

// UsageCount returns the current usage count.
func (s *Session) UsageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usageCount
}

// ErrorScore returns the current error score.
func (s *Session) ErrorScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorScore
}

// State is a JSON-friendly mirror of a Session's persistable fields.
type State struct {
	ID            string         `json:"id"`
	Cookies       []*http.Cookie `json:"cookies"`
	UserData      map[string]any `json:"userData"`
	CreatedAt     time.Time      `json:"createdAt"`
	ExpiresAt     time.Time      `json:"expiresAt"`
	UsageCount    int            `json:"usageCount"`
	ErrorScore    float64        `json:"errorScore"`
	MaxErrorScore float64        `json:"maxErrorScore"`
	MaxUsageCount int            `json:"maxUsageCount"`
}

// GetState returns a JSON-friendly snapshot of the session.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:            s.id,
		Cookies:       s.cookies.allCookies(),
		UserData:      s.userData,
		CreatedAt:     s.createdAt,
		ExpiresAt:     s.expiresAt,
		UsageCount:    s.usageCount,
		ErrorScore:    s.errorScore,
		MaxErrorScore: s.maxErrorScore,
		MaxUsageCount: s.maxUsageCount,
	}
}

// FromState reconstructs a Session from a persisted State, preserving
// usageCount and errorScore exactly.
func FromState(st State, opts Options) *Session {
	opts = opts.withDefaults()
	jar := newTrackingJar()
	jar.restoreCookies(st.Cookies)
	return &Session{
		id:                  st.ID,
		cookies:             jar,
		userData:            st.UserData,
		createdAt:           st.CreatedAt,
		expiresAt:           st.ExpiresAt,
		usageCount:          st.UsageCount,
		errorScore:          st.ErrorScore,
		maxErrorScore:       st.MaxErrorScore,
		errorScoreDecrement: opts.ErrorScoreDecrement,
		maxUsageCount:       st.MaxUsageCount,
	}
}
