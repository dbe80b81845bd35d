package session_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scrapeforge/crawlcore/pkg/session"
)

func TestIsUsableReflectsAllPredicates(t *testing.T) {
	// Invariant 8: isUsable() iff none of expired/blocked/max-usage hold.
	t.Parallel()

	s := session.New(session.Options{MaxErrorScore: 2, MaxUsageCount: 2, ErrorScoreDecrement: 1})
	assert.True(t, s.IsUsable())

	s.MarkBad()
	s.MarkBad()
	assert.True(t, s.IsBlocked())
	assert.False(t, s.IsUsable())
}

func TestMarkGoodFloorsErrorScoreAtZero(t *testing.T) {
	t.Parallel()
	s := session.New(session.Options{ErrorScoreDecrement: 1})
	s.MarkGood()
	assert.Equal(t, 0.0, s.ErrorScore())
	assert.Equal(t, 1, s.UsageCount())
}

func TestMarkBadIncrementsScoreAndUsage(t *testing.T) {
	t.Parallel()
	s := session.New(session.Options{})
	s.MarkBad()
	s.MarkBad()
	assert.Equal(t, 2.0, s.ErrorScore())
	assert.Equal(t, 2, s.UsageCount())
}

func TestMaxUsageReached(t *testing.T) {
	t.Parallel()
	s := session.New(session.Options{MaxUsageCount: 1})
	assert.False(t, s.IsMaxUsageReached())
	s.MarkGood()
	assert.True(t, s.IsMaxUsageReached())
}

func TestFromStatePreservesUsageAndErrorScore(t *testing.T) {
	// Persist-then-restore must preserve usageCount and errorScore exactly.
	t.Parallel()
	original := session.New(session.Options{})
	original.MarkBad()
	original.MarkBad()
	original.MarkGood()

	st := original.GetState()
	restored := session.FromState(st, session.Options{})

	assert.Equal(t, original.UsageCount(), restored.UsageCount())
	assert.InDelta(t, original.ErrorScore(), restored.ErrorScore(), 1e-9)
	assert.Equal(t, original.ID(), restored.ID())
}

func TestIsExpired(t *testing.T) {
	t.Parallel()
	s := session.New(session.Options{TTL: time.Millisecond})
	time.Sleep(5 * time.Millisecond)
	assert.True(t, s.IsExpired())
	assert.False(t, s.IsUsable())
}

func TestFromStatePreservesCookies(t *testing.T) {
	// Persist-then-restore must not silently drop cookie state: the whole
	// point of a Session is carrying identity (cookies) across a crawl.
	t.Parallel()
	original := session.New(session.Options{})
	target := &url.URL{Scheme: "https", Host: "example.com"}
	original.Cookies().SetCookies(target, []*http.Cookie{
		{Name: "sid", Value: "abc123", Domain: "example.com", Path: "/"},
	})

	st := original.GetState()
	if assert.Len(t, st.Cookies, 1) {
		assert.Equal(t, "sid", st.Cookies[0].Name)
		assert.Equal(t, "abc123", st.Cookies[0].Value)
	}

	restored := session.FromState(st, session.Options{})
	restoredCookies := restored.Cookies().Cookies(target)
	if assert.Len(t, restoredCookies, 1) {
		assert.Equal(t, "sid", restoredCookies[0].Name)
		assert.Equal(t, "abc123", restoredCookies[0].Value)
	}
}
