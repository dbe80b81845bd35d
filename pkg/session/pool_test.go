package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeforge/crawlcore/pkg/kvstore/localfs"
	"github.com/scrapeforge/crawlcore/pkg/session"
)

func TestGetSessionCreatesUpToMaxPoolSize(t *testing.T) {
	// Invariant: |pool| <= maxPoolSize at all times.
	t.Parallel()
	ctx := context.Background()
	pool := session.NewPool(session.PoolConfig{MaxPoolSize: 2})

	s1, err := pool.GetSession(ctx)
	require.NoError(t, err)
	s2, err := pool.GetSession(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.LessOrEqual(t, pool.Size(), 2)
}

func TestGetSessionReusesUsableSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pool := session.NewPool(session.PoolConfig{MaxPoolSize: 1})

	first, err := pool.GetSession(ctx)
	require.NoError(t, err)
	second, err := pool.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}

func TestRetirePublishesEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pool := session.NewPool(session.PoolConfig{MaxPoolSize: 1})

	var retiredID string
	pool.SubscribeRetired(func(e session.RetiredEvent) { retiredID = e.Session.ID() })

	s, err := pool.GetSession(ctx)
	require.NoError(t, err)
	pool.Retire(s)

	assert.Equal(t, s.ID(), retiredID)
	assert.False(t, s.IsUsable())
}

func TestMarkBadRetiresSessionPastThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pool := session.NewPool(session.PoolConfig{
		MaxPoolSize:    1,
		SessionOptions: session.Options{MaxErrorScore: 1},
	})

	var retired bool
	pool.SubscribeRetired(func(session.RetiredEvent) { retired = true })

	s, err := pool.GetSession(ctx)
	require.NoError(t, err)

	pool.MarkBad(s)
	assert.True(t, retired)
	assert.False(t, s.IsUsable())
}

func TestPersistAndRestorePoolState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := localfs.New(t.TempDir())
	require.NoError(t, err)

	pool := session.NewPool(session.PoolConfig{MaxPoolSize: 2, PersistStateKey: "pool-state", Store: store})
	s, err := pool.GetSession(ctx)
	require.NoError(t, err)
	s.MarkBad()
	s.MarkGood()

	require.NoError(t, pool.PersistState(ctx))

	restored := session.NewPool(session.PoolConfig{MaxPoolSize: 2, PersistStateKey: "pool-state", Store: store})
	require.NoError(t, restored.Initialize(ctx))
	assert.Equal(t, 1, restored.Size())
}
