package requestqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue/localfs"
)

type fakeQueueMetrics struct {
	addCalls    int
	fetchHits   int
	fetchMisses int
}

func (m *fakeQueueMetrics) ObserveAddRequest(time.Duration, bool)  { m.addCalls++ }
func (m *fakeQueueMetrics) ObserveFetchNextRequest(_ time.Duration, hit bool) {
	if hit {
		m.fetchHits++
	} else {
		m.fetchMisses++
	}
}
func (m *fakeQueueMetrics) RecordQueueLength(string, int)     {}
func (m *fakeQueueMetrics) RecordInProgressCount(string, int) {}
func (m *fakeQueueMetrics) RecordReclaim(string)              {}

func newTestQueue(t *testing.T) *requestqueue.Queue {
	t.Helper()
	backend, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	cfg := requestqueue.DefaultConfig()
	cfg.StorageConsistencyDelay = time.Millisecond
	return requestqueue.New("test-queue", backend, cfg)
}

func mustRequest(t *testing.T, url string) *request.Request {
	t.Helper()
	req, err := request.New(url, request.Options{})
	require.NoError(t, err)
	return req
}

func TestForefrontBeatsBackfront(t *testing.T) {
	// S1: forefront insertion beats backfront.
	t.Parallel()
	ctx := context.Background()
	q := newTestQueue(t)

	_, err := q.AddRequest(ctx, mustRequest(t, "http://a/1"), false)
	require.NoError(t, err)
	_, err = q.AddRequest(ctx, mustRequest(t, "http://a/2"), false)
	require.NoError(t, err)
	_, err = q.AddRequest(ctx, mustRequest(t, "http://a/3"), true)
	require.NoError(t, err)

	first, err := q.FetchNextRequest(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "http://a/3", first.URL)

	second, err := q.FetchNextRequest(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "http://a/1", second.URL)

	third, err := q.FetchNextRequest(ctx)
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.Equal(t, "http://a/2", third.URL)
}

func TestDuplicateDedup(t *testing.T) {
	// S2: duplicate dedup.
	t.Parallel()
	ctx := context.Background()
	q := newTestQueue(t)

	info1, err := q.AddRequest(ctx, mustRequest(t, "http://a/x"), false)
	require.NoError(t, err)
	assert.False(t, info1.WasAlreadyPresent)

	info2, err := q.AddRequest(ctx, mustRequest(t, "http://a/x"), false)
	require.NoError(t, err)
	assert.True(t, info2.WasAlreadyPresent)
	assert.Equal(t, info1.RequestID, info2.RequestID)
}

func TestReclaimReorders(t *testing.T) {
	// S3: reclaim reorders.
	t.Parallel()
	ctx := context.Background()
	q := newTestQueue(t)

	for _, u := range []string{"http://a/1", "http://a/2", "http://a/3"} {
		_, err := q.AddRequest(ctx, mustRequest(t, u), false)
		require.NoError(t, err)
	}

	first, err := q.FetchNextRequest(ctx)
	require.NoError(t, err)
	require.Equal(t, "http://a/1", first.URL)

	_, err = q.ReclaimRequest(ctx, first, true)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	next, err := q.FetchNextRequest(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "http://a/1", next.URL)
}

func TestMarkHandledRejectsNotInProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := newTestQueue(t)

	req := mustRequest(t, "http://a/1")
	_, err := q.AddRequest(ctx, req, false)
	require.NoError(t, err)

	_, err = q.MarkRequestHandled(ctx, req)
	assert.Error(t, err, "request was never fetched, so it isn't in progress")
}

func TestFetchNeverReturnsHandledRequest(t *testing.T) {
	// Invariant 3: fetchNextRequest never returns an already-handled request.
	t.Parallel()
	ctx := context.Background()
	q := newTestQueue(t)

	_, err := q.AddRequest(ctx, mustRequest(t, "http://a/1"), false)
	require.NoError(t, err)

	fetched, err := q.FetchNextRequest(ctx)
	require.NoError(t, err)
	require.NotNil(t, fetched)

	_, err = q.MarkRequestHandled(ctx, fetched)
	require.NoError(t, err)

	next, err := q.FetchNextRequest(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestHandledCountMonotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := newTestQueue(t)

	for _, u := range []string{"http://a/1", "http://a/2"} {
		_, err := q.AddRequest(ctx, mustRequest(t, u), false)
		require.NoError(t, err)
	}

	assert.Equal(t, 0, q.HandledCount())
	req, err := q.FetchNextRequest(ctx)
	require.NoError(t, err)
	_, err = q.MarkRequestHandled(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, q.HandledCount())
}

func TestMetricsCollectorObservesAddAndFetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := newTestQueue(t)
	m := &fakeQueueMetrics{}
	q.SetMetrics(m)

	_, err := q.AddRequest(ctx, mustRequest(t, "http://a/1"), false)
	require.NoError(t, err)
	_, err = q.FetchNextRequest(ctx)
	require.NoError(t, err)
	_, err = q.FetchNextRequest(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, m.addCalls)
	assert.Equal(t, 1, m.fetchHits)
	assert.Equal(t, 1, m.fetchMisses)
}
