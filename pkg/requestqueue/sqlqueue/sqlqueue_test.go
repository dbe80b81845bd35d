package sqlqueue_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue/sqlqueue"
)

func openTestBackend(t *testing.T) *sqlqueue.Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	backend, err := sqlqueue.Open(sqlqueue.Config{Driver: sqlqueue.DriverSQLite, DSN: path, QueueID: "test-queue"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestAddRequestDeduplicatesByUniqueKey(t *testing.T) {
	t.Parallel()
	backend := openTestBackend(t)
	ctx := context.Background()

	req, err := request.New("http://example.com/a", request.Options{})
	require.NoError(t, err)
	req.AssignID()
	wasPresent, wasHandled, err := backend.AddRequest(ctx, req, false)
	require.NoError(t, err)
	assert.False(t, wasPresent)
	assert.False(t, wasHandled)

	dup, err := request.New("http://example.com/a", request.Options{})
	require.NoError(t, err)
	dup.AssignID()
	wasPresent, _, err = backend.AddRequest(ctx, dup, false)
	require.NoError(t, err)
	assert.True(t, wasPresent)
}

func TestGetHeadReturnsPendingInOrder(t *testing.T) {
	t.Parallel()
	backend := openTestBackend(t)
	ctx := context.Background()

	first, err := request.New("http://example.com/1", request.Options{})
	require.NoError(t, err)
	first.AssignID()
	_, _, err = backend.AddRequest(ctx, first, false)
	require.NoError(t, err)

	second, err := request.New("http://example.com/2", request.Options{})
	require.NoError(t, err)
	second.AssignID()
	_, _, err = backend.AddRequest(ctx, second, false)
	require.NoError(t, err)

	items, _, hadMultiple, err := backend.GetHead(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, hadMultiple)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
}

func TestUpdateRequestMarksHandled(t *testing.T) {
	t.Parallel()
	backend := openTestBackend(t)
	ctx := context.Background()

	req, err := request.New("http://example.com/a", request.Options{})
	require.NoError(t, err)
	req.AssignID()
	_, _, err = backend.AddRequest(ctx, req, false)
	require.NoError(t, err)

	req.MarkHandled(time.Now())
	require.NoError(t, backend.UpdateRequest(ctx, req, false))

	items, _, _, err := backend.GetHead(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	got, found, err := backend.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.IsHandled())
}

func TestDropRemovesAllRows(t *testing.T) {
	t.Parallel()
	backend := openTestBackend(t)
	ctx := context.Background()

	req, err := request.New("http://example.com/a", request.Options{})
	require.NoError(t, err)
	req.AssignID()
	_, _, err = backend.AddRequest(ctx, req, false)
	require.NoError(t, err)

	require.NoError(t, backend.Drop(ctx))

	_, found, err := backend.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, found)
}
