package adminapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeforge/crawlcore/pkg/adminapi"
	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue/localfs"
)

func TestHealthReturnsOK(t *testing.T) {
	t.Parallel()
	router := adminapi.NewRouter(adminapi.Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueueInfoNotFoundWithoutLookup(t *testing.T) {
	t.Parallel()
	router := adminapi.NewRouter(adminapi.Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/queue/abc/info", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueInfoReturnsQueueSnapshot(t *testing.T) {
	t.Parallel()
	backend, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	q := requestqueue.New("my-queue", backend, requestqueue.DefaultConfig())
	ctx := context.Background()
	r, err := request.New("http://example.com/a", request.Options{})
	require.NoError(t, err)
	_, err = q.AddRequest(ctx, r, false)
	require.NoError(t, err)

	router := adminapi.NewRouter(adminapi.Dependencies{
		Queues: func(id string) (*requestqueue.Queue, bool) {
			if id == "my-queue" {
				return q, true
			}
			return nil, false
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/queue/my-queue/info", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp adminapi.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}
