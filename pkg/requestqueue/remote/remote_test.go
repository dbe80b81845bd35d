package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue/remote"
)

func TestAddRequestParsesResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"requestId":         "req-1",
			"wasAlreadyPresent": false,
			"wasAlreadyHandled": false,
		})
	}))
	defer srv.Close()

	client := remote.New(srv.URL, "secret-token", "queue-1")
	req, err := request.New("http://a/1", request.Options{})
	require.NoError(t, err)

	wasPresent, wasHandled, err := client.AddRequest(context.Background(), req, false)
	require.NoError(t, err)
	assert.False(t, wasPresent)
	assert.False(t, wasHandled)
	assert.Equal(t, "req-1", req.ID)
}

func TestGetRequestNotFoundReturnsFalse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "NOT_FOUND", "message": "no such request"})
	}))
	defer srv.Close()

	client := remote.New(srv.URL, "", "queue-1")
	req, found, err := client.GetRequest(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, req)
}

func TestServerErrorIsRetryable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "UNAVAILABLE", "message": "try again"})
	}))
	defer srv.Close()

	client := remote.New(srv.URL, "", "queue-1")
	req, err := request.New("http://a/1", request.Options{})
	require.NoError(t, err)

	_, _, err = client.AddRequest(context.Background(), req, false)
	require.Error(t, err)
	apiErr, ok := err.(*remote.APIError)
	require.True(t, ok)
	assert.True(t, apiErr.Retryable())
}

func TestClientErrorIsNotRetryable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "VALIDATION_ERROR", "message": "bad input"})
	}))
	defer srv.Close()

	client := remote.New(srv.URL, "", "queue-1")
	req, err := request.New("http://a/1", request.Options{})
	require.NoError(t, err)

	_, _, err = client.AddRequest(context.Background(), req, false)
	require.Error(t, err)
	apiErr, ok := err.(*remote.APIError)
	require.True(t, ok)
	assert.False(t, apiErr.Retryable())
}
