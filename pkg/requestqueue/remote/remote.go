// Package remote implements requestqueue.Backend over an external
// RemoteStorageClient: an HTTP+JSON+bearer-token API client, so a queue can
// live in a shared service instead of the local filesystem.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
)

// APIError mirrors an error response body from the remote store.
type APIError struct {
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Retryable reports whether the remote error is worth retrying: 5xx and 429
// are transient, everything else (4xx) is a caller bug.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client is a minimal REST client over the abstracted remote storage
// surface: addRequest, getRequest, updateRequest, getHead, deleteQueue.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	queueID    string
}

// New creates a Client scoped to one queue.
func New(baseURL, token, queueID string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		queueID:    queueID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return corekit.NewInvalidInputError("failed to marshal request body", path)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return corekit.NewInvalidInputError("failed to build request", path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return corekit.NewTransientError("remote request failed", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return corekit.NewTransientError("failed to read remote response", path, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return corekit.NewTransientError("failed to decode remote response", path, err)
		}
	}
	return nil
}

type addRequestResponse struct {
	RequestID         string `json:"requestId"`
	WasAlreadyPresent bool   `json:"wasAlreadyPresent"`
	WasAlreadyHandled bool   `json:"wasAlreadyHandled"`
}

// AddRequest implements requestqueue.Backend.
func (c *Client) AddRequest(ctx context.Context, req *request.Request, forefront bool) (bool, bool, error) {
	var resp addRequestResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/queues/%s/requests", c.queueID), map[string]any{
		"request":   req,
		"forefront": forefront,
	}, &resp)
	if err != nil {
		return false, false, err
	}
	req.ID = resp.RequestID
	return resp.WasAlreadyPresent, resp.WasAlreadyHandled, nil
}

type getRequestResponse struct {
	Request *request.Request `json:"request"`
	Found   bool             `json:"found"`
}

// GetRequest implements requestqueue.Backend.
func (c *Client) GetRequest(ctx context.Context, id string) (*request.Request, bool, error) {
	var resp getRequestResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/queues/%s/requests/%s", c.queueID, id), nil, &resp)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return resp.Request, resp.Found, nil
}

// UpdateRequest implements requestqueue.Backend.
func (c *Client) UpdateRequest(ctx context.Context, req *request.Request, forefront bool) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/queues/%s/requests/%s", c.queueID, req.ID), map[string]any{
		"request":   req,
		"forefront": forefront,
	}, nil)
}

type getHeadResponse struct {
	Items              []requestqueue.HeadItem `json:"items"`
	QueueModifiedAt    time.Time               `json:"queueModifiedAt"`
	HadMultipleClients bool                    `json:"hadMultipleClients"`
}

// GetHead implements requestqueue.Backend.
func (c *Client) GetHead(ctx context.Context, limit int) ([]requestqueue.HeadItem, time.Time, bool, error) {
	var resp getHeadResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/queues/%s/head?limit=%d", c.queueID, limit), nil, &resp)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return resp.Items, resp.QueueModifiedAt, resp.HadMultipleClients, nil
}

// Drop implements requestqueue.Backend by deleting the remote queue.
func (c *Client) Drop(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/queues/%s", c.queueID), nil, nil)
}

// DeleteQueue is an explicit alias for Drop, matching the abstracted remote
// client surface's naming.
func (c *Client) DeleteQueue(ctx context.Context) error {
	return c.Drop(ctx)
}

// ListKeys, GetRecord, SetRecord, DeleteRecord implement the remainder of
// the abstracted remote client surface for the key-value store side; see
// pkg/kvstore for the storage-agnostic interface these back.

// ListKeys lists every key in the remote key-value store.
func (c *Client) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.do(ctx, http.MethodGet, "/stores/keys", nil, &keys)
	return keys, err
}

// GetRecord fetches a key-value record from the remote store.
func (c *Client) GetRecord(ctx context.Context, key string) ([]byte, bool, error) {
	var resp struct {
		Value []byte `json:"value"`
		Found bool   `json:"found"`
	}
	err := c.do(ctx, http.MethodGet, "/stores/records/"+key, nil, &resp)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Found, nil
}

// SetRecord stores a key-value record in the remote store.
func (c *Client) SetRecord(ctx context.Context, key string, value []byte, contentType string) error {
	return c.do(ctx, http.MethodPut, "/stores/records/"+key, map[string]any{
		"value":       value,
		"contentType": contentType,
	}, nil)
}

// DeleteRecord removes a key-value record from the remote store.
func (c *Client) DeleteRecord(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/stores/records/"+key, nil, nil)
}
