// Package request defines the Request type shared by RequestQueue and
// RequestList: the unit of crawl work that flows from seed/discovery through
// fetch to a terminal handled state.
package request

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is one crawl target with metadata. Id is assigned on first
// persistence and is immutable thereafter; UniqueKey is the deduplication
// identity, independent of Id.
type Request struct {
	ID            string            `json:"id,omitempty"`
	UniqueKey     string            `json:"uniqueKey" validate:"required"`
	URL           string            `json:"url" validate:"required,url"`
	Method        string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Payload       []byte            `json:"payload,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	UserData      map[string]any    `json:"userData,omitempty"`
	RetryCount    int               `json:"retryCount"`
	NoRetry       bool              `json:"noRetry,omitempty"`
	ErrorMessages []string          `json:"errorMessages,omitempty"`
	HandledAt     *time.Time        `json:"handledAt,omitempty"`

	// OrderNo is local-backend ordering metadata: signed, sign carries
	// forefront-vs-backfront, magnitude is time-based. Zero means unset.
	OrderNo int64 `json:"orderNo,omitempty"`
}

// MaxErrorMessages bounds the ErrorMessages slice; oldest entries are
// dropped once the bound is reached.
const MaxErrorMessages = 100

// Options configures construction of a new Request.
type Options struct {
	Method               string
	Payload              []byte
	Headers              map[string]string
	UserData             map[string]any
	UseExtendedUniqueKey bool
}

// New builds a Request from a raw URL and validates it. UniqueKey defaults
// to the normalized URL; when UseExtendedUniqueKey is set on a non-GET
// request, it combines method and a payload hash so identical URLs with
// different bodies are treated as distinct targets.
func New(rawURL string, opts Options) (*Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	if method == http.MethodGet && len(opts.Payload) > 0 {
		return nil, errInvalidPayload
	}

	normalized, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	req := &Request{
		UniqueKey: uniqueKeyFor(normalized, method, opts.Payload, opts.UseExtendedUniqueKey),
		URL:       normalized,
		Method:    method,
		Payload:   opts.Payload,
		Headers:   opts.Headers,
		UserData:  opts.UserData,
	}

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return req, nil
}

// AssignID assigns the storage-level identifier on first persistence. It is
// a no-op if an id is already set, since ids are immutable once assigned.
func (r *Request) AssignID() string {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return r.ID
}

// IsHandled reports whether the request has reached its terminal state.
func (r *Request) IsHandled() bool {
	return r.HandledAt != nil
}

// MarkHandled sets HandledAt to at, making the request terminal.
func (r *Request) MarkHandled(at time.Time) {
	r.HandledAt = &at
}

// AddErrorMessage appends a bounded error message, evicting the oldest
// entry once MaxErrorMessages is reached.
func (r *Request) AddErrorMessage(msg string) {
	r.ErrorMessages = append(r.ErrorMessages, msg)
	if len(r.ErrorMessages) > MaxErrorMessages {
		r.ErrorMessages = r.ErrorMessages[len(r.ErrorMessages)-MaxErrorMessages:]
	}
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errInvalidURL
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}

func uniqueKeyFor(normalizedURL, method string, payload []byte, extended bool) string {
	if !extended || method == http.MethodGet {
		return normalizedURL
	}
	h := sha256.Sum256(payload)
	return method + ":" + normalizedURL + ":" + hex.EncodeToString(h[:8])
}
