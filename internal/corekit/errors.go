// Package corekit holds the error taxonomy shared by every core component
// (queue, list, pool, session, snapshotter).
package corekit

import "fmt"

// CoreError is the error type returned by core operations. Components
// translate backend-specific failures into a CoreError at the boundary so
// callers can branch on Code rather than string-matching messages.
type CoreError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Context carries the identifier relevant to the error (request id,
	// queue id, session id, dimension name), if applicable.
	Context string

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	msg := e.Message
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Context)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// ErrorCode categorizes a CoreError per the taxonomy: input validated at the
// call boundary, transient backend failures, consistency lag the queue
// resolves itself, caller state-machine violations, user task failures, and
// resource-sampling failures.
type ErrorCode int

const (
	// ErrInvalidInput: rejected at the call boundary, never retried.
	ErrInvalidInput ErrorCode = iota

	// ErrTransient: network timeouts, 5xx, rate-limit hints. Retried with
	// capped exponential backoff; surfaced after the cap is exhausted.
	ErrTransient

	// ErrConsistencyLag: a just-created id not yet visible to a read.
	// Retried internally using storageConsistencyDelayMillis.
	ErrConsistencyLag

	// ErrStateMismatch: reclaim/markHandled of a request not in-progress.
	// Fatal for that call — indicates a caller bug.
	ErrStateMismatch

	// ErrTaskFailure: user code thrown from runTask. Aborts the pool.
	ErrTaskFailure

	// ErrResourceSample: a snapshotter sampling failure. Always absorbed
	// with a warning by the caller; never propagated further.
	ErrResourceSample
)

// String returns the canonical name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidInput:
		return "InvalidInput"
	case ErrTransient:
		return "Transient"
	case ErrConsistencyLag:
		return "ConsistencyLag"
	case ErrStateMismatch:
		return "StateMismatch"
	case ErrTaskFailure:
		return "TaskFailure"
	case ErrResourceSample:
		return "ResourceSample"
	default:
		return "Unknown"
	}
}

// ErrorCode reports the error's category, implementing an accessor common errors
// packages in the ecosystem expect for errors.As-free branching.
func (e *CoreError) ErrorCode() ErrorCode {
	return e.Code
}

// ============================================================================
// Factory functions
// ============================================================================

// NewInvalidInputError builds an ErrInvalidInput error for a rejected call.
func NewInvalidInputError(message, context string) *CoreError {
	return &CoreError{Code: ErrInvalidInput, Message: message, Context: context}
}

// NewTransientError wraps a backend failure that is eligible for retry.
func NewTransientError(message, context string, cause error) *CoreError {
	return &CoreError{Code: ErrTransient, Message: message, Context: context, Cause: cause}
}

// NewConsistencyLagError marks a read that raced ahead of a recent write.
func NewConsistencyLagError(context string) *CoreError {
	return &CoreError{Code: ErrConsistencyLag, Message: "consistency lag", Context: context}
}

// NewStateMismatchError marks a caller operating on a request/session not in
// the state it assumed (e.g. reclaiming a request that isn't in-progress).
func NewStateMismatchError(message, context string) *CoreError {
	return &CoreError{Code: ErrStateMismatch, Message: message, Context: context}
}

// NewTaskFailureError wraps a user task error surfaced through AutoscaledPool.run.
func NewTaskFailureError(cause error) *CoreError {
	return &CoreError{Code: ErrTaskFailure, Message: "task failed", Cause: cause}
}

// NewResourceSampleError wraps a snapshotter sampling failure.
func NewResourceSampleError(dimension string, cause error) *CoreError {
	return &CoreError{Code: ErrResourceSample, Message: "sample failed", Context: dimension, Cause: cause}
}

// Retryable implements internal/retry.IsRetryable: only transient backend
// failures and consistency lag are worth another attempt.
func (e *CoreError) Retryable() bool {
	return e.Code == ErrTransient || e.Code == ErrConsistencyLag
}

// IsTransient reports whether err is a CoreError eligible for retry.
func IsTransient(err error) bool {
	ce, ok := err.(*CoreError)
	if !ok {
		return false
	}
	return ce.Code == ErrTransient || ce.Code == ErrConsistencyLag
}
