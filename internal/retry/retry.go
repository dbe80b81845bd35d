// Package retry implements capped exponential backoff for transient backend
// failures, parameterized per call site rather than globally so tests can
// deterministically assert eventual failure.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config holds retry settings for a single call site.
type Config struct {
	MaxAttempts       uint          // Maximum number of attempts, including the first (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 100ms)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 2s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
}

// DefaultConfig returns the defaults used when a caller doesn't override them.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 2 * time.Second
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
	return c
}

// calculateBackoff returns the delay before the given retry attempt
// (0-indexed, i.e. attempt 0 is the delay before the first retry), with
// +/-20% jitter to avoid thundering-herd retries across concurrent callers.
func (c Config) calculateBackoff(attempt uint) time.Duration {
	backoff := float64(c.InitialBackoff)
	for i := uint(0); i < attempt; i++ {
		backoff *= c.BackoffMultiplier
		if backoff > float64(c.MaxBackoff) {
			backoff = float64(c.MaxBackoff)
			break
		}
	}
	jitter := backoff * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(backoff + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// IsRetryable is implemented by errors that can tell the retry loop whether
// they're worth retrying (e.g. corekit.CoreError's Transient/ConsistencyLag
// codes). Errors that don't implement it are retried like retryable ones.
type IsRetryable interface {
	Retryable() bool
}

// Do retries fn up to cfg.MaxAttempts times with capped exponential backoff.
// It stops early and returns immediately if fn returns a nil error, if ctx is
// canceled, or if the returned error implements IsRetryable and reports
// false. The last error is returned if every attempt fails.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context, attempt uint) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := uint(0); attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if r, ok := lastErr.(IsRetryable); ok && !r.Retryable() {
			return lastErr
		}

		if attempt+1 >= cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.calculateBackoff(attempt)):
		}
	}
	return lastErr
}
