package autoscale_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeforge/crawlcore/pkg/autoscale"
)

func TestRunCompletesWhenFinished(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var ran int32
	hooks := autoscale.Hooks{
		IsTaskReady: func(context.Context) (bool, error) { return atomic.LoadInt32(&ran) < 3, nil },
		RunTask: func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
		IsFinished: func(context.Context) (bool, error) { return true, nil },
	}

	cfg := autoscale.DefaultConfig()
	cfg.MaybeRunInterval = time.Millisecond
	pool := autoscale.New(cfg, hooks, nil)

	ctxTimeout, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Run(ctxTimeout))
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
}

func TestRunPropagatesTaskError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("boom")

	hooks := autoscale.Hooks{
		IsTaskReady: func(context.Context) (bool, error) { return true, nil },
		RunTask:     func(context.Context) error { return boom },
		IsFinished:  func(context.Context) (bool, error) { return true, nil },
	}

	cfg := autoscale.DefaultConfig()
	cfg.MaybeRunInterval = time.Millisecond
	pool := autoscale.New(cfg, hooks, nil)

	ctxTimeout, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := pool.Run(ctxTimeout)
	assert.Error(t, err)
}

func TestConcurrencyStaysWithinBounds(t *testing.T) {
	// Testable property 7: minConcurrency <= desiredConcurrency <= maxConcurrency.
	t.Parallel()
	cfg := autoscale.DefaultConfig()
	cfg.MinConcurrency = 2
	cfg.MaxConcurrency = 10
	pool := autoscale.New(cfg, autoscale.Hooks{
		IsTaskReady: func(context.Context) (bool, error) { return false, nil },
		RunTask:     func(context.Context) error { return nil },
		IsFinished:  func(context.Context) (bool, error) { return false, nil },
	}, nil)

	desired := pool.DesiredConcurrency()
	assert.GreaterOrEqual(t, desired, cfg.MinConcurrency)
	assert.LessOrEqual(t, desired, cfg.MaxConcurrency)
}

func TestAbortStopsNewSpawnsButWaitsForInFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var spawnCount int32

	hooks := autoscale.Hooks{
		IsTaskReady: func(context.Context) (bool, error) { return atomic.LoadInt32(&spawnCount) == 0, nil },
		RunTask: func(context.Context) error {
			atomic.AddInt32(&spawnCount, 1)
			close(started)
			<-release
			return nil
		},
		IsFinished: func(context.Context) (bool, error) { return true, nil },
	}

	cfg := autoscale.DefaultConfig()
	cfg.MaybeRunInterval = time.Millisecond
	pool := autoscale.New(cfg, hooks, nil)

	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	<-started
	pool.Abort()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after abort")
	}
}
