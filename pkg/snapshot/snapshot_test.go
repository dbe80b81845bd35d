package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeforge/crawlcore/pkg/snapshot"
)

func TestWithMemoryOverrideParsesHumanSize(t *testing.T) {
	t.Parallel()
	cfg, err := snapshot.DefaultConfig().WithMemoryOverride("512Mi")
	require.NoError(t, err)
	assert.Equal(t, uint64(512*1024*1024), cfg.TotalMemoryOverrideBytes)
}

func TestSnapshotterSamplesMemoryAndEventLoop(t *testing.T) {
	t.Parallel()
	cfg := snapshot.DefaultConfig()
	cfg.MemorySnapshotInterval = 10 * time.Millisecond
	cfg.EventLoopSnapshotInterval = 10 * time.Millisecond
	cfg.ClientSnapshotInterval = time.Hour

	s := snapshot.New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(s.GetMemorySample(0)) > 0 && len(s.GetEventLoopSample(0)) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestSnapshotterCPUOverloadEventFeedsHistory(t *testing.T) {
	t.Parallel()
	cfg := snapshot.DefaultConfig()
	cfg.MemorySnapshotInterval = time.Hour
	cfg.EventLoopSnapshotInterval = time.Hour
	cfg.ClientSnapshotInterval = time.Hour

	s := snapshot.New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	s.PublishCPUOverload(snapshot.CPUOverloadEvent{IsCPUOverloaded: true, CreatedAt: time.Now()})

	require.Eventually(t, func() bool {
		return len(s.GetCPUSample(0)) == 1
	}, time.Second, 5*time.Millisecond)

	samples := s.GetCPUSample(0)
	assert.True(t, samples[0].IsOverloaded)
}

func TestSnapshotterClientOverloadOnDelta(t *testing.T) {
	t.Parallel()
	cfg := snapshot.DefaultConfig()
	cfg.MemorySnapshotInterval = time.Hour
	cfg.EventLoopSnapshotInterval = time.Hour
	cfg.ClientSnapshotInterval = 10 * time.Millisecond
	cfg.MaxClientErrors = 2

	count := int64(0)
	s := snapshot.New(cfg, func() int64 { return count })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	time.Sleep(15 * time.Millisecond)
	count = 5

	require.Eventually(t, func() bool {
		samples := s.GetClientSample(0)
		for _, sm := range samples {
			if sm.IsOverloaded {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
