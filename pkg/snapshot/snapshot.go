// Package snapshot implements the Snapshotter: a background sampler of
// memory, event-loop, CPU, and client-error pressure, and SystemStatus, a
// reduction of those histories into idle/overloaded verdicts.
package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/scrapeforge/crawlcore/internal/bytesize"
	"github.com/scrapeforge/crawlcore/internal/logger"
	"github.com/scrapeforge/crawlcore/pkg/metrics"
	"github.com/scrapeforge/crawlcore/pkg/pubsub"
)

// MemorySnapshot is one observation of process/system memory usage.
type MemorySnapshot struct {
	CreatedAt           time.Time
	TotalBytes          uint64
	UsedBytes           uint64
	FreeBytes           uint64
	MainProcessBytes    uint64
	ChildProcessesBytes uint64
	IsOverloaded        bool
}

// EventLoopSnapshot is one observation of scheduler responsiveness: the
// delay a zero-delay continuation actually experienced.
type EventLoopSnapshot struct {
	CreatedAt      time.Time
	ExceededMillis int64
	IsOverloaded   bool
}

// CPUSnapshot is one observation of CPU pressure.
type CPUSnapshot struct {
	CreatedAt    time.Time
	IsOverloaded bool
}

// ClientSnapshot is one observation of upstream client rate-limit pressure.
type ClientSnapshot struct {
	CreatedAt           time.Time
	RateLimitErrorCount int64
	IsOverloaded        bool
}

// CPUOverloadEvent is the external signal Snapshotter subscribes to in lieu
// of sampling CPU usage itself, matching the source's event-driven design.
type CPUOverloadEvent struct {
	IsCPUOverloaded bool
	CreatedAt       time.Time
}

// Config holds every Snapshotter tunable. All intervals and ratios must be
// positive; DefaultConfig supplies sane values.
type Config struct {
	MemorySnapshotInterval    time.Duration
	EventLoopSnapshotInterval time.Duration
	ClientSnapshotInterval    time.Duration
	MaxBlockedMillis          int64
	MaxUsedMemoryRatio        float64
	IgnoreMainProcess         bool
	CriticalOverloadRatio     float64
	MaxClientErrors           int64
	HistoryDuration           time.Duration
	TotalMemoryOverrideBytes  uint64 // from MEMORY_MBYTES, 0 = query the OS

	// SelfSampleCPU enables the /proc-equivalent CPU sampler as a fallback
	// when no external CPU-overload publisher is wired up.
	SelfSampleCPU         bool
	CPUSnapshotInterval   time.Duration
	MaxCPUOverloadPercent float64
}

// DefaultConfig matches the source's documented defaults.
func DefaultConfig() Config {
	return Config{
		MemorySnapshotInterval:    time.Second,
		EventLoopSnapshotInterval: 500 * time.Millisecond,
		ClientSnapshotInterval:    time.Second,
		MaxBlockedMillis:          50,
		MaxUsedMemoryRatio:        0.9,
		CriticalOverloadRatio:     0.99,
		MaxClientErrors:           1,
		HistoryDuration:           2 * time.Minute,
		CPUSnapshotInterval:       2 * time.Second,
		MaxCPUOverloadPercent:     90,
	}
}

// WithMemoryOverride parses a human-readable size (as accepted by
// MEMORY_MBYTES, e.g. "512Mi", "2Gi") and sets TotalMemoryOverrideBytes.
func (c Config) WithMemoryOverride(s string) (Config, error) {
	size, err := bytesize.ParseByteSize(s)
	if err != nil {
		return c, err
	}
	c.TotalMemoryOverrideBytes = size.Uint64()
	return c, nil
}

// RateLimitCounter reports the current cumulative count of upstream
// rate-limit errors observed by user code; the Snapshotter diffs it across
// windows rather than owning the counter itself.
type RateLimitCounter func() int64

// Snapshotter periodically samples resource dimensions and retains a bounded
// window of history per dimension.
type Snapshotter struct {
	cfg         Config
	rateLimitFn RateLimitCounter
	cpuOverload *pubsub.Topic[CPUOverloadEvent]
	metrics     metrics.SnapshotMetrics

	mu              sync.Mutex
	memory          []MemorySnapshot
	eventLoop       []EventLoopSnapshot
	cpuHist         []CPUSnapshot
	client          []ClientSnapshot
	lastClientCount int64
	warnedCritical  bool

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New builds a Snapshotter. rateLimitFn may be nil, in which case client
// overload is never detected.
func New(cfg Config, rateLimitFn RateLimitCounter) *Snapshotter {
	return &Snapshotter{
		cfg:         cfg,
		rateLimitFn: rateLimitFn,
		cpuOverload: pubsub.NewTopic[CPUOverloadEvent](),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// SetMetrics attaches a SnapshotMetrics collector. Pass nil to disable
// collection; the zero value already behaves this way.
func (s *Snapshotter) SetMetrics(m metrics.SnapshotMetrics) { s.metrics = m }

// SubscribeCPUOverload registers a handler for externally-published
// CPU-overload events (e.g. from a container cgroup watcher).
func (s *Snapshotter) SubscribeCPUOverload(handler func(CPUOverloadEvent)) (unsubscribe func()) {
	return s.cpuOverload.Subscribe(handler)
}

// PublishCPUOverload feeds an external CPU-overload observation into the
// snapshotter's history.
func (s *Snapshotter) PublishCPUOverload(event CPUOverloadEvent) {
	s.cpuOverload.Publish(event)
}

// Start schedules the three sampling timers and installs a CPU-overload
// listener that appends to cpuHist. Idempotent.
func (s *Snapshotter) Start(ctx context.Context) {
	s.once.Do(func() {
		s.cpuOverload.Subscribe(func(e CPUOverloadEvent) {
			s.mu.Lock()
			s.cpuHist = append(s.cpuHist, CPUSnapshot{CreatedAt: e.CreatedAt, IsOverloaded: e.IsCPUOverloaded})
			s.pruneLocked()
			s.mu.Unlock()
			if s.metrics != nil {
				s.metrics.RecordCPUOverload(e.IsCPUOverloaded)
			}
		})
		go s.run(ctx)
	})
}

// Stop cancels the sampling timers. Subsequent sample reads still succeed
// against whatever history was retained.
func (s *Snapshotter) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
		<-s.doneCh
	}
}

func (s *Snapshotter) run(ctx context.Context) {
	defer close(s.doneCh)

	memTicker := time.NewTicker(s.cfg.MemorySnapshotInterval)
	defer memTicker.Stop()
	loopTicker := time.NewTicker(s.cfg.EventLoopSnapshotInterval)
	defer loopTicker.Stop()
	clientTicker := time.NewTicker(s.cfg.ClientSnapshotInterval)
	defer clientTicker.Stop()

	var cpuTickerC <-chan time.Time
	if s.cfg.SelfSampleCPU {
		cpuInterval := s.cfg.CPUSnapshotInterval
		if cpuInterval <= 0 {
			cpuInterval = 2 * time.Second
		}
		cpuTicker := time.NewTicker(cpuInterval)
		defer cpuTicker.Stop()
		cpuTickerC = cpuTicker.C
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-memTicker.C:
			s.sampleMemory()
		case <-loopTicker.C:
			s.sampleEventLoop()
		case <-clientTicker.C:
			s.sampleClient()
		case <-cpuTickerC:
			s.sampleCPU(ctx)
		}
	}
}

// sampleCPU is the self-sampling fallback used when no external
// CPU-overload publisher is wired up; errors are absorbed per the
// sampling-never-propagates rule.
func (s *Snapshotter) sampleCPU(ctx context.Context) {
	percent, err := cpuPercentSample(ctx, 0)
	if err != nil {
		logger.Warn("cpu sample failed", logger.Err(err))
		return
	}

	overloaded := percent > s.cfg.MaxCPUOverloadPercent

	s.mu.Lock()
	s.cpuHist = append(s.cpuHist, CPUSnapshot{
		CreatedAt:    time.Now(),
		IsOverloaded: overloaded,
	})
	s.pruneLocked()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordCPUOverload(overloaded)
	}
}

// sampleMemory is absorbed-on-error: any sampling failure is logged and the
// sample is simply skipped.
func (s *Snapshotter) sampleMemory() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn("memory sample failed", logger.Err(err))
		return
	}

	total := vm.Total
	if s.cfg.TotalMemoryOverrideBytes > 0 {
		total = s.cfg.TotalMemoryOverrideBytes
	}

	mainProcessBytes := vm.Used
	numerator := mainProcessBytes
	if s.cfg.IgnoreMainProcess {
		numerator = 0
	}
	var ratio float64
	if total > 0 {
		ratio = float64(numerator) / float64(total)
	}

	snap := MemorySnapshot{
		CreatedAt:        time.Now(),
		TotalBytes:       total,
		UsedBytes:        vm.Used,
		FreeBytes:        vm.Free,
		MainProcessBytes: mainProcessBytes,
		IsOverloaded:     ratio > s.cfg.MaxUsedMemoryRatio,
	}

	s.mu.Lock()
	s.memory = append(s.memory, snap)
	s.pruneLocked()

	if ratio > s.cfg.CriticalOverloadRatio && !s.warnedCritical {
		s.warnedCritical = true
		logger.Warn("memory usage crossed critical overload ratio", slog.Float64("ratio", ratio))
	} else if ratio <= s.cfg.CriticalOverloadRatio {
		s.warnedCritical = false
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordMemoryUsedRatio(ratio)
	}
}

// sampleEventLoop measures the delay between starting a goroutine and seeing
// it run, the closest Go analogue to a JS event-loop lag probe: the new
// goroutine still has to be picked up by the runtime scheduler.
func (s *Snapshotter) sampleEventLoop() {
	start := time.Now()
	done := make(chan struct{})
	go func() { close(done) }()
	<-done
	observed := time.Since(start)

	exceeded := observed - time.Duration(s.cfg.MaxBlockedMillis)*time.Millisecond
	if exceeded < 0 {
		exceeded = 0
	}

	snap := EventLoopSnapshot{
		CreatedAt:      time.Now(),
		ExceededMillis: exceeded.Milliseconds(),
		IsOverloaded:   observed > time.Duration(s.cfg.MaxBlockedMillis)*time.Millisecond,
	}

	s.mu.Lock()
	s.eventLoop = append(s.eventLoop, snap)
	s.pruneLocked()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordEventLoopExceededMillis(exceeded.Milliseconds())
	}
}

func (s *Snapshotter) sampleClient() {
	if s.rateLimitFn == nil {
		return
	}
	count := s.rateLimitFn()

	s.mu.Lock()
	defer s.mu.Unlock()
	delta := count - s.lastClientCount
	s.lastClientCount = count
	s.client = append(s.client, ClientSnapshot{
		CreatedAt:           time.Now(),
		RateLimitErrorCount: count,
		IsOverloaded:        delta > s.cfg.MaxClientErrors,
	})
	s.pruneLocked()
}

// pruneLocked drops history older than HistoryDuration. Caller holds mu.
func (s *Snapshotter) pruneLocked() {
	if s.cfg.HistoryDuration <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.cfg.HistoryDuration)
	s.memory = pruneBefore(s.memory, cutoff, func(m MemorySnapshot) time.Time { return m.CreatedAt })
	s.eventLoop = pruneBefore(s.eventLoop, cutoff, func(e EventLoopSnapshot) time.Time { return e.CreatedAt })
	s.cpuHist = pruneBefore(s.cpuHist, cutoff, func(c CPUSnapshot) time.Time { return c.CreatedAt })
	s.client = pruneBefore(s.client, cutoff, func(c ClientSnapshot) time.Time { return c.CreatedAt })
}

func pruneBefore[T any](items []T, cutoff time.Time, at func(T) time.Time) []T {
	i := 0
	for i < len(items) && at(items[i]).Before(cutoff) {
		i++
	}
	if i == 0 {
		return items
	}
	return append([]T(nil), items[i:]...)
}

// GetMemorySample returns the suffix of the history within the last
// duration, or the entire history if duration is zero.
func (s *Snapshotter) GetMemorySample(duration time.Duration) []MemorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sinceWindow(s.memory, duration, func(m MemorySnapshot) time.Time { return m.CreatedAt })
}

// GetEventLoopSample returns the suffix of the event-loop history within
// the last duration, or the entire history if duration is zero.
func (s *Snapshotter) GetEventLoopSample(duration time.Duration) []EventLoopSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sinceWindow(s.eventLoop, duration, func(e EventLoopSnapshot) time.Time { return e.CreatedAt })
}

// GetCPUSample returns the suffix of the CPU history within the last
// duration, or the entire history if duration is zero.
func (s *Snapshotter) GetCPUSample(duration time.Duration) []CPUSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sinceWindow(s.cpuHist, duration, func(c CPUSnapshot) time.Time { return c.CreatedAt })
}

// GetClientSample returns the suffix of the client history within the last
// duration, or the entire history if duration is zero.
func (s *Snapshotter) GetClientSample(duration time.Duration) []ClientSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sinceWindow(s.client, duration, func(c ClientSnapshot) time.Time { return c.CreatedAt })
}

func sinceWindow[T any](items []T, duration time.Duration, at func(T) time.Time) []T {
	if duration <= 0 {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	cutoff := time.Now().Add(-duration)
	i := len(items)
	for i > 0 && !at(items[i-1]).Before(cutoff) {
		i--
	}
	out := make([]T, len(items)-i)
	copy(out, items[i:])
	return out
}

// cpuPercentSample is a thin wrapper around gopsutil's CPU percentage
// sampler, returning the combined percentage across all CPUs. With a zero
// interval it does not block and measures since the previous call.
func cpuPercentSample(ctx context.Context, interval time.Duration) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil || len(percents) == 0 {
		return 0, err
	}
	return percents[0], nil
}
