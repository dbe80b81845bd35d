package snapshot

import "time"

// StatusConfig holds the per-dimension overload ratios SystemStatus uses to
// reduce a window of samples to a single verdict.
type StatusConfig struct {
	CurrentHistory              time.Duration
	MaxMemoryOverloadedRatio    float64
	MaxEventLoopOverloadedRatio float64
	MaxCPUOverloadedRatio       float64
	MaxClientOverloadedRatio    float64
}

// DefaultStatusConfig matches the source's documented defaults: a 5s
// current window, tolerating 10% overloaded samples for memory, event loop
// and CPU, and 30% for client.
func DefaultStatusConfig() StatusConfig {
	return StatusConfig{
		CurrentHistory:              5 * time.Second,
		MaxMemoryOverloadedRatio:    0.1,
		MaxEventLoopOverloadedRatio: 0.1,
		MaxCPUOverloadedRatio:       0.1,
		MaxClientOverloadedRatio:    0.3,
	}
}

// Status is the two-boolean verdict SystemStatus reduces snapshot history
// to, plus the per-dimension breakdown for observability. IsIdle is true
// when no dimension is overloaded.
type Status struct {
	IsIdle       bool
	IsOverloaded bool
	Memory       bool
	EventLoop    bool
	CPU          bool
	Client       bool
}

// SystemStatus reduces a Snapshotter's retained history into current and
// historical overload verdicts.
type SystemStatus struct {
	snapshotter *Snapshotter
	cfg         StatusConfig
}

// NewSystemStatus builds a SystemStatus reading from snapshotter. Multiple
// SystemStatus instances may read the same Snapshotter without
// coordination; each only reads, never mutates.
func NewSystemStatus(snapshotter *Snapshotter, cfg StatusConfig) *SystemStatus {
	return &SystemStatus{snapshotter: snapshotter, cfg: cfg}
}

// GetCurrentStatus evaluates over the last CurrentHistory window.
func (s *SystemStatus) GetCurrentStatus() Status {
	return s.evaluate(s.cfg.CurrentHistory)
}

// GetHistoricalStatus evaluates over the Snapshotter's entire retained
// history.
func (s *SystemStatus) GetHistoricalStatus() Status {
	return s.evaluate(0)
}

func (s *SystemStatus) evaluate(window time.Duration) Status {
	mem := overloadedFraction(s.snapshotter.GetMemorySample(window), func(m MemorySnapshot) bool { return m.IsOverloaded })
	loop := overloadedFraction(s.snapshotter.GetEventLoopSample(window), func(e EventLoopSnapshot) bool { return e.IsOverloaded })
	cpuFrac := overloadedFraction(s.snapshotter.GetCPUSample(window), func(c CPUSnapshot) bool { return c.IsOverloaded })
	client := overloadedFraction(s.snapshotter.GetClientSample(window), func(c ClientSnapshot) bool { return c.IsOverloaded })

	status := Status{
		Memory:    mem > s.cfg.MaxMemoryOverloadedRatio,
		EventLoop: loop > s.cfg.MaxEventLoopOverloadedRatio,
		CPU:       cpuFrac > s.cfg.MaxCPUOverloadedRatio,
		Client:    client > s.cfg.MaxClientOverloadedRatio,
	}
	status.IsOverloaded = status.Memory || status.EventLoop || status.CPU || status.Client
	status.IsIdle = !status.IsOverloaded

	if m := s.snapshotter.metrics; m != nil {
		m.RecordSystemOverloaded("memory", status.Memory)
		m.RecordSystemOverloaded("eventLoop", status.EventLoop)
		m.RecordSystemOverloaded("cpu", status.CPU)
		m.RecordSystemOverloaded("client", status.Client)
	}

	return status
}

// overloadedFraction computes the fraction of samples for which isOverloaded
// is true. An empty sample set is treated as not overloaded (fraction 0).
func overloadedFraction[T any](samples []T, isOverloaded func(T) bool) float64 {
	if len(samples) == 0 {
		return 0
	}
	count := 0
	for _, s := range samples {
		if isOverloaded(s) {
			count++
		}
	}
	return float64(count) / float64(len(samples))
}
