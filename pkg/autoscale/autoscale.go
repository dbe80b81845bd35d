// Package autoscale implements AutoscaledPool: a cooperative task scheduler
// that pulls work through a user-supplied isTaskReady/runTask/isFinished
// triplet and adjusts its concurrency level against SystemStatus pressure.
package autoscale

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/internal/logger"
	"github.com/scrapeforge/crawlcore/internal/telemetry"
	"github.com/scrapeforge/crawlcore/pkg/metrics"
	"github.com/scrapeforge/crawlcore/pkg/snapshot"
)

// Hooks are the three user-supplied callbacks driving the scheduler.
type Hooks struct {
	// IsTaskReady is cheap and called frequently.
	IsTaskReady func(ctx context.Context) (bool, error)
	// RunTask performs one unit of work.
	RunTask func(ctx context.Context) error
	// IsFinished is called only when the pool is idle and no task is ready.
	IsFinished func(ctx context.Context) (bool, error)
}

// Config holds every AutoscaledPool tunable.
type Config struct {
	MinConcurrency     int
	MaxConcurrency     int
	MaybeRunInterval   time.Duration
	ScaleUpInterval    time.Duration
	ScaleDownInterval  time.Duration
	ScaleUpStepRatio   float64
	ScaleDownStepRatio float64
}

// DefaultConfig matches the source's documented defaults.
func DefaultConfig() Config {
	return Config{
		MinConcurrency:     1,
		MaxConcurrency:     200,
		MaybeRunInterval:   500 * time.Millisecond,
		ScaleUpInterval:    10 * time.Second,
		ScaleDownInterval:  5 * time.Second,
		ScaleUpStepRatio:   0.05,
		ScaleDownStepRatio: 0.05,
	}
}

// Pool is the cooperative, resource-aware task scheduler.
type Pool struct {
	cfg     Config
	hooks   Hooks
	status  *snapshot.SystemStatus
	metrics metrics.PoolMetrics

	mu                 sync.Mutex
	desiredConcurrency int
	runningCount       int
	paused             bool
	aborted            bool

	group    *errgroup.Group
	groupCtx context.Context
}

// New builds a Pool. status may be nil, in which case the pool never throttles
// for resource pressure (used for tests and for deployments without
// snapshotting enabled).
func New(cfg Config, hooks Hooks, status *snapshot.SystemStatus) *Pool {
	return &Pool{
		cfg:                cfg,
		hooks:              hooks,
		status:             status,
		desiredConcurrency: cfg.MinConcurrency,
	}
}

// SetMetrics attaches a PoolMetrics collector. Pass nil to disable
// collection; the zero value already behaves this way.
func (p *Pool) SetMetrics(m metrics.PoolMetrics) { p.metrics = m }

// DesiredConcurrency returns the current target concurrency level.
func (p *Pool) DesiredConcurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.desiredConcurrency
}

// RunningCount returns the number of tasks currently in flight.
func (p *Pool) RunningCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningCount
}

// Pause blocks new task spawns without transitioning to a terminal state.
func (p *Pool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// Resume restarts spawning after Pause.
func (p *Pool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

// Abort is immediate for spawning, cooperative for in-flight tasks: Run
// returns once every currently-running task completes.
func (p *Pool) Abort() {
	p.mu.Lock()
	p.aborted = true
	p.mu.Unlock()
}

// Run drives the scheduler until abort, a task error, or isFinished()
// returns true with the pool idle.
func (p *Pool) Run(ctx context.Context) error {
	_, span := telemetry.StartPoolSpan(ctx, telemetry.SpanPoolRunTask)
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	p.mu.Lock()
	p.group = g
	p.groupCtx = gctx
	p.mu.Unlock()

	ticker := time.NewTicker(p.cfg.MaybeRunInterval)
	defer ticker.Stop()

	lastScaleUp := time.Now()
	lastScaleDown := time.Now()

	for {
		select {
		case <-ctx.Done():
			p.Abort()
			_ = g.Wait()
			return ctx.Err()
		case <-ticker.C:
			if err := p.tick(ctx, &lastScaleUp, &lastScaleDown); err != nil {
				_ = g.Wait()
				return err
			}
			terminal, err := p.isTerminal(ctx)
			if err != nil {
				_ = g.Wait()
				return err
			}
			if terminal {
				return g.Wait()
			}
		}
	}
}

func (p *Pool) tick(ctx context.Context, lastScaleUp, lastScaleDown *time.Time) error {
	p.mu.Lock()
	aborted, paused := p.aborted, p.paused
	running, desired := p.runningCount, p.desiredConcurrency
	p.mu.Unlock()

	if !aborted && !paused && running < desired {
		ready, err := p.hooks.IsTaskReady(ctx)
		if err != nil {
			return corekit.NewTaskFailureError(err)
		}
		if ready && !p.historicalOverloaded() {
			p.spawn()
		}
	}

	if p.metrics != nil {
		p.metrics.RecordDesiredConcurrency(desired)
		p.metrics.RecordRunningCount(running)
	}

	logger.DebugCtx(ctx, "autoscale tick",
		logger.DesiredConcurrency(desired), logger.RunningCount(running))

	if time.Since(*lastScaleUp) >= p.cfg.ScaleUpInterval {
		*lastScaleUp = time.Now()
		p.maybeScaleUp()
	}
	if time.Since(*lastScaleDown) >= p.cfg.ScaleDownInterval {
		*lastScaleDown = time.Now()
		p.maybeScaleDown()
	}
	return nil
}

func (p *Pool) spawn() {
	p.mu.Lock()
	p.runningCount++
	group, taskCtx := p.group, p.groupCtx
	p.mu.Unlock()

	group.Go(func() error {
		defer func() {
			p.mu.Lock()
			p.runningCount--
			p.mu.Unlock()
		}()

		if err := p.hooks.RunTask(taskCtx); err != nil {
			if p.metrics != nil {
				p.metrics.RecordTaskFailure()
			}
			p.Abort()
			return corekit.NewTaskFailureError(err)
		}
		return nil
	})
}

func (p *Pool) currentOverloaded() bool {
	if p.status == nil {
		return false
	}
	return p.status.GetCurrentStatus().IsOverloaded
}

func (p *Pool) historicalOverloaded() bool {
	if p.status == nil {
		return false
	}
	return p.status.GetHistoricalStatus().IsOverloaded
}

func (p *Pool) maybeScaleUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentOverloaded() || p.runningCount < p.desiredConcurrency {
		return
	}
	step := int(math.Ceil(float64(p.desiredConcurrency) * p.cfg.ScaleUpStepRatio))
	if step < 1 {
		step = 1
	}
	p.desiredConcurrency = min(p.desiredConcurrency+step, p.cfg.MaxConcurrency)
	if p.metrics != nil {
		p.metrics.RecordScaleUp(p.desiredConcurrency)
	}
}

func (p *Pool) maybeScaleDown() {
	if !p.historicalOverloaded() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	step := int(math.Ceil(float64(p.desiredConcurrency) * p.cfg.ScaleDownStepRatio))
	if step < 1 {
		step = 1
	}
	p.desiredConcurrency = max(p.desiredConcurrency-step, p.cfg.MinConcurrency)
	if p.metrics != nil {
		p.metrics.RecordScaleDown(p.desiredConcurrency)
	}
}

func (p *Pool) isTerminal(ctx context.Context) (bool, error) {
	p.mu.Lock()
	aborted := p.aborted
	running := p.runningCount
	p.mu.Unlock()

	if aborted && running == 0 {
		return true, nil
	}
	if running != 0 {
		return false, nil
	}

	ready, err := p.hooks.IsTaskReady(ctx)
	if err != nil {
		return true, corekit.NewTaskFailureError(err)
	}
	if ready {
		return false, nil
	}

	finished, err := p.hooks.IsFinished(ctx)
	if err != nil {
		return true, corekit.NewTaskFailureError(err)
	}
	return finished, nil
}
