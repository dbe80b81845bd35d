package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/scrapeforge/crawlcore/internal/config"
	"github.com/scrapeforge/crawlcore/internal/logger"
	"github.com/scrapeforge/crawlcore/internal/telemetry"
	"github.com/scrapeforge/crawlcore/pkg/adminapi"
	"github.com/scrapeforge/crawlcore/pkg/autoscale"
	"github.com/scrapeforge/crawlcore/pkg/metrics"

	// Registers the Prometheus-backed metrics constructors.
	_ "github.com/scrapeforge/crawlcore/pkg/metrics/prometheus"
	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
	"github.com/scrapeforge/crawlcore/pkg/session"
	"github.com/scrapeforge/crawlcore/pkg/snapshot"
)

var runQueueID string

var runCmd = &cobra.Command{
	Use:   "run <seed-url> [more-seed-urls...]",
	Short: "Run a crawl: drive a RequestQueue through an AutoscaledPool",
	Long: `Run enqueues the given seed URLs into a RequestQueue, then drives
them through an AutoscaledPool, rotating Sessions from a SessionPool and
pausing and resuming concurrency against SystemStatus overload signals.

Each task fetches one request, sleeps briefly to simulate work, and marks
the request handled. This is a demonstration loop: real actors plug their
own fetch/parse/enqueue logic into AutoscaledPool's Hooks.RunTask.

Examples:
  # Crawl three seed URLs with defaults
  crawlcore run https://example.com/a https://example.com/b https://example.com/c

  # Crawl against a named queue, so state survives a restart
  crawlcore run --queue-id my-crawl https://example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runQueueID, "queue-id", "default", "identifier for the RequestQueue, scopes persisted state")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "crawlcore",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "crawlcore",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		registry := metrics.InitRegistry()
		go serveMetrics(cfg.Metrics.Port, registry)
	}
	queueMetrics := metrics.NewQueueMetrics()
	poolMetrics := metrics.NewPoolMetrics()
	sessionMetrics := metrics.NewSessionMetrics()
	snapshotMetrics := metrics.NewSnapshotMetrics()

	backend, err := cfg.Storage.NewQueueBackend(ctx, runQueueID)
	if err != nil {
		return fmt.Errorf("failed to open queue backend: %w", err)
	}
	queue := requestqueue.New(runQueueID, backend, cfg.RequestQueue.ToRequestQueueConfig())
	queue.SetMetrics(queueMetrics)

	for _, rawURL := range args {
		req, err := request.New(rawURL, request.Options{})
		if err != nil {
			return fmt.Errorf("invalid seed URL %q: %w", rawURL, err)
		}
		if _, err := queue.AddRequest(ctx, req, false); err != nil {
			return fmt.Errorf("failed to enqueue %q: %w", rawURL, err)
		}
	}
	logger.Info("seeds enqueued", "count", len(args), "queue_id", runQueueID)

	store, err := cfg.Storage.NewStore(ctx, runQueueID)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	sessionPool := session.NewPool(cfg.SessionPool.ToSessionPoolConfig(store))
	sessionPool.SetMetrics(sessionMetrics)
	if err := sessionPool.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize session pool: %w", err)
	}

	snapshotCfg, err := cfg.Snapshotter.ToSnapshotConfig()
	if err != nil {
		return err
	}
	snapshotter := snapshot.New(snapshotCfg, nil)
	snapshotter.SetMetrics(snapshotMetrics)
	snapshotter.Start(ctx)
	defer snapshotter.Stop()

	systemStatus := snapshot.NewSystemStatus(snapshotter, cfg.SystemStatus.ToStatusConfig())

	pool := autoscale.New(cfg.AutoscaledPool.ToAutoscaleConfig(), autoscale.Hooks{
		IsTaskReady: func(ctx context.Context) (bool, error) {
			empty, err := queue.IsEmpty(ctx)
			if err != nil {
				return false, err
			}
			return !empty, nil
		},
		RunTask: func(ctx context.Context) error {
			return runOneRequest(ctx, queue, sessionPool)
		},
		IsFinished: func(ctx context.Context) (bool, error) {
			return queue.IsFinished(ctx)
		},
	}, systemStatus)
	pool.SetMetrics(poolMetrics)

	var adminServer *adminapi.Server
	if cfg.AdminAPI.IsEnabled() {
		adminServer = adminapi.NewServer(cfg.AdminAPI, adminapi.Dependencies{
			Queues: func(id string) (*requestqueue.Queue, bool) {
				if id != runQueueID {
					return nil, false
				}
				return queue, true
			},
			SessionPool:    sessionPool,
			AutoscaledPool: pool,
			SystemStatus:   systemStatus,
			ConfigSchema:   config.Schema,
		})
		go func() {
			if err := adminServer.Start(ctx); err != nil {
				logger.Error("admin API error", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	poolDone := make(chan error, 1)
	go func() { poolDone <- pool.Run(ctx) }()

	logger.Info("crawl running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
		cancel()
		<-poolDone
	case err := <-poolDone:
		if err != nil {
			logger.Error("crawl ended with error", "error", err)
		}
	}

	if err := sessionPool.Teardown(ctx); err != nil {
		logger.Warn("session pool teardown error", "error", err)
	}
	if adminServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = adminServer.Stop(shutdownCtx)
	}

	logger.Info("crawl finished", "handled", queue.HandledCount())
	return nil
}

// runOneRequest fetches one request from the queue, simulates work against
// a rotated Session, and marks it handled. Real actors replace this body
// with their own fetch/parse/enqueue logic.
func runOneRequest(ctx context.Context, queue *requestqueue.Queue, sessionPool *session.Pool) error {
	req, err := queue.FetchNextRequest(ctx)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}

	sess, err := sessionPool.GetSession(ctx)
	if err != nil {
		return err
	}

	logger.Info("handling request", "url", req.URL, "session_id", sess.ID())
	time.Sleep(50 * time.Millisecond)
	sess.MarkGood()

	req.MarkHandled(time.Now())
	_, err = queue.MarkRequestHandled(ctx, req)
	return err
}

func serveMetrics(port int, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	logger.Info("metrics listening", "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", "error", err)
	}
}
