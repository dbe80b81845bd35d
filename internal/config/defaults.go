package config

import (
	"strings"
	"time"

	"github.com/scrapeforge/crawlcore/pkg/autoscale"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
	"github.com/scrapeforge/crawlcore/pkg/snapshot"
)

// ApplyDefaults fills in zero-valued fields with sensible defaults. The
// request queue, snapshotter, system status and autoscaled pool sections
// take theirs from the domain package's own DefaultConfig; the logging,
// telemetry, storage, session pool and metrics defaults are set here.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyStorageDefaults(&cfg.Storage)
	applyRequestQueueDefaults(&cfg.RequestQueue)
	applySessionPoolDefaults(&cfg.SessionPool)
	applySnapshotterDefaults(&cfg.Snapshotter)
	applySystemStatusDefaults(&cfg.SystemStatus)
	applyAutoscaledPoolDefaults(&cfg.AutoscaledPool)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.AdminAPI.ApplyDefaults()
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_objects"}
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "local"
	}
	if cfg.Local.Dir == "" {
		cfg.Local.Dir = "/tmp/crawlcore-storage"
	}
	if cfg.Badger.Dir == "" {
		cfg.Badger.Dir = "/tmp/crawlcore-badger"
	}
	if cfg.S3.Prefix == "" {
		cfg.S3.Prefix = "requests/"
	}
	if cfg.SQL.Driver == "" {
		cfg.SQL.Driver = "sqlite"
	}
	if cfg.SQL.DSN == "" && cfg.SQL.Driver == "sqlite" {
		cfg.SQL.DSN = "/tmp/crawlcore-sqlqueue/queue.db"
	}
}

func applyRequestQueueDefaults(cfg *RequestQueueConfig) {
	d := requestqueue.DefaultConfig()
	if cfg.QueryHeadMinLength == 0 {
		cfg.QueryHeadMinLength = d.QueryHeadMinLength
	}
	if cfg.RecentlyHandledCapacity == 0 {
		cfg.RecentlyHandledCapacity = d.RecentlyHandledCapacity
	}
	if cfg.RequestsCacheCapacity == 0 {
		cfg.RequestsCacheCapacity = d.RequestsCacheCapacity
	}
	if cfg.StorageConsistencyDelay == 0 {
		cfg.StorageConsistencyDelay = d.StorageConsistencyDelay
	}
	if cfg.APIProcessedRequestsDelay == 0 {
		cfg.APIProcessedRequestsDelay = d.APIProcessedRequestsDelay
	}
}

func applySessionPoolDefaults(cfg *SessionPoolConfig) {
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 1000
	}
	if cfg.TTL == 0 {
		cfg.TTL = 50 * time.Minute
	}
	if cfg.MaxErrorScore == 0 {
		cfg.MaxErrorScore = 3
	}
	if cfg.ErrorScoreDecrement == 0 {
		cfg.ErrorScoreDecrement = 0.5
	}
}

func applySnapshotterDefaults(cfg *SnapshotterConfig) {
	d := snapshot.DefaultConfig()
	if cfg.MemorySnapshotInterval == 0 {
		cfg.MemorySnapshotInterval = d.MemorySnapshotInterval
	}
	if cfg.EventLoopSnapshotInterval == 0 {
		cfg.EventLoopSnapshotInterval = d.EventLoopSnapshotInterval
	}
	if cfg.ClientSnapshotInterval == 0 {
		cfg.ClientSnapshotInterval = d.ClientSnapshotInterval
	}
	if cfg.MaxBlockedMillis == 0 {
		cfg.MaxBlockedMillis = d.MaxBlockedMillis
	}
	if cfg.MaxUsedMemoryRatio == 0 {
		cfg.MaxUsedMemoryRatio = d.MaxUsedMemoryRatio
	}
	if cfg.CriticalOverloadRatio == 0 {
		cfg.CriticalOverloadRatio = d.CriticalOverloadRatio
	}
	if cfg.MaxClientErrors == 0 {
		cfg.MaxClientErrors = d.MaxClientErrors
	}
	if cfg.HistoryDuration == 0 {
		cfg.HistoryDuration = d.HistoryDuration
	}
	if cfg.CPUSnapshotInterval == 0 {
		cfg.CPUSnapshotInterval = d.CPUSnapshotInterval
	}
	if cfg.MaxCPUOverloadPercent == 0 {
		cfg.MaxCPUOverloadPercent = d.MaxCPUOverloadPercent
	}
}

func applySystemStatusDefaults(cfg *SystemStatusConfig) {
	d := snapshot.DefaultStatusConfig()
	if cfg.CurrentHistory == 0 {
		cfg.CurrentHistory = d.CurrentHistory
	}
	if cfg.MaxMemoryOverloadedRatio == 0 {
		cfg.MaxMemoryOverloadedRatio = d.MaxMemoryOverloadedRatio
	}
	if cfg.MaxEventLoopOverloadedRatio == 0 {
		cfg.MaxEventLoopOverloadedRatio = d.MaxEventLoopOverloadedRatio
	}
	if cfg.MaxCPUOverloadedRatio == 0 {
		cfg.MaxCPUOverloadedRatio = d.MaxCPUOverloadedRatio
	}
	if cfg.MaxClientOverloadedRatio == 0 {
		cfg.MaxClientOverloadedRatio = d.MaxClientOverloadedRatio
	}
}

func applyAutoscaledPoolDefaults(cfg *AutoscaledPoolConfig) {
	d := autoscale.DefaultConfig()
	if cfg.MinConcurrency == 0 {
		cfg.MinConcurrency = d.MinConcurrency
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = d.MaxConcurrency
	}
	if cfg.MaybeRunInterval == 0 {
		cfg.MaybeRunInterval = d.MaybeRunInterval
	}
	if cfg.ScaleUpInterval == 0 {
		cfg.ScaleUpInterval = d.ScaleUpInterval
	}
	if cfg.ScaleDownInterval == 0 {
		cfg.ScaleDownInterval = d.ScaleDownInterval
	}
	if cfg.ScaleUpStepRatio == 0 {
		cfg.ScaleUpStepRatio = d.ScaleUpStepRatio
	}
	if cfg.ScaleDownStepRatio == 0 {
		cfg.ScaleDownStepRatio = d.ScaleDownStepRatio
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// DefaultConfig returns a Config with every section defaulted, for
// `crawlcore init` scaffolding and for running with no config file at all.
func DefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{Backend: "local"},
	}
	ApplyDefaults(cfg)
	return cfg
}
