package config

import (
	"context"
	"fmt"

	"github.com/scrapeforge/crawlcore/internal/bytesize"
	"github.com/scrapeforge/crawlcore/pkg/autoscale"
	"github.com/scrapeforge/crawlcore/pkg/kvstore"
	"github.com/scrapeforge/crawlcore/pkg/kvstore/badgerstore"
	"github.com/scrapeforge/crawlcore/pkg/kvstore/localfs"
	"github.com/scrapeforge/crawlcore/pkg/kvstore/s3store"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue/badgerqueue"
	localfsqueue "github.com/scrapeforge/crawlcore/pkg/requestqueue/localfs"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue/remote"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue/sqlqueue"
	"github.com/scrapeforge/crawlcore/pkg/session"
	"github.com/scrapeforge/crawlcore/pkg/snapshot"
)

// ToRequestQueueConfig converts the config-layer section to
// requestqueue.Config.
func (c RequestQueueConfig) ToRequestQueueConfig() requestqueue.Config {
	cfg := requestqueue.DefaultConfig()
	cfg.QueryHeadMinLength = c.QueryHeadMinLength
	cfg.QueryHeadBufferLength = c.QueryHeadBufferLength
	cfg.RecentlyHandledCapacity = c.RecentlyHandledCapacity
	cfg.RequestsCacheCapacity = c.RequestsCacheCapacity
	cfg.StorageConsistencyDelay = c.StorageConsistencyDelay
	cfg.APIProcessedRequestsDelay = c.APIProcessedRequestsDelay
	return cfg
}

// ToSessionPoolConfig converts the config-layer section to
// session.PoolConfig, wiring store as the optional persistence backend.
func (c SessionPoolConfig) ToSessionPoolConfig(store kvstore.Store) session.PoolConfig {
	return session.PoolConfig{
		MaxPoolSize: c.MaxPoolSize,
		SessionOptions: session.Options{
			TTL:                 c.TTL,
			MaxErrorScore:       c.MaxErrorScore,
			ErrorScoreDecrement: c.ErrorScoreDecrement,
			MaxUsageCount:       c.MaxUsageCount,
		},
		PersistStateKey: c.PersistStateKey,
		Store:           store,
	}
}

// ToSnapshotConfig converts the config-layer section to snapshot.Config,
// parsing MemoryOverride (e.g. "512Mi") into TotalMemoryOverrideBytes.
func (c SnapshotterConfig) ToSnapshotConfig() (snapshot.Config, error) {
	cfg := snapshot.DefaultConfig()
	cfg.MemorySnapshotInterval = c.MemorySnapshotInterval
	cfg.EventLoopSnapshotInterval = c.EventLoopSnapshotInterval
	cfg.ClientSnapshotInterval = c.ClientSnapshotInterval
	cfg.MaxBlockedMillis = c.MaxBlockedMillis
	cfg.MaxUsedMemoryRatio = c.MaxUsedMemoryRatio
	cfg.IgnoreMainProcess = c.IgnoreMainProcess
	cfg.CriticalOverloadRatio = c.CriticalOverloadRatio
	cfg.MaxClientErrors = c.MaxClientErrors
	cfg.HistoryDuration = c.HistoryDuration
	cfg.SelfSampleCPU = c.SelfSampleCPU
	cfg.CPUSnapshotInterval = c.CPUSnapshotInterval
	cfg.MaxCPUOverloadPercent = c.MaxCPUOverloadPercent

	if c.MemoryOverride != "" {
		size, err := bytesize.ParseByteSize(c.MemoryOverride)
		if err != nil {
			return snapshot.Config{}, fmt.Errorf("invalid snapshotter.memory_override: %w", err)
		}
		cfg.TotalMemoryOverrideBytes = uint64(size)
	}
	return cfg, nil
}

// ToStatusConfig converts the config-layer section to snapshot.StatusConfig.
func (c SystemStatusConfig) ToStatusConfig() snapshot.StatusConfig {
	return snapshot.StatusConfig{
		CurrentHistory:              c.CurrentHistory,
		MaxMemoryOverloadedRatio:    c.MaxMemoryOverloadedRatio,
		MaxEventLoopOverloadedRatio: c.MaxEventLoopOverloadedRatio,
		MaxCPUOverloadedRatio:       c.MaxCPUOverloadedRatio,
		MaxClientOverloadedRatio:    c.MaxClientOverloadedRatio,
	}
}

// ToAutoscaleConfig converts the config-layer section to autoscale.Config.
func (c AutoscaledPoolConfig) ToAutoscaleConfig() autoscale.Config {
	return autoscale.Config{
		MinConcurrency:     c.MinConcurrency,
		MaxConcurrency:     c.MaxConcurrency,
		MaybeRunInterval:   c.MaybeRunInterval,
		ScaleUpInterval:    c.ScaleUpInterval,
		ScaleDownInterval:  c.ScaleDownInterval,
		ScaleUpStepRatio:   c.ScaleUpStepRatio,
		ScaleDownStepRatio: c.ScaleDownStepRatio,
	}
}

// NewStore builds the kvstore.Store selected by cfg.Backend. The "remote"
// backend is not a key-value store in the same local sense — it speaks to
// the abstracted RemoteStorageClient over the TOKEN bearer credential
// instead — so callers wanting a remote-backed runtime construct
// pkg/requestqueue/remote.Client directly from cfg.Remote.
func (c StorageConfig) NewStore(ctx context.Context, scopeID string) (kvstore.Store, error) {
	switch c.Backend {
	case "local", "":
		return localfs.New(c.Local.Dir)
	case "badger":
		return badgerstore.Open(c.Badger.Dir, scopeID)
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Bucket:          c.S3.Bucket,
			Region:          c.S3.Region,
			Endpoint:        c.S3.Endpoint,
			Prefix:          c.S3.Prefix,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
		})
	case "remote":
		return nil, fmt.Errorf("storage backend %q has no local kvstore.Store; construct its client directly", c.Backend)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", c.Backend)
	}
}

// NewQueueBackend builds the requestqueue.Backend selected by cfg.Backend,
// independent of NewStore since the queue's SQL variant (sqlqueue) has no
// kvstore.Store equivalent.
func (c StorageConfig) NewQueueBackend(ctx context.Context, queueID string) (requestqueue.Backend, error) {
	switch c.Backend {
	case "local", "":
		return localfsqueue.New(c.Local.Dir)
	case "badger":
		return badgerqueue.Open(c.Badger.Dir)
	case "sql":
		return sqlqueue.Open(sqlqueue.Config{Driver: sqlqueue.Driver(c.SQL.Driver), DSN: c.SQL.DSN, QueueID: queueID})
	case "remote":
		return remote.New(c.Remote.BaseURL, c.Remote.Token, queueID), nil
	default:
		return nil, fmt.Errorf("unknown queue storage backend: %q", c.Backend)
	}
}
