package config

import (
	"context"
	"testing"
)

func TestToRequestQueueConfigAppliesOverride(t *testing.T) {
	c := RequestQueueConfig{QueryHeadMinLength: 42}
	cfg := c.ToRequestQueueConfig()
	if cfg.QueryHeadMinLength != 42 {
		t.Errorf("expected QueryHeadMinLength 42, got %d", cfg.QueryHeadMinLength)
	}
}

func TestToSessionPoolConfigWiresStore(t *testing.T) {
	c := SessionPoolConfig{MaxPoolSize: 10, PersistStateKey: "state"}
	cfg := c.ToSessionPoolConfig(nil)
	if cfg.MaxPoolSize != 10 {
		t.Errorf("expected MaxPoolSize 10, got %d", cfg.MaxPoolSize)
	}
	if cfg.PersistStateKey != "state" {
		t.Errorf("expected PersistStateKey state, got %q", cfg.PersistStateKey)
	}
}

func TestToSnapshotConfigParsesMemoryOverride(t *testing.T) {
	c := SnapshotterConfig{MemoryOverride: "512Mi"}
	cfg, err := c.ToSnapshotConfig()
	if err != nil {
		t.Fatalf("ToSnapshotConfig: %v", err)
	}
	const expected = 512 * 1024 * 1024
	if cfg.TotalMemoryOverrideBytes != expected {
		t.Errorf("expected %d bytes, got %d", expected, cfg.TotalMemoryOverrideBytes)
	}
}

func TestToSnapshotConfigRejectsInvalidOverride(t *testing.T) {
	c := SnapshotterConfig{MemoryOverride: "not-a-size"}
	if _, err := c.ToSnapshotConfig(); err == nil {
		t.Error("expected error for invalid memory_override")
	}
}

func TestNewStoreLocalBackend(t *testing.T) {
	c := StorageConfig{Backend: "local", Local: LocalConfig{Dir: t.TempDir()}}
	store, err := c.NewStore(context.Background(), "test-scope")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store == nil {
		t.Error("expected non-nil store")
	}
}

func TestNewStoreRemoteBackendErrors(t *testing.T) {
	c := StorageConfig{Backend: "remote"}
	if _, err := c.NewStore(context.Background(), "test-scope"); err == nil {
		t.Error("expected error for remote backend (no local kvstore.Store)")
	}
}

func TestNewStoreUnknownBackendErrors(t *testing.T) {
	c := StorageConfig{Backend: "unknown"}
	if _, err := c.NewStore(context.Background(), "test-scope"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewQueueBackendLocalAndSQL(t *testing.T) {
	c := StorageConfig{Backend: "local", Local: LocalConfig{Dir: t.TempDir()}}
	backend, err := c.NewQueueBackend(context.Background(), "queue-a")
	if err != nil {
		t.Fatalf("NewQueueBackend(local): %v", err)
	}
	if backend == nil {
		t.Error("expected non-nil local queue backend")
	}

	sqlCfg := StorageConfig{Backend: "sql", SQL: SQLConfig{Driver: "sqlite", DSN: t.TempDir() + "/queue.db"}}
	backend, err = sqlCfg.NewQueueBackend(context.Background(), "queue-a")
	if err != nil {
		t.Fatalf("NewQueueBackend(sql): %v", err)
	}
	if backend == nil {
		t.Error("expected non-nil sql queue backend")
	}
}

func TestNewQueueBackendUnknownErrors(t *testing.T) {
	c := StorageConfig{Backend: "unknown"}
	if _, err := c.NewQueueBackend(context.Background(), "queue-a"); err == nil {
		t.Error("expected error for unknown queue backend")
	}
}
