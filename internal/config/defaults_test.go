package config

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("DefaultConfig() failed validation: %v", err)
	}
}

func TestApplyDefaultsDoesNotOverrideSetValues(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "ERROR"
	cfg.AutoscaledPool.MinConcurrency = 5
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("expected explicit logging level preserved, got %q", cfg.Logging.Level)
	}
	if cfg.AutoscaledPool.MinConcurrency != 5 {
		t.Errorf("expected explicit min concurrency preserved, got %d", cfg.AutoscaledPool.MinConcurrency)
	}
	if cfg.AutoscaledPool.MaxConcurrency == 0 {
		t.Error("expected max concurrency to receive a default")
	}
}

func TestApplyMetricsDefaultsOnlyWhenEnabled(t *testing.T) {
	cfg := &MetricsConfig{Enabled: false}
	applyMetricsDefaults(cfg)
	if cfg.Port != 0 {
		t.Errorf("expected no default port when metrics disabled, got %d", cfg.Port)
	}

	cfg = &MetricsConfig{Enabled: true}
	applyMetricsDefaults(cfg)
	if cfg.Port != 9090 {
		t.Errorf("expected default metrics port 9090, got %d", cfg.Port)
	}
}
