// Package config loads and validates the runtime's configuration: logging,
// telemetry, storage backend selection, and the tunables for every core
// component (RequestQueue, RequestList, SessionPool, Snapshotter,
// SystemStatus, AutoscaledPool, Metrics, AdminAPI).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/scrapeforge/crawlcore/pkg/adminapi"
)

// Config is the root configuration for a crawlcore runtime.
//
// Configuration sources, highest precedence first:
//  1. Environment variables (CRAWLCORE_*), only for keys the configuration
//     file sets; without a configuration file they are not read
//  2. Configuration file (YAML)
//  3. Default values
//
// CLI flags are not a source; --config only selects the file. TOKEN,
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are read from the environment
// last and override all of the above.
type Config struct {
	Logging        LoggingConfig        `mapstructure:"logging" yaml:"logging"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry" yaml:"telemetry"`
	Storage        StorageConfig        `mapstructure:"storage" yaml:"storage"`
	RequestQueue   RequestQueueConfig   `mapstructure:"request_queue" yaml:"request_queue"`
	RequestList    RequestListConfig    `mapstructure:"request_list" yaml:"request_list"`
	SessionPool    SessionPoolConfig    `mapstructure:"session_pool" yaml:"session_pool"`
	Snapshotter    SnapshotterConfig    `mapstructure:"snapshotter" yaml:"snapshotter"`
	SystemStatus   SystemStatusConfig   `mapstructure:"system_status" yaml:"system_status"`
	AutoscaledPool AutoscaledPoolConfig `mapstructure:"autoscaled_pool" yaml:"autoscaled_pool"`
	Metrics        MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
	AdminAPI       adminapi.Config      `mapstructure:"admin_api" yaml:"admin_api"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ProfilingConfig controls Pyroscope continuous profiling, started alongside
// the Snapshotter so CPU/memory overload events can be correlated with
// flame graphs.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StorageConfig selects the backend used for the RequestQueue, RequestList
// and SessionPool persistence, and carries that backend's credentials.
type StorageConfig struct {
	// Backend selects the storage implementation: "local", "badger", "sql",
	// "remote" (abstracted RemoteStorageClient over TOKEN), or "s3".
	Backend string       `mapstructure:"backend" validate:"required,oneof=local badger sql remote s3" yaml:"backend"`
	Local   LocalConfig  `mapstructure:"local" yaml:"local"`
	Badger  BadgerConfig `mapstructure:"badger" yaml:"badger"`
	SQL     SQLConfig    `mapstructure:"sql" yaml:"sql"`
	Remote  RemoteConfig `mapstructure:"remote" yaml:"remote"`
	S3      S3Config     `mapstructure:"s3" yaml:"s3"`
}

// SQLConfig configures the transactional SQL backend (sqlqueue): SQLite
// for single-process deployments, Postgres for a queue shared by multiple
// processes.
type SQLConfig struct {
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=sqlite postgres" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// LocalConfig configures the one-file-per-key local filesystem backend.
type LocalConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// BadgerConfig configures the embedded BadgerDB backend.
type BadgerConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// RemoteConfig configures the abstracted remote platform backend. Token is
// read from the TOKEN environment variable per spec convention, not from
// the config file, so it is never written to disk by SaveConfig.
type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Token   string `mapstructure:"-" yaml:"-"`
}

// S3Config configures an S3-compatible remote backend for Request blobs and
// KV records.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	AccessKeyID     string `mapstructure:"-" yaml:"-"`
	SecretAccessKey string `mapstructure:"-" yaml:"-"`
}

// RequestQueueConfig mirrors requestqueue.Config with config-layer tags.
type RequestQueueConfig struct {
	QueryHeadMinLength        int           `mapstructure:"query_head_min_length" yaml:"query_head_min_length"`
	QueryHeadBufferLength     int           `mapstructure:"query_head_buffer_length" yaml:"query_head_buffer_length"`
	RecentlyHandledCapacity   int           `mapstructure:"recently_handled_capacity" yaml:"recently_handled_capacity"`
	RequestsCacheCapacity     int           `mapstructure:"requests_cache_capacity" yaml:"requests_cache_capacity"`
	StorageConsistencyDelay   time.Duration `mapstructure:"storage_consistency_delay" yaml:"storage_consistency_delay"`
	APIProcessedRequestsDelay time.Duration `mapstructure:"api_processed_requests_delay" yaml:"api_processed_requests_delay"`
}

// RequestListConfig mirrors requestlist.Options' config-relevant fields;
// Sources are supplied at runtime, not via config.
type RequestListConfig struct {
	KeepDuplicateURLs bool   `mapstructure:"keep_duplicate_urls" yaml:"keep_duplicate_urls"`
	PersistStateKey   string `mapstructure:"persist_state_key" yaml:"persist_state_key"`
}

// SessionPoolConfig mirrors session.PoolConfig/session.Options.
type SessionPoolConfig struct {
	MaxPoolSize         int           `mapstructure:"max_pool_size" validate:"omitempty,gt=0" yaml:"max_pool_size"`
	TTL                 time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxErrorScore       float64       `mapstructure:"max_error_score" yaml:"max_error_score"`
	ErrorScoreDecrement float64       `mapstructure:"error_score_decrement" yaml:"error_score_decrement"`
	MaxUsageCount       int           `mapstructure:"max_usage_count" yaml:"max_usage_count"`
	PersistStateKey     string        `mapstructure:"persist_state_key" yaml:"persist_state_key"`
}

// SnapshotterConfig mirrors snapshot.Config.
type SnapshotterConfig struct {
	MemorySnapshotInterval    time.Duration `mapstructure:"memory_snapshot_interval" yaml:"memory_snapshot_interval"`
	EventLoopSnapshotInterval time.Duration `mapstructure:"event_loop_snapshot_interval" yaml:"event_loop_snapshot_interval"`
	ClientSnapshotInterval    time.Duration `mapstructure:"client_snapshot_interval" yaml:"client_snapshot_interval"`
	MaxBlockedMillis          int64         `mapstructure:"max_blocked_millis" yaml:"max_blocked_millis"`
	MaxUsedMemoryRatio        float64       `mapstructure:"max_used_memory_ratio" validate:"omitempty,gt=0,lte=1" yaml:"max_used_memory_ratio"`
	IgnoreMainProcess         bool          `mapstructure:"ignore_main_process" yaml:"ignore_main_process"`
	CriticalOverloadRatio     float64       `mapstructure:"critical_overload_ratio" yaml:"critical_overload_ratio"`
	MaxClientErrors           int64         `mapstructure:"max_client_errors" yaml:"max_client_errors"`
	HistoryDuration           time.Duration `mapstructure:"history_duration" yaml:"history_duration"`
	// MemoryOverride lets operators set TotalMemoryOverrideBytes via a
	// human-readable size ("512Mi", "2Gi") instead of the OS query.
	MemoryOverride        string        `mapstructure:"memory_override" yaml:"memory_override,omitempty"`
	SelfSampleCPU         bool          `mapstructure:"self_sample_cpu" yaml:"self_sample_cpu"`
	CPUSnapshotInterval   time.Duration `mapstructure:"cpu_snapshot_interval" yaml:"cpu_snapshot_interval"`
	MaxCPUOverloadPercent float64       `mapstructure:"max_cpu_overload_percent" yaml:"max_cpu_overload_percent"`
}

// SystemStatusConfig mirrors snapshot.StatusConfig.
type SystemStatusConfig struct {
	CurrentHistory              time.Duration `mapstructure:"current_history" yaml:"current_history"`
	MaxMemoryOverloadedRatio    float64       `mapstructure:"max_memory_overloaded_ratio" yaml:"max_memory_overloaded_ratio"`
	MaxEventLoopOverloadedRatio float64       `mapstructure:"max_event_loop_overloaded_ratio" yaml:"max_event_loop_overloaded_ratio"`
	MaxCPUOverloadedRatio       float64       `mapstructure:"max_cpu_overloaded_ratio" yaml:"max_cpu_overloaded_ratio"`
	MaxClientOverloadedRatio    float64       `mapstructure:"max_client_overloaded_ratio" yaml:"max_client_overloaded_ratio"`
}

// AutoscaledPoolConfig mirrors autoscale.Config.
type AutoscaledPoolConfig struct {
	MinConcurrency     int           `mapstructure:"min_concurrency" validate:"omitempty,gt=0" yaml:"min_concurrency"`
	MaxConcurrency     int           `mapstructure:"max_concurrency" validate:"omitempty,gtfield=MinConcurrency" yaml:"max_concurrency"`
	MaybeRunInterval   time.Duration `mapstructure:"maybe_run_interval" yaml:"maybe_run_interval"`
	ScaleUpInterval    time.Duration `mapstructure:"scale_up_interval" yaml:"scale_up_interval"`
	ScaleDownInterval  time.Duration `mapstructure:"scale_down_interval" yaml:"scale_down_interval"`
	ScaleUpStepRatio   float64       `mapstructure:"scale_up_step_ratio" yaml:"scale_up_step_ratio"`
	ScaleDownStepRatio float64       `mapstructure:"scale_down_step_ratio" yaml:"scale_down_step_ratio"`
}

var validate = validator.New()

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := DefaultConfig()
		applyCredentialEnvOverrides(cfg)
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	applyCredentialEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path as YAML. Credential fields tagged
// `yaml:"-"` (remote token, S3 keys) are never written.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CRAWLCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// applyCredentialEnvOverrides reads credentials that are deliberately
// excluded from the config file (TOKEN, S3 access keys) straight from the
// environment, matching spec §6's "TOKEN is a credential, not a config
// value" convention.
func applyCredentialEnvOverrides(cfg *Config) {
	if tok := os.Getenv("TOKEN"); tok != "" {
		cfg.Storage.Remote.Token = tok
	}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		cfg.Storage.S3.AccessKeyID = id
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		cfg.Storage.S3.SecretAccessKey = secret
	}
}

// durationDecodeHook converts strings like "30s" into time.Duration during
// mapstructure decoding.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "crawlcore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "crawlcore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir exposes the configuration directory for the init command.
func GetConfigDir() string {
	return getConfigDir()
}
