// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < --config < env < flags
package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	perrors "github.com/logflow/perfkit/pkg/errors"
)

// EnvPrefix prefixes every environment variable the manager reads.
const EnvPrefix = "PERFKIT_"

// Config holds all perfkit configuration.
type Config struct {
	Version int `yaml:"version"`

	Analysis  AnalysisConfig  `yaml:"analysis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
}

// AnalysisConfig holds the report parameters.
type AnalysisConfig struct {
	EntityCount       int `yaml:"entity_count"        env:"ENTITY_COUNT"`
	MaxBufferCapacity int `yaml:"max_buffer_capacity" env:"MAX_BUFFER_CAPACITY"`
	WhatIfCapacity    int `yaml:"what_if_capacity"    env:"WHAT_IF_CAPACITY"`

	BucketWidth  int64 `yaml:"bucket_width"  env:"BUCKET_WIDTH"`
	GapThreshold int64 `yaml:"gap_threshold" env:"GAP_THRESHOLD"`

	HotProducerThreshold int `yaml:"hot_producer_threshold" env:"HOT_PRODUCER_THRESHOLD"`
	HotTopK              int `yaml:"hot_top_k"              env:"HOT_TOP_K"`
	TopK                 int `yaml:"top_k"                  env:"TOP_K"`

	AutocorrelationLags       []int `yaml:"autocorrelation_lags"        env:"AUTOCORRELATION_LAGS" envSeparator:","`
	AutocorrelationMinSamples int   `yaml:"autocorrelation_min_samples" env:"AUTOCORRELATION_MIN_SAMPLES"`

	// Window is the number of ticks in the head and tail views.
	Window int `yaml:"window" env:"WINDOW"`

	SkipMalformed bool `yaml:"skip_malformed" env:"SKIP_MALFORMED"`
}

// LoggingConfig controls the slog handler and its optional file sink.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"`  // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // text | json

	// File enables a rotating log file in addition to stderr.
	File       string `yaml:"file"         env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"  env:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups"  env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress"     env:"LOG_COMPRESS"`
}

// TelemetryConfig for optional trace export.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"      env:"TELEMETRY_ENABLED"`
	Endpoint    string  `yaml:"endpoint"     env:"OTLP_ENDPOINT"`
	Insecure    bool    `yaml:"insecure"     env:"OTLP_INSECURE"`
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate  float64 `yaml:"sample_rate"  env:"TRACE_SAMPLE_RATE"`
}

// StorageConfig for remote inputs.
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config configures s3:// inputs. Empty credentials fall back to the
// default AWS credential chain.
type S3Config struct {
	Region          string `yaml:"region"            env:"S3_REGION"`
	Endpoint        string `yaml:"endpoint"          env:"S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id"     env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style"    env:"S3_USE_PATH_STYLE"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Analysis: AnalysisConfig{
			EntityCount:               14831,
			MaxBufferCapacity:         100,
			WhatIfCapacity:            30,
			BucketWidth:               10,
			GapThreshold:              1000,
			HotProducerThreshold:      5,
			HotTopK:                   10,
			TopK:                      15,
			AutocorrelationLags:       []int{1, 2},
			AutocorrelationMinSamples: 10,
			Window:                    60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "perfkit",
			SampleRate:  1.0,
		},
		Storage: StorageConfig{
			S3: S3Config{Region: "us-east-1"},
		},
	}
}

// Validate checks every value against its domain.
func (c *Config) Validate() error {
	a := c.Analysis
	switch {
	case a.EntityCount < 0:
		return perrors.InvalidArgument("entity_count", a.EntityCount, "must not be negative")
	case a.MaxBufferCapacity <= 0:
		return perrors.InvalidArgument("max_buffer_capacity", a.MaxBufferCapacity, "must be positive")
	case a.WhatIfCapacity <= 0:
		return perrors.InvalidArgument("what_if_capacity", a.WhatIfCapacity, "must be positive")
	case a.BucketWidth <= 0:
		return perrors.InvalidArgument("bucket_width", a.BucketWidth, "must be positive")
	case a.GapThreshold < 0:
		return perrors.InvalidArgument("gap_threshold", a.GapThreshold, "must not be negative")
	case a.HotProducerThreshold < 0:
		return perrors.InvalidArgument("hot_producer_threshold", a.HotProducerThreshold, "must not be negative")
	case a.HotTopK < 0:
		return perrors.InvalidArgument("hot_top_k", a.HotTopK, "must not be negative")
	case a.TopK < 0:
		return perrors.InvalidArgument("top_k", a.TopK, "must not be negative")
	case a.AutocorrelationMinSamples < 0:
		return perrors.InvalidArgument("autocorrelation_min_samples", a.AutocorrelationMinSamples, "must not be negative")
	case a.Window < 0:
		return perrors.InvalidArgument("window", a.Window, "must not be negative")
	}
	for _, lag := range a.AutocorrelationLags {
		if lag < 1 {
			return perrors.InvalidArgument("autocorrelation_lags", lag, "lags must be at least 1")
		}
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return perrors.InvalidArgument("logging.format", c.Logging.Format, "must be text or json")
	}

	if r := c.Telemetry.SampleRate; r < 0 || r > 1 {
		return perrors.InvalidArgument("telemetry.sample_rate", r, "must be within [0, 1]")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return perrors.InvalidArgument("telemetry.endpoint", "", "required when telemetry is enabled")
	}
	return nil
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, perrors.InvalidArgument("logging.level", s, "must be debug, info, warn or error")
	}
	return lvl, nil
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded

	// search and environ override the default file locations and the
	// process environment when non-nil.
	search  []string
	environ map[string]string
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order. explicit
// is the --config path; it must exist when set.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.getConfigPaths() {
		if err := m.loadFile(path); err != nil {
			// Missing files are fine, broken ones are not.
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		m.paths = append(m.paths, path)
	}

	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return perrors.SourceUnavailable(explicit, err)
			}
			return err
		}
		m.paths = append(m.paths, explicit)
	}

	return m.loadEnv()
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	if m.search != nil {
		return m.search
	}
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/perfkit/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".perfkit", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".perfkit.yaml"))
	}

	return paths
}

// loadFile decodes a single config file over the current values. Keys
// absent from the file keep their current value.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.merge(data); err != nil {
		return perrors.Wrap(err, perrors.CodeInvalidFormat, "parse config file").
			WithContext("path", path)
	}
	return nil
}

// merge decodes YAML onto the current config. Unknown keys are rejected.
func (m *Manager) merge(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m.config); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadEnv applies PERFKIT_* environment variables.
func (m *Manager) loadEnv() error {
	opts := env.Options{Prefix: EnvPrefix, Environment: m.environ}
	if err := env.ParseWithOptions(m.config, opts); err != nil {
		return perrors.Wrap(err, perrors.CodeInvalidArgument, "parse environment")
	}
	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Marshal renders the current config as YAML.
func (m *Manager) Marshal() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return yaml.Marshal(m.config)
}

// Save writes the current config to path, or to the user config file
// when path is empty.
func (m *Manager) Save(path string) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".perfkit", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return perrors.Wrap(err, perrors.CodeWriteFailed, "create config dir")
	}

	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return perrors.Wrap(err, perrors.CodeWriteFailed, "write config").WithContext("path", path)
	}
	return nil
}
