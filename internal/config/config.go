// Package config loads and validates the posture scanner configuration from
// YAML files, layering file contents over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/remote"
)

// Config represents the complete scanner configuration.
type Config struct {
	// Scan configuration
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// SSH connection defaults applied to every target
	SSH remote.SSHConfig `yaml:"ssh" json:"ssh"`

	// Knowledge base configuration
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base" json:"knowledge_base"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// ScanConfig holds scan orchestration settings.
type ScanConfig struct {
	// Number of concurrent scan workers
	WorkerPoolSize int `yaml:"worker_pool_size" json:"worker_pool_size"`

	// Maximum scan duration per target
	TargetTimeout time.Duration `yaml:"target_timeout" json:"target_timeout"`

	// Retry configuration for failed targets
	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// RetryConfig holds retry settings for failed target scans.
type RetryConfig struct {
	// Maximum number of retries
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// Delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`

	// Exponential backoff multiplier
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// KnowledgeBaseConfig points at the version knowledge base file.
type KnowledgeBaseConfig struct {
	// Path to the knowledge base YAML file
	Path string `yaml:"path" json:"path"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enable the metrics listener
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address for the metrics endpoint
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			WorkerPoolSize: 10,
			TargetTimeout:  5 * time.Minute,
			Retry: RetryConfig{
				MaxRetries:        2,
				RetryDelay:        10 * time.Second,
				BackoffMultiplier: 2.0,
			},
		},
		SSH: remote.SSHConfig{
			Port:           22,
			DialTimeout:    10 * time.Second,
			CommandTimeout: 30 * time.Second,
		},
		KnowledgeBase: KnowledgeBaseConfig{
			Path: "/etc/posture/kb.yaml",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9090",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, layered over defaults. A missing
// file is not an error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scan.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive")
	}
	if c.Scan.TargetTimeout <= 0 {
		return fmt.Errorf("target timeout must be positive")
	}
	if c.Scan.Retry.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}

	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh port must be between 1 and 65535")
	}

	if c.KnowledgeBase.Path == "" {
		return fmt.Errorf("knowledge base path is required")
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[logging.LogFormat]bool{
		logging.FormatText: true,
		logging.FormatJSON: true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// SSHForTarget returns the SSH settings with the host replaced by the given
// target.
func (c *Config) SSHForTarget(target string) remote.SSHConfig {
	cfg := c.SSH
	cfg.Host = target
	return cfg
}
