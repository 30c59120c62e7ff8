package bind

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AnatoleLucet/bind/internal"
	"github.com/AnatoleLucet/bind/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables of an App.
type Config struct {
	// RecursionLimit bounds the consecutive runs of an effect or a watcher (default: 10).
	RecursionLimit int `mapstructure:"recursion_limit" yaml:"recursion_limit"`

	// MaxFlushPasses bounds the passes of a single Yield (default: 1000).
	MaxFlushPasses int `mapstructure:"max_flush_passes" yaml:"max_flush_passes"`

	// DirtyCheckInterval enables dirty checking of observed struct fields when positive.
	DirtyCheckInterval time.Duration `mapstructure:"dirty_check_interval" yaml:"dirty_check_interval"`

	// LogLevel makes an app without a logger log to Stderr at that level ("debug", "info", "warn", "error").
	// Empty means no logging.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig names the scheduler metrics.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Subsystem string `mapstructure:"subsystem" yaml:"subsystem"`
}

func DefaultConfig() Config {
	return Config{
		RecursionLimit: internal.DefaultRecursionLimit,
		MaxFlushPasses: internal.DefaultMaxFlushPasses,
		Metrics: MetricsConfig{
			Namespace: "bind",
			Subsystem: "scheduler",
		},
	}
}

// ParseConfig reads a YAML document over DefaultConfig. Durations are written as
// Go duration strings ("250ms"). Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return cfg, err
	}

	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config: %w", err)
	}

	return ParseConfig(data)
}

func (c Config) Validate() error {
	var errs []error

	if c.RecursionLimit < 1 {
		errs = append(errs, fmt.Errorf("recursion_limit must be positive, got %d", c.RecursionLimit))
	}
	if c.MaxFlushPasses < 1 {
		errs = append(errs, fmt.Errorf("max_flush_passes must be positive, got %d", c.MaxFlushPasses))
	}
	if c.DirtyCheckInterval < 0 {
		errs = append(errs, fmt.Errorf("dirty_check_interval must not be negative, got %s", c.DirtyCheckInterval))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	return errors.Join(errs...)
}
