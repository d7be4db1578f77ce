package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "50ms" or "1s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// MatcherConfig selects the predicate applied to each line.
type MatcherConfig struct {
	Kind string `yaml:"kind,omitempty"`
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format,omitempty"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig configures runtime telemetry exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider,omitempty"`
	Listen   string `yaml:"listen,omitempty"`
}

// Config is the root configuration structure for a run.
//
// Capacity, Workers, Source and Term mirror the four positional command-line
// arguments; values given on the command line take precedence over the file.
type Config struct {
	Name      string          `yaml:"name,omitempty"`
	Capacity  int             `yaml:"capacity,omitempty"`
	Workers   int             `yaml:"workers,omitempty"`
	Source    string          `yaml:"source,omitempty"`
	Term      string          `yaml:"term,omitempty"`
	Matcher   MatcherConfig   `yaml:"matcher,omitempty"`
	Throttle  Duration        `yaml:"throttle,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Matcher: MatcherConfig{Kind: "substring"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads, schema-checks and decodes the configuration file from disk.
// The result may still be incomplete; callers overlay the command-line
// arguments and then call Validate.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path must not be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := validateSchema(path, raw); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Matcher.Kind == "" {
		c.Matcher.Kind = "substring"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that the configuration describes a runnable engine.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config must not be nil")
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.Capacity)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Workers)
	}
	if c.Source == "" {
		return errors.New("source path must not be empty")
	}
	if c.Term == "" {
		return errors.New("search term must not be empty")
	}
	if c.Throttle.Duration < 0 {
		return fmt.Errorf("throttle must not be negative, got %s", c.Throttle.Duration)
	}
	return nil
}
