package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/piwi3910/gpustatsd/pkg/telemetry"
)

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the gpustatsd service configuration.
type Config struct {
	// ListenAddress is the address of the HTTP API (ingest, dump, metrics).
	ListenAddress string `yaml:"listen_address" validate:"required"`

	// MaxAppRecords caps the number of distinct (app, version) entries in
	// the app table. Hot-reloadable.
	MaxAppRecords int `yaml:"max_app_records" validate:"gte=1"`

	// PullInterval is how often the reporter pulls accumulated global
	// stats for upstream reporting.
	PullInterval Duration `yaml:"pull_interval"`

	// Log configures structured logging. Level is hot-reloadable.
	Log LogConfig `yaml:"log"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures OpenTelemetry export.
	Tracing TracingConfig `yaml:"tracing"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Output string `yaml:"output"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddress: "127.0.0.1:8580",
		MaxAppRecords: 100,
		PullInterval:  Duration(5 * time.Minute),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "gpustatsd",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "none",
			SamplingRate: 1.0,
		},
	}
}

// Load reads the configuration file at path on top of the defaults. An
// empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.PullInterval <= 0 {
		return fmt.Errorf("pull_interval must be positive, got %s", time.Duration(c.PullInterval))
	}
	return nil
}

// Telemetry maps the service configuration onto a telemetry configuration.
func (c *Config) Telemetry(version string) *telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Logging.Level = c.Log.Level
	tcfg.Logging.Format = c.Log.Format
	tcfg.Logging.Output = c.Log.Output
	tcfg.Metrics.Enabled = c.Metrics.Enabled
	if c.Metrics.Namespace != "" {
		tcfg.Metrics.Namespace = c.Metrics.Namespace
	}
	tcfg.Tracing.Enabled = c.Tracing.Enabled
	if c.Tracing.Exporter != "" {
		tcfg.Tracing.Exporter = c.Tracing.Exporter
	}
	tcfg.Tracing.Endpoint = c.Tracing.Endpoint
	tcfg.Tracing.SamplingRate = c.Tracing.SamplingRate
	return tcfg
}
