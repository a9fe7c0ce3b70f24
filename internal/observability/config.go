// Package observability holds the ambient logging/metrics/tracing config
// and logger implementation shared by every engine component — none of it
// is workflow-specific, it is the same ambient layer any service built on
// top of this engine would carry.
package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the structured logger's level/format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls whether a Prometheus endpoint is exposed and on
// which port.
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// TracingConfig selects and configures an OTel trace exporter.
type TracingConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Exporter        string  `yaml:"exporter"` // jaeger | zipkin | otlp
	JaegerEndpoint  string  `yaml:"jaeger_endpoint,omitempty"`
	ZipkinEndpoint  string  `yaml:"zipkin_endpoint,omitempty"`
	OTLPEndpoint    string  `yaml:"otlp_endpoint,omitempty"`
	SampleRate      float64 `yaml:"sample_rate"`
	ServiceName     string  `yaml:"service_name,omitempty"`
	ServiceVersion  string  `yaml:"service_version,omitempty"`
}

// Config is the full observability configuration tree.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// fileConfig mirrors the on-disk shape, which nests Config under a top
// level "observability:" key.
type fileConfig struct {
	Observability Config `yaml:"observability"`
}

// DefaultConfig returns the engine's out-of-the-box observability defaults:
// info/json logging, metrics enabled on :9090, tracing disabled but
// defaulted to a jaeger exporter at full sampling if ever turned on.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, PrometheusPort: 9090},
		Tracing: TracingConfig{Enabled: false, Exporter: "jaeger", SampleRate: 1.0},
	}
}

// LoadConfig reads path and merges it over DefaultConfig. A missing file is
// not an error — defaults are returned as-is. Fields absent from the file
// keep their default value (partial overrides).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	fc.Observability = cfg
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return fc.Observability, nil
}

// SaveConfig writes config to path as YAML, creating parent directories as
// needed.
func SaveConfig(config Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	fc := fileConfig{Observability: config}
	raw, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
