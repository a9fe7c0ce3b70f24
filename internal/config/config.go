// Package config loads the engine-adjacent knobs that sit outside the core
// workflow algorithm: how long the demo console waits between status
// refreshes, which workflow type/site id a run is tagged with, where the
// observer adapter binds, and how large its history cache is. None of this
// governs Engine semantics directly — it configures the collaborators
// cmd/workflow-runner wires around it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValueSource records which layer supplied a configuration field, so
// operators can tell a baked-in default apart from an explicit
// file/env/override setting.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

// Config holds every engine-adjacent knob.
type Config struct {
	// StatusPollInterval paces cmd/workflow-runner's REPL status refresh; it
	// has no effect on the engine's own scheduler yield, whose suspension
	// points are parameterless by design.
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`

	DefaultWorkflowType string `yaml:"workflow_type"`
	DefaultSiteID       string `yaml:"site_id"`

	ObserverAddr string `yaml:"observer_addr"`

	HistoryCacheSize    int    `yaml:"history_cache_size"`
	HistorySnapshotPath string `yaml:"history_snapshot_path"`
}

// fileConfig mirrors the on-disk shape: a single top-level "engine:" key.
type fileConfig struct {
	Engine Config `yaml:"engine"`
}

// DefaultConfig returns the engine's out-of-the-box knob values.
func DefaultConfig() Config {
	return Config{
		StatusPollInterval:  500 * time.Millisecond,
		DefaultWorkflowType: "generic",
		DefaultSiteID:       "default",
		ObserverAddr:        ":8089",
		HistoryCacheSize:    256,
		HistorySnapshotPath: "",
	}
}

// Metadata records which ValueSource supplied each Config field.
type Metadata struct {
	sources map[string]ValueSource
}

// Sources returns a copy of the recorded field provenance.
func (m Metadata) Sources() map[string]ValueSource {
	out := make(map[string]ValueSource, len(m.sources))
	for k, v := range m.sources {
		out[k] = v
	}
	return out
}

// Source reports where field came from, defaulting to SourceDefault for an
// untracked field name.
func (m Metadata) Source(field string) ValueSource {
	if m.sources == nil {
		return SourceDefault
	}
	if s, ok := m.sources[field]; ok {
		return s
	}
	return SourceDefault
}

// EnvLookup abstracts environment variable lookup so tests can supply a
// fake map instead of touching the process environment.
type EnvLookup func(key string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) { return os.LookupEnv(key) }

// Load builds a Config by layering defaults, an optional YAML file, the
// TIMELINE_* environment variables, then caller overrides, in that order —
// each later layer wins. A missing config file is not an error.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{envLookup: DefaultEnvLookup, readFile: os.ReadFile}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := DefaultConfig()
	meta := Metadata{sources: map[string]ValueSource{}}

	if options.configPath != "" {
		if err := applyFile(&cfg, &meta, options); err != nil {
			return Config{}, Metadata{}, err
		}
	}
	applyEnv(&cfg, &meta, options.envLookup)
	applyOverrides(&cfg, &meta, options.overrides)

	return cfg, meta, nil
}

func applyFile(cfg *Config, meta *Metadata, options loadOptions) error {
	raw, err := options.readFile(options.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", options.configPath, err)
	}

	fc := fileConfig{Engine: *cfg}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", options.configPath, err)
	}

	before := *cfg
	*cfg = fc.Engine
	markChangedFields(meta, before, *cfg, SourceFile)
	return nil
}

func applyEnv(cfg *Config, meta *Metadata, lookup EnvLookup) {
	if v, ok := lookup("TIMELINE_STATUS_POLL_INTERVAL"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatusPollInterval = d
			meta.sources["status_poll_interval"] = SourceEnv
		}
	}
	if v, ok := lookup("TIMELINE_WORKFLOW_TYPE"); ok && strings.TrimSpace(v) != "" {
		cfg.DefaultWorkflowType = strings.TrimSpace(v)
		meta.sources["workflow_type"] = SourceEnv
	}
	if v, ok := lookup("TIMELINE_SITE_ID"); ok && strings.TrimSpace(v) != "" {
		cfg.DefaultSiteID = strings.TrimSpace(v)
		meta.sources["site_id"] = SourceEnv
	}
	if v, ok := lookup("TIMELINE_OBSERVER_ADDR"); ok && strings.TrimSpace(v) != "" {
		cfg.ObserverAddr = strings.TrimSpace(v)
		meta.sources["observer_addr"] = SourceEnv
	}
	if v, ok := lookup("TIMELINE_HISTORY_CACHE_SIZE"); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryCacheSize = n
			meta.sources["history_cache_size"] = SourceEnv
		}
	}
	if v, ok := lookup("TIMELINE_HISTORY_SNAPSHOT_PATH"); ok && strings.TrimSpace(v) != "" {
		cfg.HistorySnapshotPath = strings.TrimSpace(v)
		meta.sources["history_snapshot_path"] = SourceEnv
	}
}

func applyOverrides(cfg *Config, meta *Metadata, o Overrides) {
	if o.StatusPollInterval != nil {
		cfg.StatusPollInterval = *o.StatusPollInterval
		meta.sources["status_poll_interval"] = SourceOverride
	}
	if o.DefaultWorkflowType != nil {
		cfg.DefaultWorkflowType = *o.DefaultWorkflowType
		meta.sources["workflow_type"] = SourceOverride
	}
	if o.DefaultSiteID != nil {
		cfg.DefaultSiteID = *o.DefaultSiteID
		meta.sources["site_id"] = SourceOverride
	}
	if o.ObserverAddr != nil {
		cfg.ObserverAddr = *o.ObserverAddr
		meta.sources["observer_addr"] = SourceOverride
	}
	if o.HistoryCacheSize != nil {
		cfg.HistoryCacheSize = *o.HistoryCacheSize
		meta.sources["history_cache_size"] = SourceOverride
	}
	if o.HistorySnapshotPath != nil {
		cfg.HistorySnapshotPath = *o.HistorySnapshotPath
		meta.sources["history_snapshot_path"] = SourceOverride
	}
}

// markChangedFields records SourceFile provenance for every field that
// differs between before and after, so a file that only sets one key
// doesn't spuriously mark the rest as file-sourced.
func markChangedFields(meta *Metadata, before, after Config, source ValueSource) {
	if before.StatusPollInterval != after.StatusPollInterval {
		meta.sources["status_poll_interval"] = source
	}
	if before.DefaultWorkflowType != after.DefaultWorkflowType {
		meta.sources["workflow_type"] = source
	}
	if before.DefaultSiteID != after.DefaultSiteID {
		meta.sources["site_id"] = source
	}
	if before.ObserverAddr != after.ObserverAddr {
		meta.sources["observer_addr"] = source
	}
	if before.HistoryCacheSize != after.HistoryCacheSize {
		meta.sources["history_cache_size"] = source
	}
	if before.HistorySnapshotPath != after.HistorySnapshotPath {
		meta.sources["history_snapshot_path"] = source
	}
}
