package config

import "time"

// Option customizes Load's behavior.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	overrides  Overrides
	configPath string
}

// Overrides holds caller-supplied values that win over file and
// environment layers. Every field is a pointer so "unset" is distinguishable
// from the zero value.
type Overrides struct {
	StatusPollInterval  *time.Duration
	DefaultWorkflowType *string
	DefaultSiteID       *string
	ObserverAddr        *string
	HistoryCacheSize    *int
	HistorySnapshotPath *string
}

// WithConfigPath points Load at a YAML file. Omitting this option skips the
// file layer entirely.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) { o.configPath = path }
}

// WithEnv supplies a custom environment lookup, used by tests.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithFileReader injects a custom file reader, used by tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = reader }
}

// WithOverrides applies overrides at the highest precedence layer.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) { o.overrides = overrides }
}
