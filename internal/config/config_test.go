package config

import (
	"os"
	"testing"
	"time"
)

type envMap map[string]string

func (e envMap) Lookup(key string) (string, bool) {
	v, ok := e[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func TestLoadDefaults(t *testing.T) {
	cfg, meta, err := Load(
		WithEnv(envMap{}.Lookup),
		WithFileReader(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DefaultWorkflowType != "generic" {
		t.Fatalf("workflow type = %q, want generic", cfg.DefaultWorkflowType)
	}
	if cfg.HistoryCacheSize != 256 {
		t.Fatalf("history cache size = %d, want 256", cfg.HistoryCacheSize)
	}
	if got := meta.Source("workflow_type"); got != SourceDefault {
		t.Fatalf("source = %s, want default", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	fileData := []byte("engine:\n  site_id: acme\n  history_cache_size: 64\n")
	cfg, meta, err := Load(
		WithConfigPath("config.yaml"),
		WithEnv(envMap{}.Lookup),
		WithFileReader(func(string) ([]byte, error) { return fileData, nil }),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DefaultSiteID != "acme" {
		t.Fatalf("site id = %q, want acme", cfg.DefaultSiteID)
	}
	if cfg.HistoryCacheSize != 64 {
		t.Fatalf("history cache size = %d, want 64", cfg.HistoryCacheSize)
	}
	if got := meta.Source("site_id"); got != SourceFile {
		t.Fatalf("source = %s, want file", got)
	}
	if cfg.DefaultWorkflowType != "generic" {
		t.Fatalf("unset field should keep default, got %q", cfg.DefaultWorkflowType)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	fileData := []byte("engine:\n  site_id: acme\n")
	env := envMap{"TIMELINE_SITE_ID": "from-env"}
	cfg, meta, err := Load(
		WithConfigPath("config.yaml"),
		WithEnv(env.Lookup),
		WithFileReader(func(string) ([]byte, error) { return fileData, nil }),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DefaultSiteID != "from-env" {
		t.Fatalf("site id = %q, want from-env", cfg.DefaultSiteID)
	}
	if got := meta.Source("site_id"); got != SourceEnv {
		t.Fatalf("source = %s, want environment", got)
	}
}

func TestLoadOverridesWinOverEverything(t *testing.T) {
	fileData := []byte("engine:\n  site_id: acme\n")
	env := envMap{"TIMELINE_SITE_ID": "from-env"}
	want := "from-override"
	cfg, meta, err := Load(
		WithConfigPath("config.yaml"),
		WithEnv(env.Lookup),
		WithFileReader(func(string) ([]byte, error) { return fileData, nil }),
		WithOverrides(Overrides{DefaultSiteID: &want}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DefaultSiteID != want {
		t.Fatalf("site id = %q, want %q", cfg.DefaultSiteID, want)
	}
	if got := meta.Source("site_id"); got != SourceOverride {
		t.Fatalf("source = %s, want override", got)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, _, err := Load(
		WithConfigPath("does-not-exist.yaml"),
		WithEnv(envMap{}.Lookup),
		WithFileReader(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
	)
	if err != nil {
		t.Fatalf("missing config file should not be an error, got %v", err)
	}
}

func TestLoadEnvDurationAndInt(t *testing.T) {
	env := envMap{
		"TIMELINE_STATUS_POLL_INTERVAL": "2s",
		"TIMELINE_HISTORY_CACHE_SIZE":   "12",
	}
	cfg, _, err := Load(
		WithEnv(env.Lookup),
		WithFileReader(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StatusPollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", cfg.StatusPollInterval)
	}
	if cfg.HistoryCacheSize != 12 {
		t.Fatalf("history cache size = %d, want 12", cfg.HistoryCacheSize)
	}
}
