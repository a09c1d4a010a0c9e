package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/docmark/internal/highlight"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := DefaultConfig()
	if cfg.Port != d.Port || cfg.DebounceDelay != 300*time.Millisecond || cfg.EmphasisDuration != time.Second {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Mode() != highlight.ModeLiteral {
		t.Errorf("expected literal mode, got %q", cfg.Mode())
	}
	if cfg.FetchAllowPrivate {
		t.Error("expected private fetches refused by default")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docmark.yml")
	yml := `port: "9000"
api_key: secret
debounce_delay: 150ms
session_ttl: 5m
match_mode: regex
auto_focus: false
cors_origins:
  - https://a.example
  - https://b.example
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" || cfg.APIKey != "secret" {
		t.Errorf("unexpected port/key: %q %q", cfg.Port, cfg.APIKey)
	}
	if cfg.DebounceDelay != 150*time.Millisecond {
		t.Errorf("expected 150ms debounce, got %v", cfg.DebounceDelay)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("expected 5m ttl, got %v", cfg.SessionTTL)
	}
	if cfg.Mode() != highlight.ModeRegex || cfg.AutoFocus {
		t.Errorf("unexpected mode/autofocus: %q %v", cfg.Mode(), cfg.AutoFocus)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
	// Keys absent from the file keep their defaults.
	if cfg.WorkerCount != DefaultConfig().WorkerCount {
		t.Errorf("expected default worker count, got %d", cfg.WorkerCount)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docmark.yml")
	if err := os.WriteFile(path, []byte("port: \"9000\"\nworker_count: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCMARK_PORT", "9100")
	t.Setenv("DOCMARK_API_KEY", "from-env")
	t.Setenv("DOCMARK_CORS_ORIGINS", "https://x.example, https://y.example")
	t.Setenv("DOCMARK_FETCH_ALLOW_PRIVATE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("expected env port, got %q", cfg.Port)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("expected env api key, got %q", cfg.APIKey)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected file worker count, got %d", cfg.WorkerCount)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://y.example" {
		t.Errorf("expected split origins, got %v", cfg.CORSOrigins)
	}
	if !cfg.FetchAllowPrivate {
		t.Error("expected env to allow private fetches")
	}
}

func TestLoad_FloorsNonPositive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docmark.yml")
	if err := os.WriteFile(path, []byte("worker_count: 0\nmax_queue_size: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("expected floored values, got %d and %d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docmark.yml")
	if err := os.WriteFile(path, []byte("port: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"missing key", func(c *Config) { c.APIKey = "" }, true},
		{"bad mode", func(c *Config) { c.MatchMode = "fuzzy" }, true},
		{"negative sessions", func(c *Config) { c.MaxSessions = -1 }, true},
		{"zero rps", func(c *Config) { c.FetchRPS = 0 }, true},
		{"zero rps without fetch", func(c *Config) { c.FetchRPS = 0; c.FetchEnabled = false }, false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.APIKey = "k"
		tt.mutate(&cfg)
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestPath(t *testing.T) {
	t.Setenv("DOCMARK_CONFIG", "")
	if Path() != DefaultPath {
		t.Errorf("expected default path, got %q", Path())
	}
	t.Setenv("DOCMARK_CONFIG", "/etc/docmark.yml")
	if Path() != "/etc/docmark.yml" {
		t.Errorf("expected env path, got %q", Path())
	}
}
