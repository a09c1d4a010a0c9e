package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides: DOCMARK_PORT -> port.
const EnvPrefix = "DOCMARK_"

// DefaultPath is read when DOCMARK_CONFIG is unset.
const DefaultPath = "docmark.yml"

type Config struct {
	Port string `koanf:"port"`

	// Auth
	APIKey string `koanf:"api_key"`

	// Upload limits
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// Live sessions
	SessionTTL       time.Duration `koanf:"session_ttl"`
	MaxSessions      int           `koanf:"max_sessions"`
	DebounceDelay    time.Duration `koanf:"debounce_delay"`
	EmphasisDuration time.Duration `koanf:"emphasis_duration"`
	MatchMode        string        `koanf:"match_mode"`
	AutoFocus        bool          `koanf:"auto_focus"`

	// Worker pool
	WorkerCount  int           `koanf:"worker_count"`
	MaxQueueSize int           `koanf:"max_queue_size"`
	JobTTL       time.Duration `koanf:"job_ttl"`

	// Page fetching
	FetchEnabled      bool          `koanf:"fetch_enabled"`
	FetchTimeout      time.Duration `koanf:"fetch_timeout"`
	FetchRPS          float64       `koanf:"fetch_rps"`
	FetchBurst        int           `koanf:"fetch_burst"`
	FetchMaxBytes     int64         `koanf:"fetch_max_bytes"`
	FetchAllowPrivate bool          `koanf:"fetch_allow_private"` // loopback and private networks

	// PDF
	PDFFallbackPdftotext bool `koanf:"pdf_fallback_pdftotext"`

	CORSOrigins []string `koanf:"cors_origins"`
}

func DefaultConfig() Config {
	return Config{
		Port: "8090",

		MaxUploadBytes: 52428800, // 50MB

		SessionTTL:       30 * time.Minute,
		MaxSessions:      256,
		DebounceDelay:    300 * time.Millisecond,
		EmphasisDuration: time.Second,
		MatchMode:        string(highlight.ModeLiteral),
		AutoFocus:        true,

		WorkerCount:  4,
		MaxQueueSize: 100,
		JobTTL:       1 * time.Hour,

		FetchEnabled:  true,
		FetchTimeout:  30 * time.Second,
		FetchRPS:      2,
		FetchBurst:    4,
		FetchMaxBytes: 10485760, // 10MB

		PDFFallbackPdftotext: true,

		CORSOrigins: []string{"*"},
	}
}

// Path returns the config file location from DOCMARK_CONFIG or the default.
func Path() string {
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load starts from defaults, applies the YAML file at path if it exists,
// then overlays DOCMARK_* environment variables.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return cfg, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	cfg.applyFloors()
	return cfg, nil
}

// applyFloors replaces non-positive sizes with their defaults.
func (c *Config) applyFloors() {
	d := DefaultConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = d.DebounceDelay
	}
	if c.EmphasisDuration <= 0 {
		c.EmphasisDuration = d.EmphasisDuration
	}
	if c.FetchMaxBytes <= 0 {
		c.FetchMaxBytes = d.FetchMaxBytes
	}
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set %sAPI_KEY)", EnvPrefix)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if _, err := highlight.ParseMode(c.MatchMode); err != nil {
		return fmt.Errorf("invalid match_mode: %w", err)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must be non-negative")
	}
	if c.FetchEnabled && c.FetchRPS <= 0 {
		return fmt.Errorf("fetch_rps must be positive when fetching is enabled")
	}
	if c.FetchEnabled && c.FetchBurst <= 0 {
		return fmt.Errorf("fetch_burst must be positive when fetching is enabled")
	}
	return nil
}

// Mode returns the configured match mode, defaulting to literal.
func (c Config) Mode() highlight.Mode {
	m, err := highlight.ParseMode(c.MatchMode)
	if err != nil {
		return highlight.ModeLiteral
	}
	return m
}
