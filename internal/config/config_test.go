package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Monitor.GetCycleInterval(); got != 10*time.Second {
		t.Errorf("cycle interval = %v, want 10s", got)
	}
	if got := cfg.Monitor.GetProbeTimeout(); got != 2*time.Second {
		t.Errorf("probe timeout = %v, want 2s", got)
	}
	if !cfg.Monitor.FallbackEnabled() {
		t.Error("inventory fallback should default to enabled")
	}
	if cfg.Monitor.ProbeMethod != "icmp" {
		t.Errorf("probe method = %q, want icmp", cfg.Monitor.ProbeMethod)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Monitor.HistoryLimit != 50 {
		t.Errorf("history limit = %d, want 50", cfg.Monitor.HistoryLimit)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
monitor:
  cycle_interval_ms: 5000
  probe_timeout_ms: 1000
  probe_method: tcp
  tcp_port: 443
  inventory_fallback: false
logging:
  level: debug
  format: json
`)

	t.Setenv("SW_PROBE_TIMEOUT_MS", "750")
	t.Setenv("SW_MAX_CONCURRENT_PROBES", "32")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Monitor.ProbeTimeoutMS != 750 {
		t.Errorf("probe timeout = %d, want env override 750", cfg.Monitor.ProbeTimeoutMS)
	}
	if cfg.Monitor.MaxConcurrentProbes != 32 {
		t.Errorf("max concurrent probes = %d, want 32", cfg.Monitor.MaxConcurrentProbes)
	}
	if cfg.Monitor.FallbackEnabled() {
		t.Error("inventory fallback should be disabled by file")
	}
	if cfg.Monitor.ProbeMethod != "tcp" || cfg.Monitor.TCPPort != 443 {
		t.Errorf("probe = %s:%d, want tcp:443", cfg.Monitor.ProbeMethod, cfg.Monitor.TCPPort)
	}
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("SW_CYCLE_INTERVAL_MS", "soon")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for non-numeric SW_CYCLE_INTERVAL_MS")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown probe method", func(c *Config) { c.Monitor.ProbeMethod = "carrier-pigeon" }},
		{"timeout not shorter than interval", func(c *Config) { c.Monitor.ProbeTimeoutMS = c.Monitor.CycleIntervalMS }},
		{"postgres without host", func(c *Config) { c.Database.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"auth without secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.AdminUsername = "admin"
			c.Auth.AdminPasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
		}},
		{"nats without url", func(c *Config) { c.Publish.NATS.Enabled = true }},
		{"negative concurrency", func(c *Config) { c.Monitor.MaxConcurrentProbes = -1 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}
