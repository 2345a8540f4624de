package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("RADAR_PORT", "9090")
	os.Setenv("RADAR_LOG_LEVEL", "debug")
	os.Setenv("RADAR_CACHE_TTL_SECONDS", "60")
	defer func() {
		os.Unsetenv("RADAR_PORT")
		os.Unsetenv("RADAR_LOG_LEVEL")
		os.Unsetenv("RADAR_CACHE_TTL_SECONDS")
	}()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}

	if cfg.Cache.TTL() != time.Minute {
		t.Errorf("Cache.TTL() = %v, want 1m", cfg.Cache.TTL())
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Cache.Capacity != 10 {
		t.Errorf("Cache.Capacity = %d, want 10", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTLSeconds != 3600 {
		t.Errorf("Cache.TTLSeconds = %d, want 3600", cfg.Cache.TTLSeconds)
	}
	if cfg.MaxQueryLength != 100 {
		t.Errorf("MaxQueryLength = %d, want 100", cfg.MaxQueryLength)
	}
	if cfg.Filter.ContextCharLimit != 8000 {
		t.Errorf("Filter.ContextCharLimit = %d, want 8000", cfg.Filter.ContextCharLimit)
	}
	if cfg.Filter.SnippetCharCap != 500 {
		t.Errorf("Filter.SnippetCharCap = %d, want 500", cfg.Filter.SnippetCharCap)
	}
	if cfg.Fetch.TimeoutSeconds != 12 {
		t.Errorf("Fetch.TimeoutSeconds = %d, want 12", cfg.Fetch.TimeoutSeconds)
	}
	if cfg.Fetch.MaxConnections != 10 {
		t.Errorf("Fetch.MaxConnections = %d, want 10", cfg.Fetch.MaxConnections)
	}
	if cfg.Fetch.MaxKeepalive != 5 {
		t.Errorf("Fetch.MaxKeepalive = %d, want 5", cfg.Fetch.MaxKeepalive)
	}
	if cfg.Bus.Type != "memory" {
		t.Errorf("Bus.Type = %s, want memory", cfg.Bus.Type)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
port: 7070
cache:
  type: memory
  capacity: 5
  ttl_seconds: 120
genai:
  gemini_model: gemini-2.0-flash
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.Cache.Capacity != 5 {
		t.Errorf("Cache.Capacity = %d, want 5", cfg.Cache.Capacity)
	}
	if cfg.GenAI.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("GenAI.GeminiModel = %s, want gemini-2.0-flash", cfg.GenAI.GeminiModel)
	}

	// Unset values keep defaults
	if cfg.Fetch.TimeoutSeconds != 12 {
		t.Errorf("Fetch.TimeoutSeconds = %d, want default 12", cfg.Fetch.TimeoutSeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("port: 7070\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("RADAR_PORT", "6060")
	defer os.Unsetenv("RADAR_PORT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 6060 {
		t.Errorf("Port = %d, want env override 6060", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "port"},
		{"bad cache type", func(c *Config) { c.Cache.Type = "memcached" }, "cache type"},
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }, "capacity"},
		{"zero ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }, "ttl_seconds"},
		{"zero timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"keepalive over connections", func(c *Config) { c.Fetch.MaxKeepalive = 100 }, "max_keepalive"},
		{"context below snippet cap", func(c *Config) { c.Filter.ContextCharLimit = 10 }, "context_char_limit"},
		{"bad bus type", func(c *Config) { c.Bus.Type = "nats" }, "bus type"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 8080}
	if cfg.Address() != "127.0.0.1:8080" {
		t.Errorf("Address() = %s", cfg.Address())
	}
}
