package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Hosts) != 1 || cfg.Hosts[0] != "localhost:6600" {
		t.Errorf("Hosts = %v", cfg.Hosts)
	}
	if time.Duration(cfg.RetryInterval) != 5*time.Second {
		t.Errorf("RetryInterval = %v, want 5s", time.Duration(cfg.RetryInterval))
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8090 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
hosts:
  - music-pi:6600
  - /run/mpd/socket
retry_interval: 10s
server:
  host: 0.0.0.0
  port: 9000
  allowed_origins:
    - https://example.com
log_level: debug
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Hosts) != 2 || cfg.Hosts[1] != "/run/mpd/socket" {
		t.Errorf("Hosts = %v", cfg.Hosts)
	}
	if time.Duration(cfg.RetryInterval) != 10*time.Second {
		t.Errorf("RetryInterval = %v, want 10s", time.Duration(cfg.RetryInterval))
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadNumericRetryInterval(t *testing.T) {
	cfg, err := Load(writeConfig(t, "retry_interval: 2\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if time.Duration(cfg.RetryInterval) != 2*time.Second {
		t.Errorf("RetryInterval = %v, want 2s", time.Duration(cfg.RetryInterval))
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "EmptyHosts", content: "hosts: []\n"},
		{name: "NegativeRetry", content: "retry_interval: -5s\n"},
		{name: "BadDuration", content: "retry_interval: soon\n"},
		{name: "BadYAML", content: ":\n  -"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error")
	}
}
