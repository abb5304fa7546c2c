package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
  host: "0.0.0.0"
  auth_token: "abc123"
  allowed_origins:
    - "http://localhost:5173"
bridge:
  poll_interval: 250ms
  player_processes:
    - spotify
    - audacious
filter:
  blocked_apps:
    - "chrome*"
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.AuthToken != "abc123" {
		t.Errorf("Server.AuthToken = %q, want abc123", cfg.Server.AuthToken)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Bridge.PollInterval != 250*time.Millisecond {
		t.Errorf("Bridge.PollInterval = %s, want 250ms", cfg.Bridge.PollInterval)
	}
	if len(cfg.Bridge.PlayerProcesses) != 2 || cfg.Bridge.PlayerProcesses[1] != "audacious" {
		t.Errorf("Bridge.PlayerProcesses = %v", cfg.Bridge.PlayerProcesses)
	}
	if len(cfg.Filter.BlockedApps) != 1 || cfg.Filter.BlockedApps[0] != "chrome*" {
		t.Errorf("Filter.BlockedApps = %v", cfg.Filter.BlockedApps)
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Bridge.EventBuffer != 256 {
		t.Errorf("Bridge.EventBuffer = %d, want default 256", cfg.Bridge.EventBuffer)
	}
	if cfg.WS.BroadcastThrottle == 0 {
		t.Error("WS.BroadcastThrottle should have default, got 0")
	}
	if cfg.WS.SnapshotInterval == 0 {
		t.Error("WS.SnapshotInterval should have default, got 0")
	}
	if cfg.Bridge.PlayingCPUThreshold != 5.0 {
		t.Errorf("Bridge.PlayingCPUThreshold = %f, want default 5.0", cfg.Bridge.PlayingCPUThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}

	// Should return defaults.
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Bridge.PollInterval != time.Second {
		t.Errorf("Bridge.PollInterval = %s, want default 1s", cfg.Bridge.PollInterval)
	}
	if len(cfg.Bridge.PlayerProcesses) == 0 {
		t.Error("Bridge.PlayerProcesses should have defaults, got none")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte(":::not valid yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath); err == nil {
		t.Fatal("Load() on invalid yaml should return error")
	}
	if _, err := LoadOrDefault(cfgPath); err == nil {
		t.Fatal("LoadOrDefault() on invalid yaml should return error")
	}
}

func TestNewAppFilter(t *testing.T) {
	cfg := &Config{
		Filter: Filter{
			AllowedApps: []string{"spotify", "vlc"},
			BlockedApps: []string{"chrome*"},
		},
	}

	f := cfg.NewAppFilter()
	if !f.IsAllowed("spotify") {
		t.Error("spotify should pass the filter")
	}
	if f.IsAllowed("chrome") {
		t.Error("chrome should be blocked")
	}
	if f.IsAllowed("mpv") {
		t.Error("mpv is not on the allowlist")
	}
}

func TestNewAppFilterZeroValue(t *testing.T) {
	f := defaultConfig().NewAppFilter()
	if !f.IsAllowed("anything") {
		t.Error("zero-value filter should expose everything")
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if len(tok) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("token length = %d, want 32", len(tok))
	}

	// Tokens should be unique.
	tok2, _ := GenerateToken()
	if tok == tok2 {
		t.Error("two generated tokens should not be identical")
	}
}

func TestDiffNoChanges(t *testing.T) {
	a := defaultConfig()
	b := defaultConfig()
	if changes := Diff(a, b); len(changes) != 0 {
		t.Errorf("Diff of identical configs = %v, want empty", changes)
	}
}

func TestDiffDetectsChanges(t *testing.T) {
	old := defaultConfig()
	changed := defaultConfig()
	changed.Server.Port = 9999
	changed.Bridge.PollInterval = 5 * time.Second
	changed.Filter.BlockedApps = []string{"chrome"}

	changes := Diff(old, changed)
	if len(changes) != 3 {
		t.Fatalf("Diff returned %d changes, want 3: %v", len(changes), changes)
	}
}
