package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/media-bridge/backend/internal/session"
)

type Config struct {
	Server Server `yaml:"server"`
	Bridge Bridge `yaml:"bridge"`
	WS     WS     `yaml:"ws"`
	Filter Filter `yaml:"filter"`
}

type Server struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

type Bridge struct {
	// EventBuffer is the capacity of the bridge's delivery channel.
	EventBuffer int `yaml:"event_buffer"`

	// PollInterval drives the process source's enumeration loop.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PlayerProcesses names the processes treated as media players,
	// matched case-insensitively with any ".exe" suffix stripped.
	PlayerProcesses []string `yaml:"player_processes"`

	// PlayingCPUThreshold is the CPU percentage above which a tracked
	// player counts as actively playing.
	PlayingCPUThreshold float64 `yaml:"playing_cpu_threshold"`
}

type WS struct {
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
	SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
}

type Filter struct {
	AllowedApps []string `yaml:"allowed_apps"`
	BlockedApps []string `yaml:"blocked_apps"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Bridge: Bridge{
			EventBuffer:  256,
			PollInterval: time.Second,
			PlayerProcesses: []string{
				"spotify", "vlc", "mpv", "rhythmbox", "clementine",
			},
			PlayingCPUThreshold: 5.0,
		},
		WS: WS{
			BroadcastThrottle: 100 * time.Millisecond,
			SnapshotInterval:  5 * time.Second,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads the config file if it exists and falls back to
// defaults when it doesn't. Any other read or parse failure is an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// NewAppFilter builds the session exposure filter from the filter
// section. The zero section yields a filter that exposes everything.
func (c *Config) NewAppFilter() *session.AppFilter {
	return &session.AppFilter{
		AllowedApps: c.Filter.AllowedApps,
		BlockedApps: c.Filter.BlockedApps,
	}
}

// GenerateToken returns a random hex auth token.
func GenerateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Diff lists the human-readable differences between two configs; used to
// log what a reload changed.
func Diff(old, new *Config) []string {
	var changes []string

	if old.Server.Port != new.Server.Port {
		changes = append(changes, fmt.Sprintf("server.port: %d -> %d", old.Server.Port, new.Server.Port))
	}
	if old.Server.Host != new.Server.Host {
		changes = append(changes, fmt.Sprintf("server.host: %s -> %s", old.Server.Host, new.Server.Host))
	}
	if old.Server.MaxConnections != new.Server.MaxConnections {
		changes = append(changes, fmt.Sprintf("server.max_connections: %d -> %d", old.Server.MaxConnections, new.Server.MaxConnections))
	}
	if old.Bridge.PollInterval != new.Bridge.PollInterval {
		changes = append(changes, fmt.Sprintf("bridge.poll_interval: %s -> %s", old.Bridge.PollInterval, new.Bridge.PollInterval))
	}
	if old.Bridge.PlayingCPUThreshold != new.Bridge.PlayingCPUThreshold {
		changes = append(changes, fmt.Sprintf("bridge.playing_cpu_threshold: %.1f -> %.1f", old.Bridge.PlayingCPUThreshold, new.Bridge.PlayingCPUThreshold))
	}
	if !stringSlicesEqual(old.Bridge.PlayerProcesses, new.Bridge.PlayerProcesses) {
		changes = append(changes, fmt.Sprintf("bridge.player_processes: %v -> %v", old.Bridge.PlayerProcesses, new.Bridge.PlayerProcesses))
	}
	if old.WS.BroadcastThrottle != new.WS.BroadcastThrottle {
		changes = append(changes, fmt.Sprintf("ws.broadcast_throttle: %s -> %s", old.WS.BroadcastThrottle, new.WS.BroadcastThrottle))
	}
	if old.WS.SnapshotInterval != new.WS.SnapshotInterval {
		changes = append(changes, fmt.Sprintf("ws.snapshot_interval: %s -> %s", old.WS.SnapshotInterval, new.WS.SnapshotInterval))
	}
	if !stringSlicesEqual(old.Filter.AllowedApps, new.Filter.AllowedApps) {
		changes = append(changes, fmt.Sprintf("filter.allowed_apps: %v -> %v", old.Filter.AllowedApps, new.Filter.AllowedApps))
	}
	if !stringSlicesEqual(old.Filter.BlockedApps, new.Filter.BlockedApps) {
		changes = append(changes, fmt.Sprintf("filter.blocked_apps: %v -> %v", old.Filter.BlockedApps, new.Filter.BlockedApps))
	}

	return changes
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
