// Package config handles configuration loading and saving.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// ConfigDir returns the directory config.yaml and logs live under,
// honoring SetConfigDir and falling back to ~/.crawd.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".crawd"), nil
}

// Config is the root configuration structure.
type Config struct {
	Coordinator CoordinatorConfig `json:"coordinator" yaml:"coordinator"`
	ChatSource  ChatSourceConfig  `json:"chatSource" yaml:"chatSource"`
	Gateway     GatewayConfig     `json:"gateway" yaml:"gateway"`
	Overlay     OverlayConfig     `json:"overlay" yaml:"overlay"`
	HTTP        HTTPConfig        `json:"http" yaml:"http"`
	Logging     LoggingConfig     `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// CoordinatorConfig holds every state-machine and policy tunable the
// coordinator reads at startup and on POST /coordinator/config (all
// durations in milliseconds).
type CoordinatorConfig struct {
	BatchWindowMs     int    `json:"batchWindowMs,omitempty" yaml:"batchWindowMs,omitempty"`
	StartupGraceMs    int    `json:"startupGraceMs,omitempty" yaml:"startupGraceMs,omitempty"`
	IdleAfterMs       int    `json:"idleAfterMs,omitempty" yaml:"idleAfterMs,omitempty"`
	SleepAfterIdleMs  int    `json:"sleepAfterIdleMs,omitempty" yaml:"sleepAfterIdleMs,omitempty"`
	VibeIntervalMs    int    `json:"vibeIntervalMs,omitempty" yaml:"vibeIntervalMs,omitempty"`
	PlanNudgeDelayMs  int    `json:"planNudgeDelayMs,omitempty" yaml:"planNudgeDelayMs,omitempty"`
	AckTimeoutMs      int    `json:"ackTimeoutMs,omitempty" yaml:"ackTimeoutMs,omitempty"`
	RecentMessagesCap int    `json:"recentMessagesCap,omitempty" yaml:"recentMessagesCap,omitempty"`
	DispatchQueueCap  int    `json:"dispatchQueueCap,omitempty" yaml:"dispatchQueueCap,omitempty"`
	VibePrompt        string `json:"vibePrompt,omitempty" yaml:"vibePrompt,omitempty"`
	AutonomyMode      string `json:"autonomyMode,omitempty" yaml:"autonomyMode,omitempty"` // vibe | plan | none
}

// ChatSourceConfig configures the platform adapters the multiplexer
// connects to. A platform whose block is left zero-valued is not
// registered.
type ChatSourceConfig struct {
	Pumpfun PumpfunSourceConfig `json:"pumpfun,omitempty" yaml:"pumpfun,omitempty"`
	Youtube YoutubeSourceConfig `json:"youtube,omitempty" yaml:"youtube,omitempty"`
	Twitch  TwitchSourceConfig  `json:"twitch,omitempty" yaml:"twitch,omitempty"`
	Twitter TwitterSourceConfig `json:"twitter,omitempty" yaml:"twitter,omitempty"`
}

type PumpfunSourceConfig struct {
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	RoomID   string `json:"roomId,omitempty" yaml:"roomId,omitempty"`
}

type YoutubeSourceConfig struct {
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	VideoID string `json:"videoId,omitempty" yaml:"videoId,omitempty"`
}

type TwitchSourceConfig struct {
	Channel  string `json:"channel,omitempty" yaml:"channel,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
}

type TwitterSourceConfig struct {
	BearerToken string `json:"bearerToken,omitempty" yaml:"bearerToken,omitempty"`
	UserID      string `json:"userId,omitempty" yaml:"userId,omitempty"`
}

// GatewayConfig selects and configures the agent gateway transport.
type GatewayConfig struct {
	Mode      string `json:"mode,omitempty" yaml:"mode,omitempty"` // persistent | oneshot
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	ClientID  string `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	AuthToken string `json:"authToken,omitempty" yaml:"authToken,omitempty"`
}

// OverlayConfig configures the overlay websocket bus HTTP surface.
type OverlayConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// HTTPConfig configures the control-plane HTTP API surface.
type HTTPConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Stdout  bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"` // log to stdout
	File    string `json:"file,omitempty" yaml:"file,omitempty"`     // log file path
}

// Load reads config.yaml from dir, applying defaults for any unset
// field. A missing file is not an error: it returns DefaultConfig().
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes cfg to dir/config.yaml, creating dir if needed.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: create dir %s: %w", dir, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
