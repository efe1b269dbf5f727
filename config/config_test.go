package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Coordinator.BatchWindowMs != defaultBatchWindowMs {
		t.Fatalf("expected default batch window, got %d", cfg.Coordinator.BatchWindowMs)
	}
	if cfg.Gateway.Mode != defaultGatewayMode {
		t.Fatalf("expected default gateway mode, got %q", cfg.Gateway.Mode)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Coordinator.VibePrompt = "custom vibe prompt"
	cfg.ChatSource.Twitch.Channel = "somechannel"
	cfg.Gateway.URL = "wss://gateway.example/agent"

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := filepath.Abs(dir); err != nil {
		t.Fatalf("bad temp dir: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Coordinator.VibePrompt != "custom vibe prompt" {
		t.Fatalf("unexpected vibe prompt: %q", loaded.Coordinator.VibePrompt)
	}
	if loaded.ChatSource.Twitch.Channel != "somechannel" {
		t.Fatalf("unexpected twitch channel: %q", loaded.ChatSource.Twitch.Channel)
	}
	if loaded.Gateway.URL != "wss://gateway.example/agent" {
		t.Fatalf("unexpected gateway url: %q", loaded.Gateway.URL)
	}
}

func TestApplyDefaultsLeavesSetFieldsUntouched(t *testing.T) {
	cfg := &Config{
		Coordinator: CoordinatorConfig{
			BatchWindowMs: 5000,
		},
	}
	cfg.applyDefaults()
	if cfg.Coordinator.BatchWindowMs != 5000 {
		t.Fatalf("expected explicit value preserved, got %d", cfg.Coordinator.BatchWindowMs)
	}
	if cfg.Coordinator.IdleAfterMs != defaultIdleAfterMs {
		t.Fatalf("expected unset field defaulted, got %d", cfg.Coordinator.IdleAfterMs)
	}
}

func TestConfigDirOverride(t *testing.T) {
	defer SetConfigDir("")
	SetConfigDir("/tmp/custom-crawd")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "/tmp/custom-crawd" {
		t.Fatalf("expected override to take effect, got %q", dir)
	}
}
