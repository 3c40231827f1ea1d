package bridgeconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, v any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentbridge.json")
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaultsThenFailsValidation(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected validation error for missing required fields")
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, Config{
		BotToken:            "tok",
		AllowedUserIDs:      []string{"u1"},
		ApprovedDirectories: []string{"/home/u1"},
	})
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IdleTimeoutSeconds != defaultIdleTimeoutSeconds {
		t.Fatalf("expected default idle timeout, got %d", cfg.IdleTimeoutSeconds)
	}
	if cfg.MaxMessageLength != defaultMaxMessageLength {
		t.Fatalf("expected default max message length, got %d", cfg.MaxMessageLength)
	}
	if cfg.ListenAddr != defaultListenAddr {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.AgentCommand != defaultAgentCommand {
		t.Fatalf("expected default agent command, got %q", cfg.AgentCommand)
	}
	if cfg.SkillsDir != defaultSkillsDir {
		t.Fatalf("expected default skills dir, got %q", cfg.SkillsDir)
	}
}

func TestLoadConfigValidatesRequiredFields(t *testing.T) {
	path := writeConfig(t, Config{BotToken: "tok"})
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing allowed users/directories")
	}
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	path := writeConfig(t, Config{
		BotToken:            "file-token",
		AllowedUserIDs:      []string{"u1"},
		ApprovedDirectories: []string{"/home/u1"},
	})
	t.Setenv("AGENTBRIDGE_BOT_TOKEN", "env-token")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BotToken != "env-token" {
		t.Fatalf("expected env override to win, got %q", cfg.BotToken)
	}
}

func TestIsAllowedUser(t *testing.T) {
	cfg := Config{AllowedUserIDs: []string{"u1", "u2"}}
	if !cfg.IsAllowedUser("u1") {
		t.Fatal("expected u1 to be allowed")
	}
	if cfg.IsAllowedUser("u3") {
		t.Fatal("expected u3 to be rejected")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Config{IdleTimeoutSeconds: 5, EditIntervalSeconds: 2.5, MediaGroupTimeoutSecs: 1.5}
	if cfg.IdleTimeout().Seconds() != 5 {
		t.Fatalf("unexpected idle timeout: %v", cfg.IdleTimeout())
	}
	if cfg.EditInterval().Milliseconds() != 2500 {
		t.Fatalf("unexpected edit interval: %v", cfg.EditInterval())
	}
	if cfg.MediaGroupTimeout().Milliseconds() != 1500 {
		t.Fatalf("unexpected media group timeout: %v", cfg.MediaGroupTimeout())
	}
}
