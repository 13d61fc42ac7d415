package config

import (
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func clearSecretEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TWITTER_USERNAME", "TWITTER_PASSWORD",
		"EMAIL_USERNAME", "EMAIL_PASSWORD",
		"GEMINI_API_KEY", "OPENAI_API_KEY",
		"CHROME_BIN", "CROBOT_DB", "HEALTH_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	clearSecretEnv(t)
	cfg := DefaultConfig()
	if cfg.Name != "crobot" {
		t.Errorf("expected Name=crobot, got %s", cfg.Name)
	}
	if cfg.Generator.Provider != "gemini" {
		t.Errorf("expected Provider=gemini, got %s", cfg.Generator.Provider)
	}
	if cfg.Twitter.TweetLimit != 260 {
		t.Errorf("expected TweetLimit=260, got %d", cfg.Twitter.TweetLimit)
	}
	if !cfg.Browser.Headless {
		t.Error("expected Headless=true by default")
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearSecretEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Twitter.Username = "botaccount"
	cfg.Schedule.MaxPostsPerDay = 3

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Twitter.Username != "botaccount" {
		t.Errorf("expected Username=botaccount, got %s", loaded.Twitter.Username)
	}
	if loaded.Schedule.MaxPostsPerDay != 3 {
		t.Errorf("expected MaxPostsPerDay=3, got %d", loaded.Schedule.MaxPostsPerDay)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	clearSecretEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "crobot" {
		t.Errorf("expected defaults, got Name=%s", cfg.Name)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("TWITTER_USERNAME", "env-user")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("CROBOT_DB", "/tmp/other.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Twitter.Username != "env-user" {
		t.Errorf("expected Username=env-user, got %s", cfg.Twitter.Username)
	}
	if cfg.Generator.APIKey != "env-key" {
		t.Errorf("expected APIKey=env-key, got %s", cfg.Generator.APIKey)
	}
	if cfg.Storage.DatabasePath != "/tmp/other.db" {
		t.Errorf("expected DatabasePath=/tmp/other.db, got %s", cfg.Storage.DatabasePath)
	}
}

func TestConfig_Validate(t *testing.T) {
	clearSecretEnv(t)

	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error with no secrets configured")
	}

	cfg.Twitter.Username = "u"
	cfg.Twitter.Password = "p"
	cfg.Mailbox.Username = "m"
	cfg.Mailbox.Password = "mp"
	cfg.Generator.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}

	cfg.Generator.Provider = "llama-at-home"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown provider")
	}
	cfg.Generator.Provider = "gemini"

	cfg.Schedule.MinInterval = "2h"
	cfg.Schedule.MaxInterval = "1h"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for inverted interval range")
	}
	cfg.Schedule.MinInterval = "45m"
	cfg.Schedule.MaxInterval = "2h"

	cfg.Schedule.CommentProbability = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for probability > 1")
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	clearSecretEnv(t)
	cfg := DefaultConfig()

	if cfg.GetMinInterval() != 45*time.Minute {
		t.Errorf("expected 45m, got %v", cfg.GetMinInterval())
	}
	if cfg.GetMaxInterval() != 2*time.Hour {
		t.Errorf("expected 2h, got %v", cfg.GetMaxInterval())
	}

	// Garbage falls back to defaults.
	cfg.Mailbox.WaitTimeout = "not-a-duration"
	if cfg.GetWaitTimeout() != 3*time.Minute {
		t.Errorf("expected fallback 3m, got %v", cfg.GetWaitTimeout())
	}
}

func TestConfig_Redacted(t *testing.T) {
	clearSecretEnv(t)
	cfg := DefaultConfig()
	cfg.Twitter.Password = "hunter2"
	cfg.Generator.APIKey = "sk-live"

	red := cfg.Redacted()
	if red.Twitter.Password == "hunter2" || red.Generator.APIKey == "sk-live" {
		t.Error("Redacted leaked secrets")
	}
	// Original untouched.
	if cfg.Twitter.Password != "hunter2" {
		t.Error("Redacted mutated the original config")
	}
}
