package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("HABITD_SERVER_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load() without token should fail")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HABITD_SERVER_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.LLM.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v, want 30m", cfg.Session.TTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HABITD_SERVER_TOKEN", "secret")
	t.Setenv("HABITD_SERVER_PORT", "9999")
	t.Setenv("HABITD_LLM_MODEL", "anthropic/claude-sonnet")
	t.Setenv("HABITD_SESSION_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.LLM.Model != "anthropic/claude-sonnet" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.Session.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", cfg.Session.TTL)
	}
}

func TestLoad_MalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("HABITD_SERVER_TOKEN", "secret")
	t.Setenv("HABITD_SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Port = %d, want default 4100", cfg.Server.Port)
	}
}
