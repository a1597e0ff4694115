package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	LLM        LLMConfig
	Transcribe TranscribeConfig
	Session    SessionConfig
	Reminder   ReminderConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	// OpenRouterAPIKey enables LLM extraction. Empty means the pipeline
	// degrades to a raw-text passthrough.
	OpenRouterAPIKey string
	BaseURL          string
	Model            string
	Timeout          time.Duration
}

type TranscribeConfig struct {
	// OpenAIAPIKey enables Whisper transcription of voice input.
	OpenAIAPIKey string
	Model        string
	Timeout      time.Duration
}

type SessionConfig struct {
	// TTL is the idle timeout after which a session is treated as absent.
	TTL time.Duration
	// OperationTimeout bounds each external call made during a turn.
	OperationTimeout time.Duration
}

type ReminderConfig struct {
	// NotifyURL is the relay endpoint reminders are POSTed to. Empty
	// disables the reminder worker.
	NotifyURL    string
	NotifyToken  string
	PollInterval time.Duration
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openai/gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Transcribe: TranscribeConfig{
			Model:   "whisper-1",
			Timeout: 60 * time.Second,
		},
		Session: SessionConfig{
			TTL:              30 * time.Minute,
			OperationTimeout: 15 * time.Second,
		},
		Reminder: ReminderConfig{
			PollInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/habitd"
	}
	return ".habitd"
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present (a missing file is fine), then
// HABITD_* variables override the defaults. Secrets are only ever read from
// the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Token == "" {
		return Config{}, fmt.Errorf("missing required config: inbound auth token. Set HABITD_SERVER_TOKEN")
	}
	return cfg, nil
}

type envSpec struct {
	env   string
	apply func(cfg *Config, raw string) error
}

func str(target func(cfg *Config) *string) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		*target(cfg) = raw
		return nil
	}
}

func dur(target func(cfg *Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*target(cfg) = d
		return nil
	}
}

var specs = []envSpec{
	{env: "HABITD_SERVER_PORT", apply: func(cfg *Config, raw string) error {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		cfg.Server.Port = p
		return nil
	}},
	{env: "HABITD_SERVER_TOKEN", apply: str(func(c *Config) *string { return &c.Server.Token })},
	{env: "HABITD_STORAGE_DATA_DIR", apply: str(func(c *Config) *string { return &c.Storage.DataDir })},
	{env: "HABITD_OPENROUTER_API_KEY", apply: str(func(c *Config) *string { return &c.LLM.OpenRouterAPIKey })},
	{env: "HABITD_LLM_BASE_URL", apply: str(func(c *Config) *string { return &c.LLM.BaseURL })},
	{env: "HABITD_LLM_MODEL", apply: str(func(c *Config) *string { return &c.LLM.Model })},
	{env: "HABITD_LLM_TIMEOUT", apply: dur(func(c *Config) *time.Duration { return &c.LLM.Timeout })},
	{env: "HABITD_OPENAI_API_KEY", apply: str(func(c *Config) *string { return &c.Transcribe.OpenAIAPIKey })},
	{env: "HABITD_WHISPER_MODEL", apply: str(func(c *Config) *string { return &c.Transcribe.Model })},
	{env: "HABITD_WHISPER_TIMEOUT", apply: dur(func(c *Config) *time.Duration { return &c.Transcribe.Timeout })},
	{env: "HABITD_SESSION_TTL", apply: dur(func(c *Config) *time.Duration { return &c.Session.TTL })},
	{env: "HABITD_OPERATION_TIMEOUT", apply: dur(func(c *Config) *time.Duration { return &c.Session.OperationTimeout })},
	{env: "HABITD_NOTIFY_URL", apply: str(func(c *Config) *string { return &c.Reminder.NotifyURL })},
	{env: "HABITD_NOTIFY_TOKEN", apply: str(func(c *Config) *string { return &c.Reminder.NotifyToken })},
	{env: "HABITD_REMINDER_POLL", apply: dur(func(c *Config) *time.Duration { return &c.Reminder.PollInterval })},
	{env: "HABITD_LOG_LEVEL", apply: str(func(c *Config) *string { return &c.Log.Level })},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		if err := s.apply(cfg, raw); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
		}
	}
}
