package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Workspace string          `json:"workspace" env:"HEIDI_WORKSPACE"`
	Provider  ProviderConfig  `json:"provider"`
	Discord   DiscordConfig   `json:"discord"`
	Quota     QuotaConfig     `json:"quota"`
	Memory    MemoryConfig    `json:"memory"`
	Queue     QueueConfig     `json:"queue"`
	Reply     ReplyConfig     `json:"reply"`
	Schedules ScheduleConfig  `json:"schedules"`
	Gateway   GatewayConfig   `json:"gateway"`
}

type ProviderConfig struct {
	APIKey          string  `json:"api_key" env:"OPENROUTER_API_KEY"`
	APIBase         string  `json:"api_base" env:"OPENROUTER_API_BASE"`
	Model           string  `json:"model" env:"HEIDI_PROVIDER_MODEL"`
	SummaryModel    string  `json:"summary_model" env:"HEIDI_PROVIDER_SUMMARY_MODEL"`
	ReflectionModel string  `json:"reflection_model" env:"HEIDI_PROVIDER_REFLECTION_MODEL"`
	Temperature     float64 `json:"temperature" env:"HEIDI_PROVIDER_TEMPERATURE"`
	MaxTokens       int     `json:"max_tokens" env:"HEIDI_PROVIDER_MAX_TOKENS"`
	TimeoutSeconds  int     `json:"timeout_seconds" env:"HEIDI_PROVIDER_TIMEOUT_SECONDS"`
}

type DiscordConfig struct {
	Token string `json:"token" env:"DISCORD_BOT_TOKEN"`
	// CreatorID anchors the persona's identity: the one user the bot
	// recognizes as its creator regardless of display names.
	CreatorID string   `json:"creator_id" env:"HEIDI_DISCORD_CREATOR_ID"`
	Admins    []string `json:"admins" env:"HEIDI_DISCORD_ADMINS"`
}

type QuotaConfig struct {
	DailyLimit int `json:"daily_limit" env:"HEIDI_QUOTA_DAILY_LIMIT"`
}

type MemoryConfig struct {
	TurnCap       int `json:"turn_cap" env:"HEIDI_MEMORY_TURN_CAP"`
	RecentWindow  int `json:"recent_window" env:"HEIDI_MEMORY_RECENT_WINDOW"`
	RingCapacity  int `json:"ring_capacity" env:"HEIDI_MEMORY_RING_CAPACITY"`
	ContextHints  int `json:"context_hints" env:"HEIDI_MEMORY_CONTEXT_HINTS"`
}

type QueueConfig struct {
	InitialBackoffSeconds int `json:"initial_backoff_seconds" env:"HEIDI_QUEUE_INITIAL_BACKOFF_SECONDS"`
	MaxBackoffSeconds     int `json:"max_backoff_seconds" env:"HEIDI_QUEUE_MAX_BACKOFF_SECONDS"`
	MaxAttempts           int `json:"max_attempts" env:"HEIDI_QUEUE_MAX_ATTEMPTS"`
	ReloadSeconds         int `json:"reload_seconds" env:"HEIDI_QUEUE_RELOAD_SECONDS"`
}

type ReplyConfig struct {
	CooldownSeconds  int `json:"cooldown_seconds" env:"HEIDI_REPLY_COOLDOWN_SECONDS"`
	TypingDelayMinMS int `json:"typing_delay_min_ms" env:"HEIDI_REPLY_TYPING_DELAY_MIN_MS"`
	TypingDelayMaxMS int `json:"typing_delay_max_ms" env:"HEIDI_REPLY_TYPING_DELAY_MAX_MS"`
}

type ScheduleConfig struct {
	// Cron expressions (gronx syntax). Empty disables the job.
	SummarizeCron       string `json:"summarize_cron" env:"HEIDI_SCHEDULES_SUMMARIZE_CRON"`
	ReflectCron         string `json:"reflect_cron" env:"HEIDI_SCHEDULES_REFLECT_CRON"`
	ContextCacheMinutes int    `json:"context_cache_minutes" env:"HEIDI_SCHEDULES_CONTEXT_CACHE_MINUTES"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"HEIDI_GATEWAY_HOST"`
	Port int    `json:"port" env:"PORT"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.heidi",
		Provider: ProviderConfig{
			APIBase:         "https://openrouter.ai/api/v1",
			Model:           "tngtech/deepseek-r1t2-chimera:free",
			SummaryModel:    "deepseek/deepseek-chat-v3.1:free",
			ReflectionModel: "deepseek/deepseek-chat-v3.1:free",
			Temperature:     0.8,
			MaxTokens:       512,
			TimeoutSeconds:  60,
		},
		Discord: DiscordConfig{},
		Quota: QuotaConfig{
			DailyLimit: 500,
		},
		Memory: MemoryConfig{
			TurnCap:      500_000,
			RecentWindow: 20,
			RingCapacity: 50,
			ContextHints: 2,
		},
		Queue: QueueConfig{
			InitialBackoffSeconds: 5,
			MaxBackoffSeconds:     120,
			MaxAttempts:           5,
			ReloadSeconds:         60,
		},
		Reply: ReplyConfig{
			CooldownSeconds:  15,
			TypingDelayMinMS: 1000,
			TypingDelayMaxMS: 3000,
		},
		Schedules: ScheduleConfig{
			SummarizeCron:       "0 4 * * *",
			ReflectCron:         "30 4 * * *",
			ContextCacheMinutes: 30,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
	}
}

// LoadConfig reads the JSON config file (missing file means defaults) and
// applies environment overrides on top.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate enforces startup requirements. Missing credentials refuse to
// start rather than running degraded.
func (c *Config) Validate(requireDiscord bool) error {
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return fmt.Errorf("provider.api_key is required (or OPENROUTER_API_KEY)")
	}
	if requireDiscord && strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord.token is required (or DISCORD_BOT_TOKEN)")
	}
	return nil
}

// WorkspacePath returns the expanded workspace directory.
func (c *Config) WorkspacePath() string {
	return expandHome(c.Workspace)
}

// MemoryDBPath is the conversational store; QueueDBPath is kept separate so
// the retry queue can be wiped without touching history.
func (c *Config) MemoryDBPath() string {
	return filepath.Join(c.WorkspacePath(), "state", "memory.db")
}

func (c *Config) QueueDBPath() string {
	return filepath.Join(c.WorkspacePath(), "state", "queue.db")
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
