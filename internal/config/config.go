// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	BackendBaseURL string
	BackendSession string
	DatabaseURL    string // Postgres; empty means local SQLite
	DBPath         string
	GeminiAPIKey   string
	DraftSource    string // "backend" delegates to the AI service, "gemini" calls Gemini directly

	TelegramBotToken string
	TelegramChatID   string

	RefreshInterval time.Duration
	OverviewTimeout time.Duration
	MediaLimit      int
	CommentsLimit   int
	ExcludeSeen     bool

	AutoImage AutoImageConfig
}

// AutoImageConfig controls the comment-triggered image generation.
type AutoImageConfig struct {
	Enabled     bool
	RetryFailed bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8000"),
		BackendSession: getEnv("BACKEND_SESSION", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/selfstar.db"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		DraftSource:    getEnv("DRAFT_SOURCE", "backend"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 10*time.Minute),
		OverviewTimeout: getEnvDuration("OVERVIEW_TIMEOUT", 10*time.Second),
		MediaLimit:      getEnvInt("MEDIA_LIMIT", 5),
		CommentsLimit:   getEnvInt("COMMENTS_LIMIT", 50),
		ExcludeSeen:     getEnvBool("EXCLUDE_SEEN", true),

		AutoImage: AutoImageConfig{
			Enabled:     getEnvBool("AUTO_IMAGE_COMMENTS", true),
			RetryFailed: getEnvBool("AUTO_IMAGE_RETRY_FAILED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.BackendBaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL cannot be empty")
	}
	if c.DatabaseURL == "" && c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when DATABASE_URL is unset")
	}
	if c.MediaLimit <= 0 {
		return fmt.Errorf("MEDIA_LIMIT must be > 0")
	}
	if c.CommentsLimit <= 0 {
		return fmt.Errorf("COMMENTS_LIMIT must be > 0")
	}
	if c.OverviewTimeout <= 0 {
		return fmt.Errorf("OVERVIEW_TIMEOUT must be > 0")
	}
	switch c.DraftSource {
	case "backend", "gemini":
	default:
		return fmt.Errorf("DRAFT_SOURCE must be \"backend\" or \"gemini\"")
	}
	if c.DraftSource == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when DRAFT_SOURCE=gemini")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
