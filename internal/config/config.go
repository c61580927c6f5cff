// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64
	CheckInterval    time.Duration
	Location         *time.Location
	NotifyRate       float64
}

// Load reads configuration for the bot. TELEGRAM_BOT_TOKEN is required.
func Load() (*Config, error) {
	cfg, err := LoadCLI()
	if err != nil {
		return nil, err
	}
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return cfg, nil
}

// LoadCLI reads configuration for local tools, where the token is optional.
func LoadCLI() (*Config, error) {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabasePath:     envOr("DATABASE_PATH", "./data/expiry.db"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		CheckInterval:    time.Hour,
		Location:         time.Local,
		NotifyRate:       20,
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	if raw := os.Getenv("CHECK_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CHECK_INTERVAL %q: %w", raw, err)
		}
		if d < time.Minute {
			return nil, fmt.Errorf("CHECK_INTERVAL must be at least 1m, got %s", d)
		}
		cfg.CheckInterval = d
	}

	if raw := os.Getenv("TIMEZONE"); raw != "" {
		loc, err := time.LoadLocation(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", raw, err)
		}
		cfg.Location = loc
	}

	if raw := os.Getenv("NOTIFY_RATE"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			return nil, fmt.Errorf("NOTIFY_RATE must be a positive number, got %q", raw)
		}
		cfg.NotifyRate = r
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
