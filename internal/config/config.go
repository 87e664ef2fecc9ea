// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakPasswords contains default/example credentials that must be rejected.
var knownWeakPasswords = []string{
	"changeme",
	"admin",
	"password",
	"sunset123",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"CORKBOARD_DB_PATH" envDefault:"./data/corkboard.db"`
	ServerHost    string `env:"CORKBOARD_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"CORKBOARD_SERVER_PORT" envDefault:"5000"`
	Env           string `env:"CORKBOARD_ENV" envDefault:"development"`
	LogLevel      string `env:"CORKBOARD_LOG_LEVEL" envDefault:"info"`
	BoardName     string `env:"CORKBOARD_BOARD_NAME" envDefault:"Sunset Corkboard"`
	AdminUsername string `env:"CORKBOARD_ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"CORKBOARD_ADMIN_PASSWORD,required"`

	// Change feed configuration
	RedisURL    string `env:"CORKBOARD_REDIS_URL"`                                 // Optional Redis URL for cross-instance fan-out
	FeedChannel string `env:"CORKBOARD_FEED_CHANNEL" envDefault:"corkboard:pins"` // Redis pub/sub channel

	// Cache reconciliation
	ReloadInterval time.Duration `env:"CORKBOARD_RELOAD_INTERVAL" envDefault:"10m"` // Periodic full reload of the pin cache
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisFeed returns true if the Redis change-feed bridge is configured.
func (c Config) UseRedisFeed() bool {
	return c.RedisURL != ""
}

// MinAdminPasswordLength is the minimum required length for the admin password.
const MinAdminPasswordLength = 8

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.AdminPassword) < MinAdminPasswordLength {
		return nil, fmt.Errorf("CORKBOARD_ADMIN_PASSWORD must be at least %d characters long, got %d",
			MinAdminPasswordLength, len(cfg.AdminPassword))
	}

	// Reject known weak/default credentials
	for _, weak := range knownWeakPasswords {
		if strings.EqualFold(cfg.AdminPassword, weak) {
			return nil, fmt.Errorf("CORKBOARD_ADMIN_PASSWORD is a known default value and must not be used; " +
				"generate a secure password with: openssl rand -base64 16")
		}
	}

	if cfg.ReloadInterval < time.Minute {
		cfg.ReloadInterval = time.Minute
	}

	return cfg, nil
}
