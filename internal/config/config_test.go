// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Clear environment and set only required var
	os.Clearenv()
	setEnv(t, "CORKBOARD_ADMIN_PASSWORD", "s3cret-board-pass!")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Check defaults
	if cfg.DBPath != "./data/corkboard.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/corkboard.db")
	}
	if cfg.ServerHost != "localhost" {
		t.Errorf("ServerHost = %q, want %q", cfg.ServerHost, "localhost")
	}
	if cfg.ServerPort != 5000 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 5000)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
	if cfg.AdminUsername != "admin" {
		t.Errorf("AdminUsername = %q, want %q", cfg.AdminUsername, "admin")
	}
	if cfg.ReloadInterval != 10*time.Minute {
		t.Errorf("ReloadInterval = %v, want %v", cfg.ReloadInterval, 10*time.Minute)
	}
	if cfg.UseRedisFeed() {
		t.Error("UseRedisFeed() = true without CORKBOARD_REDIS_URL")
	}
}

func TestLoad_MissingPassword(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded without CORKBOARD_ADMIN_PASSWORD")
	}
}

func TestLoad_WeakPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"too short", "short"},
		{"known default", "changeme"},
		{"known default upper", "CHANGEME"},
		{"common password padded", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			setEnv(t, "CORKBOARD_ADMIN_PASSWORD", tt.password)

			if _, err := Load(); err == nil {
				t.Errorf("Load() accepted weak password %q", tt.password)
			}
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	setEnv(t, "CORKBOARD_ADMIN_PASSWORD", "s3cret-board-pass!")
	setEnv(t, "CORKBOARD_DB_PATH", "/custom/board.db")
	setEnv(t, "CORKBOARD_SERVER_HOST", "0.0.0.0")
	setEnv(t, "CORKBOARD_SERVER_PORT", "9090")
	setEnv(t, "CORKBOARD_REDIS_URL", "redis://localhost:6379/0")
	setEnv(t, "CORKBOARD_RELOAD_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "/custom/board.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/custom/board.db")
	}
	if got := cfg.ServerAddr(); got != "0.0.0.0:9090" {
		t.Errorf("ServerAddr() = %q, want %q", got, "0.0.0.0:9090")
	}
	if !cfg.UseRedisFeed() {
		t.Error("UseRedisFeed() = false with CORKBOARD_REDIS_URL set")
	}
	// Sub-minute reload intervals are clamped to one minute
	if cfg.ReloadInterval != time.Minute {
		t.Errorf("ReloadInterval = %v, want %v", cfg.ReloadInterval, time.Minute)
	}
}
