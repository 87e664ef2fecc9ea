// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/corkboard/internal/board"
	"github.com/olegiv/corkboard/internal/config"
	"github.com/olegiv/corkboard/internal/feed"
	"github.com/olegiv/corkboard/internal/handler"
	"github.com/olegiv/corkboard/internal/logging"
	"github.com/olegiv/corkboard/internal/middleware"
	"github.com/olegiv/corkboard/internal/scheduler"
	"github.com/olegiv/corkboard/internal/session"
	"github.com/olegiv/corkboard/internal/store"
	"github.com/olegiv/corkboard/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "corkboard - community pin board\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CORKBOARD_ADMIN_PASSWORD  Admin password (required, min 8 chars)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CORKBOARD_ADMIN_USERNAME  Admin username (default: admin)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CORKBOARD_DB_PATH         SQLite database path (default: ./data/corkboard.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CORKBOARD_SERVER_PORT     Server port (default: 5000)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CORKBOARD_ENV             Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CORKBOARD_REDIS_URL       Redis URL for multi-instance feed fan-out (optional)\n")
	}

	flag.Parse()

	if *showVersion {
		_, _ = fmt.Printf("corkboard %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	queries := store.New(db)

	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	// Feed plumbing: in-process broker, plus a Redis bridge when
	// another instance might be writing the same database.
	broker := feed.NewBroker()
	coordinator := board.New(queries, broker, logger)

	var bridge *feed.RedisBridge
	if cfg.UseRedisFeed() {
		bridge, err = feed.NewRedisBridge(cfg.RedisURL, cfg.FeedChannel, coordinator.Origin(), broker, logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		coordinator.SetRemote(bridge)
		bridge.Start()
		defer func() {
			if err := bridge.Stop(); err != nil {
				slog.Error("stopping redis bridge", "error", err)
			}
		}()
		slog.Info("redis feed bridge connected", "channel", cfg.FeedChannel)
	}

	// Initial cache load, with retries inside.
	ctx := context.Background()
	if err := coordinator.Load(ctx); err != nil {
		return fmt.Errorf("loading pins: %w", err)
	}
	slog.Info("pin cache loaded", "pins", len(coordinator.Pins()))

	// Fold events from other instances into the cache.
	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer cancelFeed()
	go coordinator.Run(feedCtx)

	sched := scheduler.New(coordinator, queries, cfg.ReloadInterval, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Template renderer over the embedded templates
	renderer, err := handler.NewRenderer(web.Templates, cfg.BoardName, logger)
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	loginProtection := middleware.NewLoginProtection(0.5, 5, 5, 15*time.Minute)
	apiRateLimiter := middleware.NewRateLimiter(10.0, 20)

	pinHandler := handler.NewPinHandler(coordinator, sessionManager, cfg, logger)
	pageHandler := handler.NewPageHandler(coordinator, renderer)
	feedHandler := handler.NewFeedHandler(broker, logger)
	adminHandler := handler.NewAdminHandler(coordinator, queries, renderer, logger)
	authHandler, err := handler.NewAuthHandler(cfg, queries, renderer, sessionManager, loginProtection, logger)
	if err != nil {
		return fmt.Errorf("initializing auth handler: %w", err)
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(sessionManager.LoadAndSave)

	r.NotFound(pageHandler.NotFound)

	// Static assets
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Request timeout everywhere except the SSE feed, which must stay open.
	timeout := middleware.Timeout(30 * time.Second)

	// Public pages
	r.With(timeout).Get("/", pageHandler.Board)
	r.With(timeout).Get("/setup", pageHandler.Setup)

	// Auth routes
	r.Group(func(r chi.Router) {
		r.Use(timeout)
		r.Get("/login", authHandler.LoginForm)
		r.With(loginProtection.Middleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.With(timeout).Get("/config", pinHandler.Config)
		r.Get("/feed", feedHandler.Stream)
		r.Route("/pins", func(r chi.Router) {
			r.Use(timeout)
			r.Get("/", pinHandler.List)
			r.Post("/", pinHandler.Create)
			r.Get("/stats", pinHandler.Stats)
			r.Put("/{id}", pinHandler.Update)
			r.Delete("/{id}", pinHandler.Delete)
		})
	})

	// Admin routes (session-protected; the coordinator checks again)
	r.Route("/admin", func(r chi.Router) {
		r.Use(timeout)
		r.Use(middleware.RequireAdmin(sessionManager))
		r.Get("/", adminHandler.Dashboard)
		r.Get("/events", adminHandler.Events)
		r.Post("/pins/delete", adminHandler.DeletePins)
		r.Post("/pins/delete-all", adminHandler.DeleteAllPins)
	})

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", appVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
