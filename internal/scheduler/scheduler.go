// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs: reloading the pin
// cache from the database and pruning old event log entries.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/corkboard/internal/board"
)

// eventRetention is how long event log entries are kept.
const eventRetention = 90 * 24 * time.Hour

// Pruner deletes event log entries older than the cutoff.
type Pruner interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler owns the cron jobs around the board coordinator.
type Scheduler struct {
	coordinator *board.Coordinator
	pruner      Pruner
	cron        *cron.Cron
	logger      *slog.Logger
	interval    time.Duration
}

// New creates a scheduler that reloads the cache every interval.
func New(coordinator *board.Coordinator, pruner Pruner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		pruner:      pruner,
		cron:        cron.New(),
		logger:      logger,
		interval:    interval,
	}
}

// Start registers the jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.reload); err != nil {
		return err
	}

	// Prune the event log once a day.
	if _, err := s.cron.AddFunc("@daily", s.pruneEvents); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "reload_interval", s.interval, "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.coordinator.Load(ctx); err != nil {
		s.logger.Error("periodic pin reload failed", "error", err)
		return
	}
	s.logger.Debug("pin cache reloaded", "pins", len(s.coordinator.Pins()))
}

func (s *Scheduler) pruneEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.pruner.DeleteEventsBefore(ctx, time.Now().UTC().Add(-eventRetention))
	if err != nil {
		s.logger.Error("pruning event log failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned event log", "removed", n)
	}
}
