// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicConfig configures a PeriodicService.
type PeriodicConfig struct {
	// Name identifies the service in supervisor and log output.
	Name string

	// Interval between runs. Required.
	Interval time.Duration

	// RunOnStart runs the task once before the first tick.
	RunOnStart bool

	// Timeout bounds a single run. Zero means Interval.
	Timeout time.Duration
}

// PeriodicService runs a task on a fixed interval under supervision.
//
// Task errors are logged and the loop continues; a failing run does not
// restart the service. Used for the hot-pool warmer, the local cache sweep
// and the feedback log GC.
type PeriodicService struct {
	task   Task
	config PeriodicConfig
	logger zerolog.Logger
}

// NewPeriodicService creates a periodic service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPeriodicService(task Task, cfg PeriodicConfig, logger zerolog.Logger) (*PeriodicService, error) {
	if task == nil {
		return nil, fmt.Errorf("periodic service %s: task is required", cfg.Name)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("periodic service %s: interval must be positive", cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &PeriodicService{
		task:   task,
		config: cfg,
		logger: logger.With().Str("service", cfg.Name).Logger(),
	}, nil
}

// Serve implements the suture.Service interface.
func (s *PeriodicService) Serve(ctx context.Context) error {
	s.logger.Debug().
		Dur("interval", s.config.Interval).
		Bool("run_on_start", s.config.RunOnStart).
		Msg("periodic service starting")

	if s.config.RunOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// run performs one bounded task execution.
func (s *PeriodicService) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := s.task(runCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("periodic task failed")
		return
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("periodic task complete")
}

// String returns the service name for logging.
func (s *PeriodicService) String() string {
	return s.config.Name
}
