// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/recommendcore/internal/config"
	"github.com/tomtom215/recommendcore/internal/logging"
	"github.com/tomtom215/recommendcore/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.Logging())
	logger := logging.WithComponent("main")

	logger.Info().
		Str("environment", cfg.Server.Environment).
		Bool("redis", cfg.Redis.Enabled).
		Str("feedback_transport", cfg.Feedback.Transport.Driver).
		Int("recall_strategies", len(cfg.Recall.Strategies)).
		Int("experiments", len(cfg.Experiments)).
		Msg("Starting recommendcore with supervisor tree")

	if cfg.API.RateLimitDisabled {
		logger.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logger.Warn().Msg("CORS is configured with a wildcard origin in production; set CORS_ORIGINS to explicit origins")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize components")
		os.Exit(1)
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig(cfg.Supervisor))
	if err != nil {
		a.close()
		logger.Error().Err(err).Msg("Failed to create supervisor tree")
		os.Exit(1)
	}
	if err := a.addServices(tree); err != nil {
		a.close()
		logger.Error().Err(err).Msg("Failed to add services")
		os.Exit(1)
	}

	logger.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// ServeBackground delivers exactly one value, when the root supervisor returns.
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
		err = <-errCh
	case err = <-errCh:
		stop()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Supervisor tree error")
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logger.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logger.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	// The router and exposure writer have stopped; release the transport,
	// feedback log and cache they were using.
	a.close()
	logger.Info().Msg("Application stopped gracefully")
}
