// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/api"
	"github.com/tomtom215/recommendcore/internal/breaker"
	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/config"
	"github.com/tomtom215/recommendcore/internal/experiment"
	"github.com/tomtom215/recommendcore/internal/fallback"
	"github.com/tomtom215/recommendcore/internal/logging"
	"github.com/tomtom215/recommendcore/internal/providers"
	"github.com/tomtom215/recommendcore/internal/recall"
	"github.com/tomtom215/recommendcore/internal/recommend"
	"github.com/tomtom215/recommendcore/internal/supervisor"
	"github.com/tomtom215/recommendcore/internal/supervisor/services"
	"github.com/tomtom215/recommendcore/internal/tracking"
)

// app holds every long-lived component built from the configuration.
// Components with a Serve loop are handed to the supervisor tree by
// addServices; the rest are closed by close after the tree stops.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	cache        *cache.TieredStore
	breakers     *breaker.Registry
	assigner     *experiment.Assigner
	warmer       *fallback.Warmer
	exposures    *tracking.ExposureWriter
	transport    *tracking.Transport
	feedbackLog  *tracking.FeedbackLog
	router       *tracking.FeedbackRouter
	orchestrator *recommend.Orchestrator
	server       *http.Server
}

// buildApp wires the recommendation pipeline. On error everything opened
// so far is closed again.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err := a.buildCache(ctx); err != nil {
		return nil, err
	}

	defaults, overrides := cfg.Breaker.Registry()
	a.breakers = breaker.NewRegistry(defaults, overrides, logging.WithComponent("breaker"))

	features, err := providers.NewFeatureClient(cfg.Providers.Features)
	if err != nil {
		return nil, fmt.Errorf("feature client: %w", err)
	}
	ranking, err := providers.NewRankingClient(cfg.Providers.Ranking)
	if err != nil {
		return nil, fmt.Errorf("ranking client: %w", err)
	}

	strategies, err := buildRecallStrategies(cfg.Recall, a.cache)
	if err != nil {
		return nil, err
	}
	merger, err := recall.NewMerger(strategies, logging.WithComponent("recall"))
	if err != nil {
		return nil, fmt.Errorf("recall merger: %w", err)
	}

	a.assigner, err = experiment.NewAssigner(cfg.Experiments)
	if err != nil {
		return nil, fmt.Errorf("experiments: %w", err)
	}

	controller := fallback.NewController(fallback.NewCacheHotSource(a.cache), cfg.Fallback.Controller(), logging.WithComponent("fallback"))
	var upstream fallback.HotSource
	if cfg.Fallback.HotService.BaseURL != "" {
		hot, err := providers.NewHotContentClient(cfg.Fallback.HotService)
		if err != nil {
			return nil, fmt.Errorf("hot content client: %w", err)
		}
		upstream = hot
	}
	a.warmer = fallback.NewWarmer(a.cache, upstream, cfg.Fallback.Warmer(), logging.WithComponent("warmer"))

	tracker := tracking.NewExposureTracker(a.cache, cfg.Exposure.Window)
	a.exposures = tracking.NewExposureWriter(tracker, cfg.Exposure.QueueSize, cfg.Exposure.WriteTimeout, logging.WithComponent("exposure"))

	a.orchestrator, err = recommend.NewOrchestrator(&cfg.Recommend, recommend.Dependencies{
		Cache:     a.cache,
		Features:  features,
		Recall:    merger,
		Ranking:   ranking,
		Fallback:  controller,
		Breakers:  a.breakers,
		Exposures: tracker,
		Writer:    a.exposures,
		Assigner:  a.assigner,
	}, logging.WithComponent("orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	if err := a.buildFeedback(ctx, tracker); err != nil {
		return nil, err
	}

	a.buildServer()
	return a, nil
}

func (a *app) buildCache(ctx context.Context) error {
	local := cache.NewLocalStore(a.cfg.Cache.L1MaxEntries)

	var shared cache.Store
	if a.cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisStore(ctx, a.cfg.Redis.Options())
		if err != nil {
			_ = local.Close()
			return fmt.Errorf("redis: %w", err)
		}
		shared = redisStore
		a.logger.Info().Str("addr", a.cfg.Redis.Addr).Msg("Redis cache tier connected")
	} else {
		a.logger.Warn().Msg("Redis disabled, running on the local cache tier only")
	}

	a.cache = cache.NewTieredStore(local, shared, a.cfg.Cache.Tiered(), logging.WithComponent("cache"))
	return nil
}

func (a *app) buildFeedback(ctx context.Context, tracker *tracking.ExposureTracker) error {
	wmLogger := logging.NewWatermillLogger(logging.WithComponent("watermill"))

	transport, err := tracking.NewTransport(ctx, a.cfg.Feedback.Transport, wmLogger)
	if err != nil {
		return fmt.Errorf("feedback transport: %w", err)
	}
	a.transport = transport

	a.feedbackLog, err = tracking.OpenFeedbackLog(a.cfg.Feedback.Log)
	if err != nil {
		return fmt.Errorf("feedback log: %w", err)
	}

	consumer := tracking.NewFeedbackConsumer(a.feedbackLog, a.cache, tracker, logging.WithComponent("feedback-consumer"))
	consumer.SetInvalidator(a.orchestrator)

	poison := transport.Publisher
	if a.cfg.Feedback.Router.PoisonQueueTopic == "" {
		poison = nil
	}
	a.router, err = tracking.NewFeedbackRouter(a.cfg.Feedback.Router, transport.Subscriber, poison, consumer, wmLogger)
	if err != nil {
		return fmt.Errorf("feedback router: %w", err)
	}

	a.logger.Info().
		Str("driver", a.cfg.Feedback.Transport.Driver).
		Bool("log_in_memory", a.cfg.Feedback.Log.InMemory).
		Msg("Feedback pipeline initialized")
	return nil
}

func (a *app) buildServer() {
	handler := api.NewHandler(api.HandlerDeps{
		Recommender: a.orchestrator,
		Feedback:    tracking.NewFeedbackRecorder(a.transport.Publisher, logging.WithComponent("feedback")),
		FeedbackLog: a.feedbackLog,
		Breakers:    a.breakers,
		Experiments: a.assigner,
		Ready: map[string]api.Pinger{
			"cache": a.cache,
		},
	}, a.cfg.API)

	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFromAPI(a.cfg.API))
	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:      api.NewRouter(handler, mw).SetupChi(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}
}

// buildRecallStrategies turns the configured strategies into weighted
// merger inputs.
func buildRecallStrategies(cfg config.RecallConfig, store cache.Store) ([]recall.WeightedStrategy, error) {
	out := make([]recall.WeightedStrategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		var strategy recall.Strategy
		switch sc.Type {
		case config.StrategyPool:
			strategy = recall.NewPoolStrategy(sc.Name, store, sc.KeyPrefix)
		case config.StrategyPreference:
			strategy = recall.NewPreferenceStrategy(sc.Name, store, sc.KeyPrefix)
		case config.StrategyHTTP:
			client, err := providers.NewRecallClient(sc.Name, providers.ClientConfig{BaseURL: sc.URL, Timeout: sc.Timeout})
			if err != nil {
				return nil, fmt.Errorf("recall strategy %s: %w", sc.Name, err)
			}
			strategy = client
		default:
			return nil, fmt.Errorf("recall strategy %s: unknown type %q", sc.Name, sc.Type)
		}
		out = append(out, recall.WeightedStrategy{Strategy: strategy, Weight: sc.Weight, Timeout: sc.Timeout})
	}
	return out, nil
}

// addServices registers the supervised components on their layers.
func (a *app) addServices(tree *supervisor.SupervisorTree) error {
	sweeper, err := services.NewPeriodicService(func(context.Context) error {
		if n := a.cache.Sweep(); n > 0 {
			a.logger.Debug().Int("removed", n).Msg("Swept expired local cache entries")
		}
		return nil
	}, services.PeriodicConfig{Name: "cache-sweeper", Interval: a.cfg.Cache.SweepInterval}, a.logger)
	if err != nil {
		return err
	}

	gc, err := services.NewPeriodicService(func(context.Context) error {
		return a.feedbackLog.RunGC()
	}, services.PeriodicConfig{Name: "feedback-log-gc", Interval: a.cfg.Feedback.GCInterval}, a.logger)
	if err != nil {
		return err
	}

	warm, err := services.NewPeriodicService(a.warmer.Refresh, services.PeriodicConfig{
		Name:       "hot-pool-warmer",
		Interval:   a.cfg.Fallback.WarmInterval,
		RunOnStart: true,
		Timeout:    a.cfg.Fallback.WarmInterval / 2,
	}, a.logger)
	if err != nil {
		return err
	}

	tree.AddStorageService(sweeper)
	tree.AddStorageService(gc)
	tree.AddStorageService(a.exposures)

	tree.AddPipelineService(a.router)
	tree.AddPipelineService(warm)

	tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Server.ShutdownTimeout, a.logger))

	a.logger.Info().Str("addr", a.server.Addr).Msg("Services added to supervisor tree")
	return nil
}

// close releases what the supervisor does not own. Safe on a partially
// built app.
func (a *app) close() {
	var errs []error
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	if a.feedbackLog != nil {
		errs = append(errs, a.feedbackLog.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error().Err(err).Msg("Error closing components")
	}
}

// treeConfig maps the supervisor section; zero fields take suture defaults.
func treeConfig(cfg config.SupervisorConfig) supervisor.TreeConfig {
	return supervisor.TreeConfig{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		ShutdownTimeout:  cfg.ShutdownTimeout,
	}
}
