// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package supervisor provides process supervision for recommendcore using suture v4.

The supervisor tree organizes long-running services into three layers:

	RootSupervisor ("recommendcore")
	├── StorageSupervisor ("storage-layer")
	│   ├── cache-sweeper         (PeriodicService, local cache expiry)
	│   ├── ExposureWriter        (async exposure batches)
	│   └── feedback-log-gc       (PeriodicService, badger value-log GC)
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── FeedbackRouter        (watermill router over the feedback topic)
	│   └── hot-pool-warmer       (PeriodicService, fallback pools)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's backoff. Failure counts are kept per
layer, so a crash-looping feedback router does not touch the HTTP server.

Events (service failures, backoff, restarts) are logged through
sutureslog into the slog adapter of the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, timeout, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

	if report, _ := tree.UnstoppedServiceReport(); len(report) > 0 {
	    // services that ignored cancellation past ShutdownTimeout
	}
*/
package supervisor
