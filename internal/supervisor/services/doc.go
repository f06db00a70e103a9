// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package services provides suture.Service wrappers for recommendcore components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve

Periodic jobs (PeriodicService):
  - Runs a Task on a ticker with a per-run timeout
  - Logs task failures without restarting

Components that already implement Serve(ctx) error and fmt.Stringer
(tracking.FeedbackRouter, tracking.ExposureWriter) are added to the tree
directly.

# Example

	warm, _ := services.NewPeriodicService(warmer.Refresh, services.PeriodicConfig{
	    Name:       "hot-pool-warmer",
	    Interval:   time.Minute,
	    RunOnStart: true,
	}, logger)
	tree.AddPipelineService(warm)
*/
package services
