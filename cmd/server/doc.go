// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package main is the entry point for the recommendcore server.

recommendcore answers recommendation requests by orchestrating remote
feature, recall and ranking services behind circuit breakers, caching the
results in a two-tier cache and degrading to hot or editorial content when
the pipeline cannot answer in time. Feedback events flow back through a
Watermill router into a badger-backed log and the hot pools.

# Application Architecture

Long-running components run under a Suture v4 supervision tree:

	RootSupervisor ("recommendcore")
	├── StorageSupervisor ("storage-layer")
	│   ├── cache-sweeper (expires local cache entries)
	│   ├── feedback-log-gc (badger value-log GC)
	│   └── exposure writer (async exposure batches)
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── feedback router (Watermill, memory or NATS JetStream)
	│   └── hot-pool-warmer
	└── APISupervisor ("api-layer")
	    └── HTTP Server (Chi router)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Cache: local LRU tier, optionally fronting Redis
 4. Circuit breakers, remote provider clients and recall strategies
 5. Experiments, fallback controller and hot-pool warmer
 6. Exposure tracking and the feedback pipeline
 7. Orchestrator and HTTP handlers
 8. Supervisor Tree

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Common environment variables:

	HTTP_PORT=8080
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console
	REDIS_ENABLED=true
	REDIS_ADDR=127.0.0.1:6379
	FEATURE_SERVICE_URL=http://features:8081
	RANKING_SERVICE_URL=http://ranking:8082
	FEEDBACK_TRANSPORT=memory    # memory or nats
	FEEDBACK_LOG_PATH=/data/feedback

Recall strategies, experiments, breaker overrides and static fallback lists
are structured and only read from the config file.

# Graceful Shutdown

SIGINT or SIGTERM cancels the root context. The supervisor stops every
service within the configured shutdown timeout, after which the feedback
transport, feedback log and cache are closed.
*/
package main
