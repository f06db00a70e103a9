// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package config loads and validates recommendcore configuration.

Configuration is layered with koanf v2:

 1. Built-in defaults (defaultConfig, loaded through the structs provider)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml or /etc/recommendcore/config.yaml
 3. Environment variables, for the keys listed in envTransformFunc only

Sections owned by one package reuse that package's type, so the keys for
the pipeline live in recommend.Config and the feedback transport keys live
in tracking.TransportConfig.

# Example File

	server:
	  port: 8080
	recommend:
	  overall_timeout: 420ms
	  dedup_content_types: [article, video]
	breaker:
	  min_requests: 10
	  failure_ratio: 0.5
	  overrides:
	    ranking-service:
	      min_requests: 5
	      failure_ratio: 0.3
	      window: 10s
	      bucket_period: 1s
	      cool_down: 5s
	      half_open_max_calls: 1
	recall:
	  strategies:
	    - {name: trending, type: pool, key_prefix: "trending:", weight: 0.6}
	    - {name: collab, type: http, url: "http://recall:9000", weight: 0.4, timeout: 150ms}
	feedback:
	  transport:
	    driver: nats
	    nats:
	      url: nats://nats:4222

# Common Environment Variables

  - HTTP_PORT, ENVIRONMENT, LOG_LEVEL, LOG_FORMAT
  - REDIS_ENABLED, REDIS_ADDR, REDIS_PASSWORD
  - FEATURE_SERVICE_URL, RANKING_SERVICE_URL, HOT_SERVICE_URL
  - RECOMMEND_OVERALL_TIMEOUT, RECOMMEND_DEDUP_CONTENT_TYPES (comma-separated)
  - FEEDBACK_TRANSPORT (memory or nats), NATS_URL, NATS_EMBEDDED
  - FEEDBACK_LOG_PATH, FEEDBACK_LOG_RETENTION

Recall strategies, experiments, breaker overrides and static fallback lists
are structured and can only be set from the file.

# Thread Safety

A loaded Config is not mutated afterwards and is safe for concurrent reads.
*/
package config
