// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/recommendcore/internal/breaker"
	"github.com/tomtom215/recommendcore/internal/experiment"
	"github.com/tomtom215/recommendcore/internal/providers"
	"github.com/tomtom215/recommendcore/internal/recommend"
	"github.com/tomtom215/recommendcore/internal/tracking"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/recommendcore/config.yaml",
	"/etc/recommendcore/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	bs := breaker.DefaultSettings()

	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		API: APIConfig{
			DefaultSize:     10,
			MaxSize:         200,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			L1MaxEntries:  50000,
			L1TTL:         time.Minute,
			LookupTimeout: 25 * time.Millisecond,
			SweepInterval: time.Minute,
		},
		Redis: RedisConfig{
			Enabled:      true,
			Addr:         "127.0.0.1:6379",
			DB:           0,
			PoolSize:     64,
			DialTimeout:  time.Second,
			ReadTimeout:  50 * time.Millisecond,
			WriteTimeout: 50 * time.Millisecond,
			KeyPrefix:    "rc:",
		},
		Breaker: BreakerConfig{
			MinRequests:      bs.MinRequests,
			FailureRatio:     bs.FailureRatio,
			Window:           bs.Window,
			BucketPeriod:     bs.BucketPeriod,
			CoolDown:         bs.CoolDown,
			HalfOpenMaxCalls: bs.HalfOpenMaxCalls,
			Overrides:        map[string]BreakerSettings{},
		},
		Recommend: *recommend.DefaultConfig(),
		Recall: RecallConfig{
			Strategies: []RecallStrategyConfig{
				{Name: "trending", Type: StrategyPool, KeyPrefix: "trending:", Weight: 0.6, Timeout: 150 * time.Millisecond},
				{Name: "preference", Type: StrategyPreference, KeyPrefix: "tag:", Weight: 0.4, Timeout: 150 * time.Millisecond},
			},
		},
		Providers: ProvidersConfig{
			Features: providers.ClientConfig{BaseURL: "http://127.0.0.1:8081", Timeout: 100 * time.Millisecond},
			Ranking:  providers.ClientConfig{BaseURL: "http://127.0.0.1:8082", Timeout: 150 * time.Millisecond},
		},
		Experiments: []experiment.Experiment{
			{
				Name:             "ranking_model",
				Enabled:          false, // Everyone on control until explicitly enabled
				SplitPercentage:  10,
				ControlVariant:   "ranking_v1",
				TreatmentVariant: "ranking_v2",
			},
		},
		Fallback: FallbackConfig{
			HotTimeout:   50 * time.Millisecond,
			Static:       map[string][]string{},
			WarmInterval: time.Minute,
			PoolSize:     200,
			PoolTTL:      0, // Pools are long-lived; feedback keeps them current
		},
		Exposure: ExposureConfig{
			Window:       tracking.DefaultExposureWindow,
			QueueSize:    4096,
			WriteTimeout: 200 * time.Millisecond,
		},
		Feedback: FeedbackConfig{
			Transport:  tracking.DefaultTransportConfig(),
			Router:     tracking.DefaultRouterConfig(),
			Log:        tracking.DefaultFeedbackLogConfig(),
			GCInterval: 10 * time.Minute,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
//
// Loading order (later sources override earlier):
//  1. Built-in defaults
//  2. Config file (if found)
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Step 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Step 2: Load config file if it exists
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Step 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Step 4: Process comma-separated slice fields from env vars
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default locations.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths that should be treated as comma-separated slices
var sliceConfigPaths = []string{
	"api.cors_origins",
	"recommend.dedup_content_types",
}

// processSliceFields converts comma-separated string values to slices.
// Environment variables can only carry strings, so CORS_ORIGINS="a,b"
// has to be split here.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Only the variables listed here are read.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_port":             "server.port",
		"http_host":             "server.host",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",
		"environment":           "server.environment",

		// API
		"api_default_size":    "api.default_size",
		"api_max_size":        "api.max_size",
		"cors_origins":        "api.cors_origins",
		"rate_limit_requests": "api.rate_limit_reqs",
		"rate_limit_window":   "api.rate_limit_window",
		"disable_rate_limit":  "api.rate_limit_disabled",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Cache
		"cache_l1_max_entries": "cache.l1_max_entries",
		"cache_l1_ttl":         "cache.l1_ttl",
		"cache_lookup_timeout": "cache.lookup_timeout",

		// Redis
		"redis_enabled":    "redis.enabled",
		"redis_addr":       "redis.addr",
		"redis_password":   "redis.password",
		"redis_db":         "redis.db",
		"redis_pool_size":  "redis.pool_size",
		"redis_key_prefix": "redis.key_prefix",

		// Breaker defaults
		"breaker_min_requests":  "breaker.min_requests",
		"breaker_failure_ratio": "breaker.failure_ratio",
		"breaker_window":        "breaker.window",
		"breaker_cool_down":     "breaker.cool_down",

		// Recommend pipeline
		"recommend_overall_timeout":     "recommend.overall_timeout",
		"recommend_feature_timeout":     "recommend.feature_timeout",
		"recommend_recall_timeout":      "recommend.recall_timeout",
		"recommend_ranking_timeout":     "recommend.ranking_timeout",
		"recommend_over_fetch_factor":   "recommend.over_fetch_factor",
		"recommend_response_ttl":        "recommend.response_ttl",
		"recommend_degraded_ttl":        "recommend.degraded_ttl",
		"recommend_dedup_content_types": "recommend.dedup_content_types",
		"recommend_pad_from_hot":        "recommend.pad_from_hot",
		"recommend_default_variant":     "recommend.default_variant",

		// Remote providers
		"feature_service_url":     "providers.features.url",
		"feature_service_timeout": "providers.features.timeout",
		"ranking_service_url":     "providers.ranking.url",
		"ranking_service_timeout": "providers.ranking.timeout",
		"hot_service_url":         "fallback.hot_service.url",

		// Fallback
		"fallback_warm_interval": "fallback.warm_interval",
		"fallback_pool_size":     "fallback.pool_size",

		// Exposure
		"exposure_window":     "exposure.window",
		"exposure_queue_size": "exposure.queue_size",

		// Feedback transport
		"feedback_transport":       "feedback.transport.driver",
		"nats_url":                 "feedback.transport.nats.url",
		"nats_embedded":            "feedback.transport.nats.embedded",
		"nats_store_dir":           "feedback.transport.nats.store_dir",
		"nats_stream_name":         "feedback.transport.nats.stream_name",
		"nats_subscribers":         "feedback.transport.nats.subscribers_count",
		"nats_durable_name":        "feedback.transport.nats.durable_name",
		"nats_queue_group":         "feedback.transport.nats.queue_group",
		"feedback_retry_count":     "feedback.router.retry_max_retries",
		"feedback_throttle":        "feedback.router.throttle_per_second",
		"feedback_poison_topic":    "feedback.router.poison_queue_topic",
		"feedback_log_path":        "feedback.log.path",
		"feedback_log_in_memory":   "feedback.log.in_memory",
		"feedback_log_retention":   "feedback.log.retention",
		"feedback_log_gc_interval": "feedback.gc_interval",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
