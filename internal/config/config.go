// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package config

import (
	"time"

	"github.com/tomtom215/recommendcore/internal/breaker"
	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/experiment"
	"github.com/tomtom215/recommendcore/internal/fallback"
	"github.com/tomtom215/recommendcore/internal/logging"
	"github.com/tomtom215/recommendcore/internal/models"
	"github.com/tomtom215/recommendcore/internal/providers"
	"github.com/tomtom215/recommendcore/internal/recommend"
	"github.com/tomtom215/recommendcore/internal/tracking"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (CONFIG_PATH or config.yaml)
//  3. Environment Variables: explicitly mapped keys only
//
// Sections that belong to a single package reuse that package's config type
// (recommend.Config, tracking.RouterConfig, ...) so the koanf keys are
// declared next to the code that reads them.
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server      ServerConfig            `koanf:"server"`
	API         APIConfig               `koanf:"api"`
	Logging     LoggingConfig           `koanf:"logging"`
	Cache       CacheConfig             `koanf:"cache"`
	Redis       RedisConfig             `koanf:"redis"`
	Breaker     BreakerConfig           `koanf:"breaker"`
	Recommend   recommend.Config        `koanf:"recommend"`
	Recall      RecallConfig            `koanf:"recall"`
	Providers   ProvidersConfig         `koanf:"providers"`
	Experiments []experiment.Experiment `koanf:"experiments"`
	Fallback    FallbackConfig          `koanf:"fallback"`
	Exposure    ExposureConfig          `koanf:"exposure"`
	Feedback    FeedbackConfig          `koanf:"feedback"`
	Supervisor  SupervisorConfig        `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // "development", "staging", "production"
}

// APIConfig holds request limits and cross-cutting HTTP middleware settings.
type APIConfig struct {
	DefaultSize int `koanf:"default_size"`
	MaxSize     int `koanf:"max_size"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Logging returns the logging package configuration.
func (c LoggingConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Caller = c.Caller
	return cfg
}

// CacheConfig configures the process-local tier and how it fronts Redis.
type CacheConfig struct {
	// L1MaxEntries bounds the local LRU.
	L1MaxEntries int `koanf:"l1_max_entries"`
	// L1TTL caps how long a value stays in the local tier.
	L1TTL time.Duration `koanf:"l1_ttl"`
	// LookupTimeout bounds each Redis call made on an L1 miss.
	LookupTimeout time.Duration `koanf:"lookup_timeout"`
	// SweepInterval is how often expired local entries are purged.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// Tiered returns the cache.TieredStore configuration.
func (c CacheConfig) Tiered() cache.TieredConfig {
	return cache.TieredConfig{L1TTL: c.L1TTL, LookupTimeout: c.LookupTimeout}
}

// RedisConfig configures the shared cache tier. With Enabled=false the
// service runs on the local tier alone, which is only sensible for a single
// instance.
type RedisConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	KeyPrefix    string        `koanf:"key_prefix"`
}

// Options returns the cache.RedisStore options.
func (c RedisConfig) Options() cache.RedisOptions {
	return cache.RedisOptions{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		KeyPrefix:    c.KeyPrefix,
	}
}

// BreakerSettings mirrors breaker.Settings with koanf keys.
type BreakerSettings struct {
	MinRequests      uint32        `koanf:"min_requests"`
	FailureRatio     float64       `koanf:"failure_ratio"`
	Window           time.Duration `koanf:"window"`
	BucketPeriod     time.Duration `koanf:"bucket_period"`
	CoolDown         time.Duration `koanf:"cool_down"`
	HalfOpenMaxCalls uint32        `koanf:"half_open_max_calls"`
}

// Settings converts to breaker.Settings.
func (s BreakerSettings) Settings() breaker.Settings {
	return breaker.Settings{
		MinRequests:      s.MinRequests,
		FailureRatio:     s.FailureRatio,
		Window:           s.Window,
		BucketPeriod:     s.BucketPeriod,
		CoolDown:         s.CoolDown,
		HalfOpenMaxCalls: s.HalfOpenMaxCalls,
	}
}

// BreakerConfig holds the default breaker settings plus per-dependency
// overrides keyed by breaker name ("feature-service", "recall-service",
// "ranking-service").
type BreakerConfig struct {
	MinRequests      uint32        `koanf:"min_requests"`
	FailureRatio     float64       `koanf:"failure_ratio"`
	Window           time.Duration `koanf:"window"`
	BucketPeriod     time.Duration `koanf:"bucket_period"`
	CoolDown         time.Duration `koanf:"cool_down"`
	HalfOpenMaxCalls uint32        `koanf:"half_open_max_calls"`

	Overrides map[string]BreakerSettings `koanf:"overrides"`
}

// Defaults returns the settings used by breakers without an override.
func (c BreakerConfig) Defaults() breaker.Settings {
	return BreakerSettings{
		MinRequests:      c.MinRequests,
		FailureRatio:     c.FailureRatio,
		Window:           c.Window,
		BucketPeriod:     c.BucketPeriod,
		CoolDown:         c.CoolDown,
		HalfOpenMaxCalls: c.HalfOpenMaxCalls,
	}.Settings()
}

// Registry builds the breaker registry arguments.
func (c BreakerConfig) Registry() (breaker.Settings, map[string]breaker.Settings) {
	overrides := make(map[string]breaker.Settings, len(c.Overrides))
	for name, s := range c.Overrides {
		overrides[name] = s.Settings()
	}
	return c.Defaults(), overrides
}

// Recall strategy types.
const (
	StrategyPool       = "pool"
	StrategyPreference = "preference"
	StrategyHTTP       = "http"
)

// RecallStrategyConfig configures one recall strategy.
//
// "pool" reads the sorted set key_prefix+content_type, "preference" reads
// key_prefix+preference+":"+content_type per user preference, and "http"
// calls a remote recall service at url.
type RecallStrategyConfig struct {
	Name      string        `koanf:"name"`
	Type      string        `koanf:"type"`
	KeyPrefix string        `koanf:"key_prefix"`
	URL       string        `koanf:"url"`
	Weight    float64       `koanf:"weight"`
	Timeout   time.Duration `koanf:"timeout"`
}

// RecallConfig lists the recall strategies merged for every request.
type RecallConfig struct {
	Strategies []RecallStrategyConfig `koanf:"strategies"`
}

// ProvidersConfig holds the remote feature and ranking services.
type ProvidersConfig struct {
	Features providers.ClientConfig `koanf:"features"`
	Ranking  providers.ClientConfig `koanf:"ranking"`
}

// FallbackConfig configures the fallback controller and the hot-pool warmer.
type FallbackConfig struct {
	HotTimeout time.Duration `koanf:"hot_timeout"`

	// Static lists editorial content IDs per content type, best first.
	// The "mixed" entry covers types without their own list.
	Static map[string][]string `koanf:"static"`

	WarmInterval time.Duration `koanf:"warm_interval"`
	PoolSize     int           `koanf:"pool_size"`
	PoolTTL      time.Duration `koanf:"pool_ttl"`

	// HotService optionally points at an upstream popularity feed merged
	// into the hot pools on every warm cycle. Empty URL disables it.
	HotService providers.ClientConfig `koanf:"hot_service"`
}

// StaticLists converts Static to content-type keys, skipping unknown types.
func (c FallbackConfig) StaticLists() map[models.ContentType][]string {
	out := make(map[models.ContentType][]string, len(c.Static))
	for name, ids := range c.Static {
		if ct, ok := models.ParseContentType(name); ok {
			out[ct] = ids
		}
	}
	return out
}

// Controller returns the fallback controller configuration.
func (c FallbackConfig) Controller() fallback.Config {
	return fallback.Config{HotTimeout: c.HotTimeout, Static: c.StaticLists()}
}

// Warmer returns the hot-pool warmer configuration.
func (c FallbackConfig) Warmer() fallback.WarmerConfig {
	return fallback.WarmerConfig{PoolSize: c.PoolSize, PoolTTL: c.PoolTTL, Static: c.StaticLists()}
}

// ExposureConfig configures exposure tracking.
type ExposureConfig struct {
	// Window is how long a served item counts as exposed.
	Window time.Duration `koanf:"window"`
	// QueueSize bounds the async writer queue; full queues drop batches.
	QueueSize int `koanf:"queue_size"`
	// WriteTimeout bounds each batch write.
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// FeedbackConfig configures feedback ingestion.
type FeedbackConfig struct {
	Transport  tracking.TransportConfig   `koanf:"transport"`
	Router     tracking.RouterConfig      `koanf:"router"`
	Log        tracking.FeedbackLogConfig `koanf:"log"`
	GCInterval time.Duration              `koanf:"gc_interval"`
}

// SupervisorConfig tunes the suture supervision tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Load loads configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
