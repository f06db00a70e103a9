// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/recommendcore/internal/models"
	"github.com/tomtom215/recommendcore/internal/tracking"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateAPI,
		c.validateLogging,
		c.validateCache,
		c.validateRedis,
		c.validateBreaker,
		c.validateRecommend,
		c.validateRecall,
		c.validateProviders,
		c.validateExperiments,
		c.validateFallback,
		c.validateExposure,
		c.validateFeedback,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	return nil
}

// validEnvironments defines the allowed environment modes
var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateAPI validates request size limits and rate limiting bounds.
func (c *Config) validateAPI() error {
	if c.API.MaxSize < 1 || c.API.MaxSize > 200 {
		return fmt.Errorf("API_MAX_SIZE must be between 1 and 200")
	}
	if c.API.DefaultSize < 1 || c.API.DefaultSize > c.API.MaxSize {
		return fmt.Errorf("API_DEFAULT_SIZE must be between 1 and API_MAX_SIZE (%d)", c.API.MaxSize)
	}

	if c.API.RateLimitDisabled {
		return nil
	}
	if c.API.RateLimitReqs < minRateLimitRequests || c.API.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.API.RateLimitWindow < minRateLimitWindow || c.API.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.API.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration should be logged
// as a concern at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.IsProduction() && c.hasWildcardCORS()
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.L1MaxEntries < 1 {
		return fmt.Errorf("cache.l1_max_entries must be positive")
	}
	if c.Cache.L1TTL <= 0 {
		return fmt.Errorf("cache.l1_ttl must be positive")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if !c.Redis.Enabled {
		return nil
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("REDIS_POOL_SIZE must not be negative")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if err := c.Breaker.Defaults().Validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	for name, s := range c.Breaker.Overrides {
		if err := s.Settings().Validate(); err != nil {
			return fmt.Errorf("breaker.overrides.%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	return nil
}

// validateRecall validates the recall strategy list.
func (c *Config) validateRecall() error {
	if len(c.Recall.Strategies) == 0 {
		return fmt.Errorf("recall.strategies: at least one strategy is required")
	}

	seen := make(map[string]bool, len(c.Recall.Strategies))
	for i, s := range c.Recall.Strategies {
		if s.Name == "" {
			return fmt.Errorf("recall.strategies[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("recall.strategies: duplicate name %q", s.Name)
		}
		seen[s.Name] = true

		if s.Weight < 0 {
			return fmt.Errorf("recall.strategies.%s: weight must not be negative", s.Name)
		}
		if s.Timeout < 0 {
			return fmt.Errorf("recall.strategies.%s: timeout must not be negative", s.Name)
		}

		switch s.Type {
		case StrategyPool, StrategyPreference:
			if s.KeyPrefix == "" {
				return fmt.Errorf("recall.strategies.%s: key_prefix is required for type %s", s.Name, s.Type)
			}
		case StrategyHTTP:
			if err := validateHTTPURL(s.URL, "recall.strategies."+s.Name+".url"); err != nil {
				return err
			}
		default:
			return fmt.Errorf("recall.strategies.%s: type must be one of: pool, preference, http", s.Name)
		}
	}
	return nil
}

func (c *Config) validateProviders() error {
	if err := validateHTTPURL(c.Providers.Features.BaseURL, "FEATURE_SERVICE_URL"); err != nil {
		return err
	}
	return validateHTTPURL(c.Providers.Ranking.BaseURL, "RANKING_SERVICE_URL")
}

func (c *Config) validateExperiments() error {
	seen := make(map[string]bool, len(c.Experiments))
	for _, e := range c.Experiments {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("experiments: %w", err)
		}
		if seen[e.Name] {
			return fmt.Errorf("experiments: %s defined twice", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

func (c *Config) validateFallback() error {
	if c.Fallback.WarmInterval <= 0 {
		return fmt.Errorf("fallback.warm_interval must be positive")
	}
	if c.Fallback.PoolSize < 1 {
		return fmt.Errorf("fallback.pool_size must be positive")
	}
	if c.Fallback.PoolTTL < 0 {
		return fmt.Errorf("fallback.pool_ttl must not be negative")
	}
	for name := range c.Fallback.Static {
		if _, ok := models.ParseContentType(name); !ok {
			return fmt.Errorf("fallback.static: unknown content type %q", name)
		}
	}
	if c.Fallback.HotService.BaseURL != "" {
		if err := validateHTTPURL(c.Fallback.HotService.BaseURL, "HOT_SERVICE_URL"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateExposure() error {
	if c.Exposure.Window <= 0 {
		return fmt.Errorf("EXPOSURE_WINDOW must be positive")
	}
	if c.Exposure.QueueSize < 1 {
		return fmt.Errorf("EXPOSURE_QUEUE_SIZE must be positive")
	}
	if c.Exposure.WriteTimeout <= 0 {
		return fmt.Errorf("exposure.write_timeout must be positive")
	}
	return nil
}

// validateFeedback validates the transport, router and log sections.
func (c *Config) validateFeedback() error {
	t := c.Feedback.Transport
	switch t.Driver {
	case tracking.DriverMemory:
		if t.MemoryBuffer < 0 {
			return fmt.Errorf("feedback.transport.memory_buffer must not be negative")
		}
	case tracking.DriverNATS:
		if err := validateNATS(&t.NATS); err != nil {
			return err
		}
	default:
		return fmt.Errorf("FEEDBACK_TRANSPORT must be one of: %s, %s", tracking.DriverMemory, tracking.DriverNATS)
	}

	r := c.Feedback.Router
	if r.RetryMaxRetries < 0 {
		return fmt.Errorf("feedback.router.retry_max_retries must not be negative")
	}
	if r.ThrottlePerSecond < 0 {
		return fmt.Errorf("feedback.router.throttle_per_second must not be negative")
	}
	if r.CloseTimeout <= 0 {
		return fmt.Errorf("feedback.router.close_timeout must be positive")
	}
	if r.PoisonQueueTopic == tracking.FeedbackTopic {
		return fmt.Errorf("feedback.router.poison_queue_topic must differ from %s", tracking.FeedbackTopic)
	}

	if err := c.Feedback.Log.Validate(); err != nil {
		return fmt.Errorf("feedback.log: %w", err)
	}
	if c.Feedback.GCInterval <= 0 {
		return fmt.Errorf("feedback.gc_interval must be positive")
	}
	return nil
}

// validateNATS validates the NATS transport settings
func validateNATS(n *tracking.NATSConfig) error {
	if !n.Embedded {
		if err := validateNATSURL(n.URL); err != nil {
			return fmt.Errorf("NATS_URL: %w", err)
		}
	} else if n.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if n.StreamName == "" {
		return fmt.Errorf("NATS_STREAM_NAME is required")
	}
	if n.SubscribersCount < 1 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1")
	}
	if n.DurableName == "" {
		return fmt.Errorf("NATS_DURABLE_NAME is required")
	}
	return nil
}
