// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recommend

import (
	"fmt"
	"time"

	"github.com/tomtom215/recommendcore/internal/models"
)

// Breaker names for the guarded dependencies.
const (
	BreakerFeature = "feature-service"
	BreakerRecall  = "recall-service"
	BreakerRanking = "ranking-service"
)

// Config contains all configuration for the orchestrator.
type Config struct {
	// OverallTimeout bounds the whole pipeline.
	OverallTimeout time.Duration `koanf:"overall_timeout"`

	// FeatureTimeout, RecallTimeout and RankingTimeout bound each stage.
	// They are further capped by whatever is left of OverallTimeout.
	FeatureTimeout time.Duration `koanf:"feature_timeout"`
	RecallTimeout  time.Duration `koanf:"recall_timeout"`
	RankingTimeout time.Duration `koanf:"ranking_timeout"`

	// OverFetchFactor multiplies the requested size to get the recall size.
	OverFetchFactor int `koanf:"over_fetch_factor"`

	// MaxRecallSize caps size × OverFetchFactor.
	MaxRecallSize int `koanf:"max_recall_size"`

	// CacheLookupTimeout bounds the cache read; slow reads count as misses.
	CacheLookupTimeout time.Duration `koanf:"cache_lookup_timeout"`

	// CacheWriteTimeout bounds the cache write. The write is detached from
	// the request deadline so a slow pipeline still populates the cache.
	CacheWriteTimeout time.Duration `koanf:"cache_write_timeout"`

	// ResponseTTL is the cache lifetime of a normal response.
	ResponseTTL time.Duration `koanf:"response_ttl"`

	// DegradedTTL is the cache lifetime of a response built on anonymous
	// features. 0 disables caching of degraded responses.
	DegradedTTL time.Duration `koanf:"degraded_ttl"`

	// DedupContentTypes lists the content types whose already-exposed items
	// are filtered out.
	DedupContentTypes []models.ContentType `koanf:"dedup_content_types"`

	// PadFromHot fills short lists with hot content.
	PadFromHot bool `koanf:"pad_from_hot"`

	// RankingExperiment names the experiment that picks the ranking variant.
	// Empty always uses DefaultVariant.
	RankingExperiment string `koanf:"ranking_experiment"`

	// DefaultVariant is the ranking variant used outside any experiment.
	DefaultVariant string `koanf:"default_variant"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		OverallTimeout:     420 * time.Millisecond,
		FeatureTimeout:     80 * time.Millisecond,
		RecallTimeout:      200 * time.Millisecond,
		RankingTimeout:     120 * time.Millisecond,
		OverFetchFactor:    3,
		MaxRecallSize:      600,
		CacheLookupTimeout: 30 * time.Millisecond,
		CacheWriteTimeout:  50 * time.Millisecond,
		ResponseTTL:        10 * time.Minute,
		DegradedTTL:        time.Minute,
		DedupContentTypes:  []models.ContentType{models.ContentTypeArticle, models.ContentTypeVideo},
		PadFromHot:         true,
		RankingExperiment:  "ranking_model",
		DefaultVariant:     "ranking_v1",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"overall_timeout", c.OverallTimeout},
		{"feature_timeout", c.FeatureTimeout},
		{"recall_timeout", c.RecallTimeout},
		{"ranking_timeout", c.RankingTimeout},
		{"cache_lookup_timeout", c.CacheLookupTimeout},
		{"cache_write_timeout", c.CacheWriteTimeout},
		{"response_ttl", c.ResponseTTL},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", p.name, p.d)
		}
	}

	if c.DegradedTTL < 0 {
		return fmt.Errorf("degraded_ttl must be non-negative, got %v", c.DegradedTTL)
	}
	if c.OverFetchFactor < 1 {
		return fmt.Errorf("over_fetch_factor must be at least 1, got %d", c.OverFetchFactor)
	}
	if c.MaxRecallSize < 1 {
		return fmt.Errorf("max_recall_size must be positive, got %d", c.MaxRecallSize)
	}
	for _, ct := range c.DedupContentTypes {
		if !ct.Valid() {
			return fmt.Errorf("dedup_content_types: unknown content type %q", ct)
		}
	}
	if c.DefaultVariant == "" {
		return fmt.Errorf("default_variant is required")
	}
	return nil
}

// dedups reports whether exposure filtering applies to ct.
func (c *Config) dedups(ct models.ContentType) bool {
	for _, d := range c.DedupContentTypes {
		if d == ct {
			return true
		}
	}
	return false
}

// recallSize is the number of candidates to request for size results.
func (c *Config) recallSize(size int) int {
	n := size * c.OverFetchFactor
	if n > c.MaxRecallSize {
		n = c.MaxRecallSize
	}
	if n < size {
		n = size
	}
	return n
}
