// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

// Package fallback produces degraded recommendation lists when the
// personalized pipeline cannot.
//
// The chain is: hot-content pool from the cache store, then a statically
// configured list. Nothing here calls a breaker-guarded dependency, so a
// fallback response is always available.
package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/logging"
	"github.com/tomtom215/recommendcore/internal/metrics"
	"github.com/tomtom215/recommendcore/internal/models"
)

// Fallback algorithm versions.
const (
	VersionHot    = models.FallbackVersionPrefix + "hot"
	VersionStatic = models.FallbackVersionPrefix + "static"
)

// HotPoolPrefix prefixes the per-content-type hot sorted sets.
const HotPoolPrefix = "hot:"

// HotPoolKey returns the sorted-set key holding hot content for ct.
func HotPoolKey(ct models.ContentType) string {
	return HotPoolPrefix + string(ct)
}

// HotSource returns the currently popular items for a content type,
// best first.
type HotSource interface {
	HotContent(ctx context.Context, contentType models.ContentType, n int) ([]models.RankedItem, error)
}

// CacheHotSource reads hot pools from a cache store.
type CacheHotSource struct {
	store cache.Store
}

// NewCacheHotSource creates a HotSource over store.
func NewCacheHotSource(store cache.Store) *CacheHotSource {
	return &CacheHotSource{store: store}
}

// HotContent implements HotSource.
func (s *CacheHotSource) HotContent(ctx context.Context, contentType models.ContentType, n int) ([]models.RankedItem, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := s.store.ZRevRange(ctx, HotPoolKey(contentType), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("read hot pool %s: %w", contentType, err)
	}

	items := make([]models.RankedItem, 0, len(members))
	for _, m := range members {
		items = append(items, models.RankedItem{
			ContentID:  m.Member,
			FinalScore: m.Score,
			Reason:     "popular",
			Confidence: 0.5,
		})
	}
	models.SortRankedItems(items)
	return items, nil
}

// Config configures the Controller.
type Config struct {
	// HotTimeout bounds the hot-pool lookup. It runs detached from the
	// request deadline, which is usually already spent by the time a
	// fallback is needed.
	HotTimeout time.Duration
	// Static lists content IDs per content type, best first. The "mixed"
	// entry is used for types without their own list.
	Static map[models.ContentType][]string
}

// Controller builds fallback responses.
type Controller struct {
	hot    HotSource
	cfg    Config
	logger zerolog.Logger
}

// NewController creates a Controller. hot may be nil to use static lists only.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewController(hot HotSource, cfg Config, logger zerolog.Logger) *Controller {
	if cfg.HotTimeout <= 0 {
		cfg.HotTimeout = 50 * time.Millisecond
	}
	return &Controller{
		hot:    hot,
		cfg:    cfg,
		logger: logger.With().Str("component", "fallback").Logger(),
	}
}

// GetFallback returns at most size items for contentType. It never fails;
// the worst case is an empty static response.
func (c *Controller) GetFallback(ctx context.Context, contentType models.ContentType, size int) *models.RecommendResponse {
	return c.GetFallbackWithReason(ctx, contentType, size, "unspecified")
}

// GetFallbackWithReason is GetFallback with the trigger recorded in metrics
// and in ExtraInfo["fallback_reason"].
func (c *Controller) GetFallbackWithReason(ctx context.Context, contentType models.ContentType, size int, reason string) *models.RecommendResponse {
	if items, ok := c.hotItems(ctx, contentType, size); ok {
		metrics.RecordFallback(string(contentType), "hot", reason)
		return c.response(ctx, VersionHot, items, reason)
	}

	metrics.RecordFallback(string(contentType), "static", reason)
	return c.response(ctx, VersionStatic, c.StaticItems(contentType, size), reason)
}

// HotItems returns up to n hot items, or nil when the pool is unavailable.
// Used by the orchestrator to pad short lists.
func (c *Controller) HotItems(ctx context.Context, contentType models.ContentType, n int) []models.RankedItem {
	items, _ := c.hotItems(ctx, contentType, n)
	return items
}

func (c *Controller) hotItems(ctx context.Context, contentType models.ContentType, n int) ([]models.RankedItem, bool) {
	if c.hot == nil || n <= 0 {
		return nil, false
	}

	hotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.HotTimeout)
	defer cancel()

	items, err := c.hot.HotContent(hotCtx, contentType, n)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("content_type", string(contentType)).Msg("Hot content unavailable, using static fallback")
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}
	if len(items) > n {
		items = items[:n]
	}
	return items, true
}

// StaticItems returns the configured static list for contentType, scored by
// position so it satisfies the ranked-item order.
func (c *Controller) StaticItems(contentType models.ContentType, n int) []models.RankedItem {
	ids, ok := c.cfg.Static[contentType]
	if !ok {
		ids = c.cfg.Static[models.ContentTypeMixed]
	}
	if n > 0 && len(ids) > n {
		ids = ids[:n]
	}

	items := make([]models.RankedItem, len(ids))
	for i, id := range ids {
		items[i] = models.RankedItem{
			ContentID:  id,
			FinalScore: float64(len(ids)-i) / float64(len(ids)),
			Reason:     "editorial",
			Confidence: 0.1,
		}
	}
	models.SortRankedItems(items)
	return items
}

func (c *Controller) response(ctx context.Context, version string, items []models.RankedItem, reason string) *models.RecommendResponse {
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if items == nil {
		items = []models.RankedItem{}
	}
	return &models.RecommendResponse{
		Items:            items,
		Total:            len(items),
		RequestID:        requestID,
		AlgorithmVersion: version,
		ExtraInfo:        map[string]string{"fallback_reason": reason},
		GeneratedAt:      time.Now().UTC(),
	}
}
