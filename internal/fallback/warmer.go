// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/metrics"
	"github.com/tomtom215/recommendcore/internal/models"
)

// WarmerConfig configures the hot-pool Warmer.
type WarmerConfig struct {
	// PoolSize is how many items to pull from upstream per content type.
	PoolSize int
	// PoolTTL is applied to every pool after a refresh. Zero leaves pools without expiry.
	PoolTTL time.Duration
	// Static seeds empty pools so the hot tier has something to serve.
	Static map[models.ContentType][]string
}

// Warmer keeps the hot pools in the cache store populated.
//
// Feedback events move items within a pool continuously; the warmer merges
// in an upstream popularity feed when one is configured, and seeds pools
// that are still empty from the static lists.
type Warmer struct {
	store    cache.Store
	upstream HotSource
	cfg      WarmerConfig
	logger   zerolog.Logger
}

// NewWarmer creates a Warmer. upstream may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWarmer(store cache.Store, upstream HotSource, cfg WarmerConfig, logger zerolog.Logger) *Warmer {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 100
	}
	return &Warmer{
		store:    store,
		upstream: upstream,
		cfg:      cfg,
		logger:   logger.With().Str("component", "hot-warmer").Logger(),
	}
}

// Refresh updates every content type's pool once. Errors for individual
// content types are joined; the remaining types are still refreshed.
func (w *Warmer) Refresh(ctx context.Context) error {
	var errs []error
	for _, ct := range models.ContentTypes {
		if err := w.refreshPool(ctx, ct); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Warmer) refreshPool(ctx context.Context, ct models.ContentType) error {
	key := HotPoolKey(ct)

	if w.upstream != nil {
		if err := w.pullUpstream(ctx, ct, key); err != nil {
			metrics.HotContentRefreshes.WithLabelValues("upstream", "error").Inc()
			w.logger.Warn().Err(err).Str("content_type", string(ct)).Msg("Upstream hot content refresh failed")
		} else {
			metrics.HotContentRefreshes.WithLabelValues("upstream", "success").Inc()
		}
	}

	seeded, err := w.seedStatic(ctx, ct, key)
	if err != nil {
		metrics.HotContentRefreshes.WithLabelValues("static", "error").Inc()
		return fmt.Errorf("seed hot pool %s: %w", ct, err)
	}
	if seeded {
		metrics.HotContentRefreshes.WithLabelValues("static", "success").Inc()
	}

	if w.cfg.PoolTTL > 0 {
		if err := w.store.Expire(ctx, key, w.cfg.PoolTTL); err != nil {
			return fmt.Errorf("expire hot pool %s: %w", ct, err)
		}
	}
	return nil
}

func (w *Warmer) pullUpstream(ctx context.Context, ct models.ContentType, key string) error {
	items, err := w.upstream.HotContent(ctx, ct, w.cfg.PoolSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	members := make([]cache.ScoredMember, len(items))
	for i, it := range items {
		members[i] = cache.ScoredMember{Member: it.ContentID, Score: it.FinalScore}
	}
	return w.store.ZAdd(ctx, key, members...)
}

// seedStatic fills an empty pool with the static list at score 0, so any
// real engagement immediately outranks the seeds.
func (w *Warmer) seedStatic(ctx context.Context, ct models.ContentType, key string) (bool, error) {
	ids := w.cfg.Static[ct]
	if len(ids) == 0 {
		return false, nil
	}

	top, err := w.store.ZRevRange(ctx, key, 0, 0)
	if err != nil {
		return false, err
	}
	if len(top) > 0 {
		return false, nil
	}

	members := make([]cache.ScoredMember, len(ids))
	for i, id := range ids {
		members[i] = cache.ScoredMember{Member: id, Score: 0}
	}
	if err := w.store.ZAdd(ctx, key, members...); err != nil {
		return false, err
	}
	w.logger.Debug().Str("content_type", string(ct)).Int("items", len(ids)).Msg("Seeded empty hot pool")
	return true, nil
}
