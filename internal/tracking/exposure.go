// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package tracking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/models"
)

// DefaultExposureWindow is how long an item stays "seen".
const DefaultExposureWindow = 24 * time.Hour

// ExposureKey returns the sorted-set key for a user's exposures.
func ExposureKey(userID string) string {
	return "exposure:" + userID
}

// ExposureTracker reads and writes per-user exposure windows.
type ExposureTracker struct {
	store  cache.Store
	window time.Duration
	now    func() time.Time
}

// NewExposureTracker creates a tracker. window <= 0 uses DefaultExposureWindow.
func NewExposureTracker(store cache.Store, window time.Duration) *ExposureTracker {
	if window <= 0 {
		window = DefaultExposureWindow
	}
	return &ExposureTracker{store: store, window: window, now: time.Now}
}

// Window returns the exposure window.
func (t *ExposureTracker) Window() time.Duration { return t.window }

// RecordExposure marks contentID as shown to userID now.
func (t *ExposureTracker) RecordExposure(ctx context.Context, userID, contentID string) error {
	return t.RecordExposures(ctx, userID, []string{contentID})
}

// RecordExposures marks every contentID as shown to userID now, refreshes
// the window TTL and prunes expired members.
func (t *ExposureTracker) RecordExposures(ctx context.Context, userID string, contentIDs []string) error {
	if userID == "" || len(contentIDs) == 0 {
		return nil
	}

	now := t.now()
	score := float64(now.UnixMilli())
	members := make([]cache.ScoredMember, 0, len(contentIDs))
	for _, id := range contentIDs {
		if id == "" {
			continue
		}
		members = append(members, cache.ScoredMember{Member: id, Score: score})
	}
	if len(members) == 0 {
		return nil
	}

	key := ExposureKey(userID)
	if err := t.store.ZAdd(ctx, key, members...); err != nil {
		return fmt.Errorf("record exposure for %s: %w", userID, err)
	}
	if err := t.store.Expire(ctx, key, t.window); err != nil {
		return fmt.Errorf("expire exposures for %s: %w", userID, err)
	}
	if err := t.store.ZRemRangeByScore(ctx, key, math.Inf(-1), t.cutoff(now)); err != nil {
		return fmt.Errorf("prune exposures for %s: %w", userID, err)
	}
	return nil
}

// IsExposed reports whether contentID was shown to userID within the window.
func (t *ExposureTracker) IsExposed(ctx context.Context, userID, contentID string) (bool, error) {
	score, found, err := t.store.ZScore(ctx, ExposureKey(userID), contentID)
	if err != nil {
		return false, fmt.Errorf("check exposure for %s: %w", userID, err)
	}
	return found && score > t.cutoff(t.now()), nil
}

// ExposedSet returns every content ID shown to userID within the window.
func (t *ExposureTracker) ExposedSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	members, err := t.store.ZRevRange(ctx, ExposureKey(userID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read exposures for %s: %w", userID, err)
	}

	cutoff := t.cutoff(t.now())
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		// Descending by score, so everything after this is older still.
		if m.Score <= cutoff {
			break
		}
		seen[m.Member] = struct{}{}
	}
	return seen, nil
}

// FilterExposed removes items already shown to userID, preserving order.
func (t *ExposureTracker) FilterExposed(ctx context.Context, userID string, items []models.RankedItem) ([]models.RankedItem, error) {
	if len(items) == 0 {
		return items, nil
	}
	seen, err := t.ExposedSet(ctx, userID)
	if err != nil {
		return items, err
	}
	if len(seen) == 0 {
		return items, nil
	}

	kept := make([]models.RankedItem, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ContentID]; !ok {
			kept = append(kept, it)
		}
	}
	return kept, nil
}

// cutoff is the newest score that counts as expired.
func (t *ExposureTracker) cutoff(now time.Time) float64 {
	return float64(now.Add(-t.window).UnixMilli())
}
