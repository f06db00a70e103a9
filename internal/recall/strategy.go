// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recall

import (
	"context"
	"fmt"

	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/models"
)

// Strategy is one candidate recall algorithm.
type Strategy interface {
	// Name identifies the strategy in logs, metrics and CandidateItem.SourceAlgorithm.
	Name() string

	// Recall returns up to n candidates for the user. Implementations must
	// honor ctx cancellation where they can.
	Recall(ctx context.Context, features models.FeatureSet, contentType models.ContentType, n int) ([]models.CandidateItem, error)
}

// KeyFunc maps a request onto the sorted-set keys a StoreStrategy reads.
type KeyFunc func(features models.FeatureSet, contentType models.ContentType) []string

// StoreStrategy recalls candidates from sorted sets in the cache store,
// such as trending pools or per-tag pools maintained offline.
// When several keys are read, an item's score is its highest across keys.
type StoreStrategy struct {
	name  string
	store cache.Store
	keys  KeyFunc
}

// NewStoreStrategy creates a strategy reading the keys produced by keys.
func NewStoreStrategy(name string, store cache.Store, keys KeyFunc) *StoreStrategy {
	return &StoreStrategy{name: name, store: store, keys: keys}
}

// NewPoolStrategy reads the single pool prefix+contentType, e.g. "trending:video".
func NewPoolStrategy(name string, store cache.Store, prefix string) *StoreStrategy {
	return NewStoreStrategy(name, store, func(_ models.FeatureSet, ct models.ContentType) []string {
		return []string{prefix + string(ct)}
	})
}

// NewPreferenceStrategy reads one pool per user preference:
// prefix+preference+":"+contentType, e.g. "tag:golang:article".
// Users without preferences get no candidates.
func NewPreferenceStrategy(name string, store cache.Store, prefix string) *StoreStrategy {
	return NewStoreStrategy(name, store, func(f models.FeatureSet, ct models.ContentType) []string {
		keys := make([]string, 0, len(f.Preferences))
		for _, pref := range f.Preferences {
			keys = append(keys, prefix+pref+":"+string(ct))
		}
		return keys
	})
}

// Name implements Strategy.
func (s *StoreStrategy) Name() string { return s.name }

// Recall implements Strategy.
//
//nolint:gocritic // hugeParam: features passed by value for immutability
func (s *StoreStrategy) Recall(ctx context.Context, features models.FeatureSet, contentType models.ContentType, n int) ([]models.CandidateItem, error) {
	if n <= 0 {
		return nil, nil
	}

	best := make(map[string]float64)
	order := make([]string, 0, n)
	for _, key := range s.keys(features, contentType) {
		members, err := s.store.ZRevRange(ctx, key, 0, int64(n-1))
		if err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", s.name, key, err)
		}
		for _, m := range members {
			prev, seen := best[m.Member]
			if !seen {
				order = append(order, m.Member)
			}
			if !seen || m.Score > prev {
				best[m.Member] = m.Score
			}
		}
	}

	items := make([]models.CandidateItem, 0, len(order))
	for _, id := range order {
		items = append(items, models.CandidateItem{
			ContentID:       id,
			SourceAlgorithm: s.name,
			RawScore:        best[id],
		})
	}
	return items, nil
}
