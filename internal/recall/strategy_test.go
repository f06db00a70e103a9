// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recall

import (
	"context"
	"testing"

	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/models"
)

func TestPoolStrategy(t *testing.T) {
	ctx := context.Background()
	store := cache.NewLocalStore(10)
	_ = store.ZAdd(ctx, "trending:video",
		cache.ScoredMember{Member: "v1", Score: 10},
		cache.ScoredMember{Member: "v2", Score: 30},
		cache.ScoredMember{Member: "v3", Score: 20},
	)

	s := NewPoolStrategy("trending", store, "trending:")
	got, err := s.Recall(ctx, models.FeatureSet{}, models.ContentTypeVideo, 2)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 2 || got[0].ContentID != "v2" || got[1].ContentID != "v3" {
		t.Errorf("Recall = %+v, want [v2 v3]", got)
	}
	if got[0].SourceAlgorithm != "trending" || got[0].RawScore != 30 {
		t.Errorf("candidate = %+v", got[0])
	}

	empty, err := s.Recall(ctx, models.FeatureSet{}, models.ContentTypeArticle, 5)
	if err != nil || len(empty) != 0 {
		t.Errorf("missing pool = %v, %v", empty, err)
	}
}

func TestPreferenceStrategy(t *testing.T) {
	ctx := context.Background()
	store := cache.NewLocalStore(10)
	_ = store.ZAdd(ctx, "tag:golang:article",
		cache.ScoredMember{Member: "a1", Score: 5},
		cache.ScoredMember{Member: "a2", Score: 1},
	)
	_ = store.ZAdd(ctx, "tag:rust:article",
		cache.ScoredMember{Member: "a2", Score: 8},
		cache.ScoredMember{Member: "a3", Score: 2},
	)

	s := NewPreferenceStrategy("preferences", store, "tag:")
	features := models.FeatureSet{UserID: "u1", Preferences: []string{"golang", "rust"}}

	got, err := s.Recall(ctx, features, models.ContentTypeArticle, 10)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	scores := map[string]float64{}
	for _, c := range got {
		scores[c.ContentID] = c.RawScore
	}
	if len(scores) != 3 || scores["a2"] != 8 || scores["a1"] != 5 {
		t.Errorf("scores = %v, want a2 at its highest score", scores)
	}

	none, _ := s.Recall(ctx, models.FeatureSet{UserID: "anon"}, models.ContentTypeArticle, 10)
	if len(none) != 0 {
		t.Errorf("user without preferences got %v", none)
	}
}
