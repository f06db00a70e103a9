// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package providers

import (
	"context"
	"fmt"

	"github.com/tomtom215/recommendcore/internal/models"
)

// RankingClient scores recall candidates through the ranking service.
type RankingClient struct {
	client *jsonClient
}

// NewRankingClient creates a ranking client.
func NewRankingClient(cfg ClientConfig) (*RankingClient, error) {
	c, err := newJSONClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("ranking client: %w", err)
	}
	return &RankingClient{client: c}, nil
}

type rankCandidate struct {
	ContentID       string  `json:"content_id"`
	Score           float64 `json:"score"`
	SourceAlgorithm string  `json:"source_algorithm"`
}

type rankRequest struct {
	UserID     string                         `json:"user_id"`
	Variant    string                         `json:"variant"`
	Candidates []rankCandidate                `json:"candidates"`
	Features   map[models.FeatureName]float64 `json:"features,omitempty"`
	Context    map[string]string              `json:"context,omitempty"`
}

type rankedResponse struct {
	Items []struct {
		ContentID  string   `json:"content_id"`
		Score      float64  `json:"score"`
		Reason     string   `json:"reason"`
		Confidence float64  `json:"confidence"`
		Tags       []string `json:"tags"`
	} `json:"items"`
}

// Rank returns the candidates scored by the model selected by variant.
// Items the service returns that were not among the candidates are dropped.
//
//nolint:gocritic // hugeParam: features passed by value for immutability
func (r *RankingClient) Rank(ctx context.Context, features models.FeatureSet, candidates []models.CandidateItem, variant string) ([]models.RankedItem, error) {
	req := rankRequest{
		UserID:     features.UserID,
		Variant:    variant,
		Candidates: make([]rankCandidate, len(candidates)),
		Features:   features.Values,
		Context:    features.Context,
	}
	known := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		req.Candidates[i] = rankCandidate{ContentID: c.ContentID, Score: c.RawScore, SourceAlgorithm: c.SourceAlgorithm}
		known[c.ContentID] = struct{}{}
	}

	var resp rankedResponse
	if err := r.client.postJSON(ctx, "/v1/rank", req, &resp); err != nil {
		return nil, fmt.Errorf("rank with %s: %w", variant, err)
	}

	items := make([]models.RankedItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if _, ok := known[it.ContentID]; !ok {
			continue
		}
		items = append(items, models.RankedItem{
			ContentID:  it.ContentID,
			FinalScore: it.Score,
			Reason:     it.Reason,
			Confidence: it.Confidence,
			Tags:       it.Tags,
		})
	}
	return items, nil
}
