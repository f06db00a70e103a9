// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/recommendcore/internal/models"
)

// RecallClient is a recall.Strategy backed by a remote recall service.
// One service can host several strategies; the strategy name is sent with
// every request.
type RecallClient struct {
	name   string
	client *jsonClient
}

// NewRecallClient creates a remote strategy called name.
func NewRecallClient(name string, cfg ClientConfig) (*RecallClient, error) {
	if name == "" {
		return nil, errors.New("recall client: strategy name is required")
	}
	c, err := newJSONClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("recall client %s: %w", name, err)
	}
	return &RecallClient{name: name, client: c}, nil
}

// Name implements recall.Strategy.
func (r *RecallClient) Name() string { return r.name }

type recallRequest struct {
	Strategy    string                         `json:"strategy"`
	UserID      string                         `json:"user_id"`
	ContentType models.ContentType             `json:"content_type"`
	Size        int                            `json:"size"`
	Anonymous   bool                           `json:"anonymous"`
	Features    map[models.FeatureName]float64 `json:"features,omitempty"`
	Preferences []string                       `json:"preferences,omitempty"`
}

// Recall implements recall.Strategy.
//
//nolint:gocritic // hugeParam: features passed by value for immutability
func (r *RecallClient) Recall(ctx context.Context, features models.FeatureSet, ct models.ContentType, n int) ([]models.CandidateItem, error) {
	req := recallRequest{
		Strategy:    r.name,
		UserID:      features.UserID,
		ContentType: ct,
		Size:        n,
		Anonymous:   features.Anonymous,
		Features:    features.Values,
		Preferences: features.Preferences,
	}

	var resp scoredItemsResponse
	if err := r.client.postJSON(ctx, "/v1/recall", req, &resp); err != nil {
		return nil, fmt.Errorf("recall %s: %w", r.name, err)
	}

	items := make([]models.CandidateItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ContentID == "" {
			continue
		}
		items = append(items, models.CandidateItem{
			ContentID:       it.ContentID,
			SourceAlgorithm: r.name,
			RawScore:        it.Score,
		})
		if n > 0 && len(items) == n {
			break
		}
	}
	return items, nil
}
