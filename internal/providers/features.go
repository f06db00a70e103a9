// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package providers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tomtom215/recommendcore/internal/models"
)

// FeatureClient fetches user features from the feature service.
type FeatureClient struct {
	client *jsonClient
}

// NewFeatureClient creates a feature client.
func NewFeatureClient(cfg ClientConfig) (*FeatureClient, error) {
	c, err := newJSONClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("feature client: %w", err)
	}
	return &FeatureClient{client: c}, nil
}

type featureResponse struct {
	UserID      string             `json:"user_id"`
	Features    map[string]float64 `json:"features"`
	Preferences []string           `json:"preferences"`
}

// GetFeatures returns the typed feature set for userID. Unknown feature
// names from the service are dropped. reqCtx is attached unchanged.
func (f *FeatureClient) GetFeatures(ctx context.Context, userID string, reqCtx map[string]string) (models.FeatureSet, error) {
	var resp featureResponse
	path := "/v1/users/" + url.PathEscape(userID) + "/features"
	if err := f.client.getJSON(ctx, path, &resp); err != nil {
		return models.FeatureSet{}, fmt.Errorf("get features for %s: %w", userID, err)
	}

	set := models.FeatureSet{
		UserID:      userID,
		Values:      make(map[models.FeatureName]float64, len(resp.Features)),
		Preferences: resp.Preferences,
		Context:     reqCtx,
	}
	for name, v := range resp.Features {
		set.Values[models.FeatureName(name)] = v
	}
	set.Sanitize()
	return set, nil
}
