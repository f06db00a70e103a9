// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recommend

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recommendcore/internal/models"
)

// encodeResponse serializes a response for the cache. FromCache and
// RequestID describe one delivery, not the cached content, so they are
// cleared in the stored copy.
func encodeResponse(resp *models.RecommendResponse) ([]byte, error) {
	stored := *resp
	stored.FromCache = false
	stored.RequestID = ""
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

func decodeResponse(data []byte) (*models.RecommendResponse, error) {
	var resp models.RecommendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Items == nil {
		resp.Items = []models.RankedItem{}
	}
	return &resp, nil
}
