// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tomtom215/recommendcore/internal/models"
)

// HotContentClient reads popular content from an upstream service.
// The fallback warmer uses it to refresh the hot pools.
type HotContentClient struct {
	client *jsonClient
}

// NewHotContentClient creates a hot-content client.
func NewHotContentClient(cfg ClientConfig) (*HotContentClient, error) {
	c, err := newJSONClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("hot content client: %w", err)
	}
	return &HotContentClient{client: c}, nil
}

// HotContent implements fallback.HotSource.
func (h *HotContentClient) HotContent(ctx context.Context, ct models.ContentType, n int) ([]models.RankedItem, error) {
	params := url.Values{}
	params.Set("content_type", string(ct))
	params.Set("size", strconv.Itoa(n))

	var resp scoredItemsResponse
	if err := h.client.getJSON(ctx, "/v1/hot?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("hot content %s: %w", ct, err)
	}

	items := make([]models.RankedItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ContentID == "" {
			continue
		}
		items = append(items, models.RankedItem{
			ContentID:  it.ContentID,
			FinalScore: it.Score,
			Reason:     "popular",
			Confidence: 0.5,
		})
	}
	models.SortRankedItems(items)
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}
