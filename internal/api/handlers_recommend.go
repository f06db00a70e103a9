// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/recommendcore/internal/middleware"
	"github.com/tomtom215/recommendcore/internal/models"
	"github.com/tomtom215/recommendcore/internal/recommend"
	"github.com/tomtom215/recommendcore/internal/validation"
)

// contextParamPrefix marks query parameters forwarded as request context,
// e.g. ctx.device=mobile.
const contextParamPrefix = "ctx."

// GetRecommendations handles GET /api/v1/recommendations
//
// Query parameters: user_id (required), content_type (required), size
// (default api.default_size, at most api.max_size) and any number of
// ctx.<key>=<value> pairs passed to the feature service.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query := r.URL.Query()

	size, err := getIntParam(r, "size", h.config.DefaultSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, validation.ErrorCode, err.Error(), nil)
		return
	}
	if size > h.config.MaxSize {
		respondError(w, http.StatusBadRequest, validation.ErrorCode,
			fmt.Sprintf("size must be at most %d", h.config.MaxSize), nil)
		return
	}

	req := models.RecommendRequest{
		UserID:      query.Get("user_id"),
		ContentType: models.ContentType(query.Get("content_type")),
		Size:        size,
		Context:     contextParams(r),
	}

	resp, err := h.deps.Recommender.GetRecommendations(r.Context(), req)
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidRequest) {
			respondErrorDetails(w, http.StatusBadRequest, validationAPIError(err), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "RECOMMENDATION_ERROR", "Failed to generate recommendations", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   resp,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Cached:      resp.FromCache,
			RequestID:   middleware.GetRequestID(r.Context()),
		},
	})
}

// contextParams collects ctx.* query parameters. Only the first value of a
// repeated key is kept.
func contextParams(r *http.Request) map[string]string {
	var out map[string]string
	for key, values := range r.URL.Query() {
		name, ok := strings.CutPrefix(key, contextParamPrefix)
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = values[0]
	}
	return out
}
