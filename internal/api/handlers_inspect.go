// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/recommendcore/internal/experiment"
	"github.com/tomtom215/recommendcore/internal/validation"
)

// GetBreakers handles GET /api/v1/breakers
func (h *Handler) GetBreakers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.deps.Breakers == nil {
		respondError(w, http.StatusServiceUnavailable, "FEATURE_DISABLED", "Circuit breakers are not configured", nil)
		return
	}

	snapshots := h.deps.Breakers.Snapshots()
	respondSuccess(w, r, map[string]interface{}{
		"breakers": snapshots,
		"count":    len(snapshots),
	}, start)
}

// GetExperimentAssignment handles GET /api/v1/experiments/{name}/assignment
// Returns the bucket and variant user_id is assigned to.
func (h *Handler) GetExperimentAssignment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.deps.Experiments == nil {
		respondError(w, http.StatusServiceUnavailable, "FEATURE_DISABLED", "Experiments are not configured", nil)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, validation.ErrorCode, "user_id is required", nil)
		return
	}

	name := chi.URLParam(r, "name")
	assignment, err := h.deps.Experiments.Assign(userID, name)
	if err != nil {
		if errors.Is(err, experiment.ErrUnknownExperiment) {
			respondError(w, http.StatusNotFound, "EXPERIMENT_NOT_FOUND", "Unknown experiment", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "EXPERIMENT_ERROR", "Failed to assign experiment", err)
		return
	}

	respondSuccess(w, r, assignment, start)
}
