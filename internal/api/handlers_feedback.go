// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/recommendcore/internal/models"
	"github.com/tomtom215/recommendcore/internal/tracking"
	"github.com/tomtom215/recommendcore/internal/validation"
)

// EventIDHeader carries the server-assigned ID of an accepted feedback event.
const EventIDHeader = "X-Event-ID"

// PostFeedback handles POST /api/v1/feedback
//
// The body is a models.FeedbackEvent. Accepted events answer 204 with the
// assigned event ID in X-Event-ID; delivery to the feedback pipeline is
// asynchronous.
func (h *Handler) PostFeedback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var ev models.FeedbackEvent
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be a feedback event", nil)
		return
	}

	accepted, err := h.deps.Feedback.RecordFeedback(r.Context(), ev)
	if err != nil {
		if errors.Is(err, tracking.ErrInvalidFeedback) {
			respondErrorDetails(w, http.StatusBadRequest, validationAPIError(err), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "FEEDBACK_ERROR", "Failed to record feedback", err)
		return
	}

	w.Header().Set(EventIDHeader, accepted.EventID)
	w.WriteHeader(http.StatusNoContent)
}

// GetUserFeedback handles GET /api/v1/users/{userID}/feedback
// Returns the user's stored feedback, newest first.
func (h *Handler) GetUserFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.deps.FeedbackLog == nil {
		respondError(w, http.StatusServiceUnavailable, "FEATURE_DISABLED", "Feedback log is not enabled", nil)
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == "" || len(userID) > 128 {
		respondError(w, http.StatusBadRequest, validation.ErrorCode, "userID must be 1 to 128 characters", nil)
		return
	}

	limit, err := getIntParam(r, "limit", defaultFeedbackListLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, validation.ErrorCode, err.Error(), nil)
		return
	}
	if limit < 1 || limit > maxFeedbackListLimit {
		respondError(w, http.StatusBadRequest, validation.ErrorCode,
			fmt.Sprintf("limit must be between 1 and %d", maxFeedbackListLimit), nil)
		return
	}

	events, err := h.deps.FeedbackLog.UserEvents(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to read feedback", err)
		return
	}

	respondSuccess(w, r, map[string]interface{}{
		"user_id": userID,
		"events":  events,
		"count":   len(events),
	}, start)
}
