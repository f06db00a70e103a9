// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recommend

import "errors"

// ErrInvalidRequest is returned when a request fails validation. The
// returned error also wraps a *validation.RequestValidationError with the
// failing fields.
var ErrInvalidRequest = errors.New("invalid recommendation request")

// Fallback reasons, recorded in metrics and ExtraInfo["fallback_reason"].
const (
	reasonRecallFailed  = "recall_failed"
	reasonRecallEmpty   = "recall_empty"
	reasonRankingFailed = "ranking_failed"
	reasonRankingEmpty  = "ranking_empty"
	reasonAbandoned     = "caller_deadline"
)
