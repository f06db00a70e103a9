// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package models

import "time"

// APIResponse is the envelope for every JSON endpoint.
//
// Status is "success" (see Data) or "error" (see Error):
//
//	{
//	  "status": "success",
//	  "data": {"items": [...], "algorithm_version": "ranking_v2", "from_cache": false},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "query_time_ms": 41}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// APIError is the structured error payload.
// Code is machine-readable (e.g. "VALIDATION_ERROR"), Message is for humans.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
