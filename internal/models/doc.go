// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package models defines the data structures shared across recommendcore.

Key Components:

  - RecommendRequest / RecommendResponse: the orchestrator's input and output.
    A RecommendResponse is also the unit stored in and served from the cache.
  - CandidateItem / RecallResult: recall stage output. Request-scoped only.
  - RankedItem: ranking stage output. Slices are kept ordered by
    SortRankedItems (descending FinalScore, ascending ContentID).
  - FeatureSet: typed user feature bag consumed by recall and ranking.
  - ExposureRecord / FeedbackEvent: tracking inputs.
  - APIResponse / APIError / Metadata: HTTP envelope.

All JSON tags use snake_case to match the HTTP API and the cache payload
format. Types here carry no behavior beyond validation helpers and ordering.
*/
package models
