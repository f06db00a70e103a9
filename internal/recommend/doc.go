// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

// Package recommend coordinates a single recommendation request.
//
// # Pipeline
//
// Orchestrator.GetRecommendations runs, under one overall deadline:
//
//  1. Validation. The only failure a caller ever sees is ErrInvalidRequest.
//  2. Cache lookup at rec:{userID}:{contentType}. A hit with enough items
//     is served as-is (truncated, FromCache=true).
//  3. Feature fetch through the "feature-service" breaker. On failure the
//     request continues with anonymous features and is marked degraded.
//  4. Recall through the "recall-service" breaker, over-fetching
//     size × OverFetchFactor candidates.
//  5. Ranking through the "ranking-service" breaker, with the model variant
//     picked by the ranking experiment.
//  6. Sorting, exposure filtering, truncation and hot-content padding.
//  7. Cache write (fallback responses are never cached) and asynchronous
//     exposure recording.
//
// Recall or ranking failures (breaker open, timeout, error, empty result)
// divert to the fallback controller, which never fails.
//
// # Concurrency
//
// Concurrent misses for the same user, content type and size share one
// pipeline run through singleflight. Each caller receives its own copy of
// the response.
//
// # Usage
//
//	orch, err := recommend.NewOrchestrator(recommend.DefaultConfig(), recommend.Dependencies{
//	    Cache:     store,
//	    Features:  featureClient,
//	    Recall:    merger,
//	    Ranking:   rankingClient,
//	    Fallback:  fallbackController,
//	    Breakers:  registry,
//	    Exposures: exposureTracker,
//	    Writer:    exposureWriter,
//	    Assigner:  assigner,
//	}, logger)
//
//	resp, err := orch.GetRecommendations(ctx, models.RecommendRequest{
//	    UserID:      "u1",
//	    ContentType: models.ContentTypeArticle,
//	    Size:        10,
//	})
package recommend
