// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package providers contains HTTP JSON clients for the services the
orchestrator depends on:

  - FeatureClient: user features (recommend.FeatureProvider)
  - RecallClient: one remote recall strategy (recall.Strategy)
  - RankingClient: candidate scoring (recommend.RankingProvider)
  - HotContentClient: upstream popular content (fallback.HotSource)

Clients do no retrying and hold no breaker of their own. The orchestrator
wraps every call in the per-dependency circuit breaker and a context
deadline, so a client only has to honor ctx and report failures.

Wire format:

	GET  {feature_url}/v1/users/{user_id}/features
	     -> {"user_id": "u1", "features": {"ctr": 0.12}, "preferences": ["tech"]}
	POST {recall_url}/v1/recall
	     {"strategy": "collab", "user_id": "u1", "content_type": "article", "size": 30, ...}
	     -> {"items": [{"content_id": "a1", "score": 0.93}]}
	POST {ranking_url}/v1/rank
	     {"user_id": "u1", "variant": "ranking_v2", "candidates": [...], "features": {...}}
	     -> {"items": [{"content_id": "a1", "score": 0.88, "reason": "...", "confidence": 0.7}]}
	GET  {hot_url}/v1/hot?content_type=article&size=50
	     -> {"items": [{"content_id": "a1", "score": 1520}]}
*/
package providers
