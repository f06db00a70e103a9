// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package breaker provides per-dependency circuit breakers built on sony/gobreaker.

A Registry owns one Breaker per dependency name ("feature-service",
"recall-service", "ranking-service", ...). Breakers are created lazily with the
registry defaults, or with a per-name override when one is configured.

# State Machine

	Closed ──(≥ MinRequests in Window and failure ratio ≥ FailureRatio)──▶ Open
	Open ──(CoolDown elapsed)──▶ HalfOpen
	HalfOpen ──(trial succeeds)──▶ Closed
	HalfOpen ──(trial fails)──▶ Open

The closed-state window is a rolling window of BucketPeriod-sized buckets.
In HalfOpen at most HalfOpenMaxCalls trial calls are admitted; the rest are
rejected like in Open.

# Usage

	features, err := breaker.Execute(ctx, registry.Get("feature-service"),
	    func(ctx context.Context) (models.FeatureSet, error) {
	        return provider.GetUserFeatures(ctx, userID)
	    })
	if errors.Is(err, breaker.ErrOpen) {
	    // dependency short-circuited, degrade
	}

# Thread Safety

All state lives inside gobreaker's mutex-guarded state machine; transition
bookkeeping used for snapshots is kept in atomics updated from the
state-change callback. A Registry and its Breakers are safe for concurrent use.
*/
package breaker
