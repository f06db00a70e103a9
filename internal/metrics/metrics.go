// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

// Package metrics declares the Prometheus collectors exported on /metrics.
//
// Collectors are registered on the default registry through promauto at
// package init, so any package can record without wiring. Label cardinality
// is bounded: dependency names, strategy names, content types and fixed
// outcome strings only. User and content IDs never appear as labels.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets tuned to a 500ms end-to-end SLO.
var pipelineBuckets = []float64{.005, .01, .025, .05, .1, .2, .3, .4, .5, .75, 1, 2.5}

var (
	// Orchestrator
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"content_type", "outcome"}, // outcome: "computed", "cache_hit", "fallback", "invalid"
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_duration_seconds",
			Help:    "End-to-end orchestration latency",
			Buckets: pipelineBuckets,
		},
		[]string{"outcome"},
	)

	RecommendStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_stage_duration_seconds",
			Help:    "Latency of individual pipeline stages",
			Buckets: pipelineBuckets,
		},
		[]string{"stage"}, // "cache_lookup", "features", "recall", "rank", "exposure_filter"
	)

	RecommendDegradedFeatures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_degraded_features_total",
			Help: "Requests served with anonymous features because the feature provider was unavailable",
		},
	)

	// Recall
	RecallStrategyResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_strategy_results_total",
			Help: "Recall strategy invocations by outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: "success", "error", "timeout"
	)

	RecallStrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recall_strategy_duration_seconds",
			Help:    "Recall strategy latency",
			Buckets: pipelineBuckets,
		},
		[]string{"strategy"},
	)

	RecallCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recall_merged_candidates",
			Help:    "Number of merged candidates returned by the recall merger",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected", "excluded"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits per tier",
		},
		[]string{"tier"}, // "l1", "l2"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses per tier",
		},
		[]string{"tier"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Cache operation failures per tier",
		},
		[]string{"tier", "operation"},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_l1_evictions_total",
			Help: "Entries evicted from the process-local cache tier",
		},
	)

	// Fallback
	FallbackResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_responses_total",
			Help: "Fallback responses by content type, source and trigger",
		},
		[]string{"content_type", "source", "reason"},
	)

	HotContentRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hot_content_refreshes_total",
			Help: "Hot-content pool refresh runs",
		},
		[]string{"source", "result"},
	)

	// Experiments
	ExperimentAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiment_assignments_total",
			Help: "Experiment bucket assignments",
		},
		[]string{"experiment", "bucket"},
	)

	// Exposure / feedback
	ExposuresRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exposures_recorded_total",
			Help: "Exposure writes by result",
		},
		[]string{"result"}, // "success", "error", "dropped"
	)

	ExposureQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exposure_queue_depth",
			Help: "Pending exposure batches waiting for the writer",
		},
	)

	FeedbackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_events_total",
			Help: "Feedback events by type and pipeline stage result",
		},
		[]string{"feedback_type", "result"}, // result: "published", "publish_failed", "stored", "store_failed", "invalid"
	)

	FeedbackLogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedback_log_entries",
			Help: "Entries in the feedback log as of the last GC pass",
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "API requests currently in flight",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: pipelineBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRecommendation records one orchestration outcome.
func RecordRecommendation(contentType, outcome string, duration time.Duration) {
	RecommendRequests.WithLabelValues(contentType, outcome).Inc()
	RecommendDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveStage records the latency of a single pipeline stage.
func ObserveStage(stage string, duration time.Duration) {
	RecommendStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordRecallStrategy records one recall strategy invocation.
func RecordRecallStrategy(strategy, outcome string, duration time.Duration) {
	RecallStrategyResults.WithLabelValues(strategy, outcome).Inc()
	RecallStrategyDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss for a cache tier.
func RecordCacheLookup(tier string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(tier).Inc()
		return
	}
	CacheMisses.WithLabelValues(tier).Inc()
}

// RecordCacheError records a failed cache operation.
func RecordCacheError(tier, operation string) {
	CacheErrors.WithLabelValues(tier, operation).Inc()
}

// RecordFallback records a degraded response.
func RecordFallback(contentType, source, reason string) {
	FallbackResponses.WithLabelValues(contentType, source, reason).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
