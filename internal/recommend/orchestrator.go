// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/recommendcore/internal/breaker"
	"github.com/tomtom215/recommendcore/internal/logging"
	"github.com/tomtom215/recommendcore/internal/metrics"
	"github.com/tomtom215/recommendcore/internal/models"
	"github.com/tomtom215/recommendcore/internal/validation"
)

// Outcome labels for recommend_requests_total.
const (
	outcomeCacheHit = "cache_hit"
	outcomeComputed = "computed"
	outcomeDegraded = "degraded"
	outcomeFallback = "fallback"
	outcomeInvalid  = "invalid"
)

// Orchestrator turns a RecommendRequest into a ranked response.
// It is safe for concurrent use.
type Orchestrator struct {
	config *Config
	deps   Dependencies
	logger zerolog.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewOrchestrator creates an orchestrator.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewOrchestrator(cfg *Config, deps Dependencies, logger zerolog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return &Orchestrator{
		config: cfg,
		deps:   deps,
		logger: logger.With().Str("component", "recommend").Logger(),
		now:    time.Now,
	}, nil
}

// CacheKey returns the response cache key for a user and content type.
func CacheKey(userID string, contentType models.ContentType) string {
	return "rec:" + userID + ":" + string(contentType)
}

// GetRecommendations returns at most req.Size items for req.
//
// The only error it returns wraps ErrInvalidRequest. Every dependency
// failure degrades the response instead: anonymous features, a fallback
// list, or a shorter list.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) GetRecommendations(ctx context.Context, req models.RecommendRequest) (*models.RecommendResponse, error) {
	start := o.now()
	req = prepareRequest(req)

	if verr := validation.ValidateStruct(req); verr != nil {
		metrics.RecordRecommendation(string(req.ContentType), outcomeInvalid, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, verr)
	}

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = logging.GenerateRequestID()
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}
	logger := o.createRequestLogger(req, requestID)
	ctx = logging.ContextWithLogger(ctx, logger)

	ctx, cancel := context.WithTimeout(ctx, o.config.OverallTimeout)
	defer cancel()

	key := CacheKey(req.UserID, req.ContentType)
	if resp := o.tryGetCachedResponse(ctx, key, req); resp != nil {
		resp.RequestID = requestID
		o.recordExposures(req.UserID, resp)
		metrics.RecordRecommendation(string(req.ContentType), outcomeCacheHit, time.Since(start))
		logger.Debug().Int("items", resp.Total).Msg("Served from cache")
		return resp, nil
	}

	shared := o.computeShared(ctx, req, key)
	resp := cloneResponse(shared.response)
	resp.RequestID = requestID

	o.recordExposures(req.UserID, resp)
	metrics.RecordRecommendation(string(req.ContentType), shared.outcome, time.Since(start))

	logger.Debug().
		Str("algorithm_version", resp.AlgorithmVersion).
		Int("items", resp.Total).
		Dur("latency", time.Since(start)).
		Msg("Recommendation complete")

	return resp, nil
}

// prepareRequest canonicalizes enum-like fields before validation.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func prepareRequest(req models.RecommendRequest) models.RecommendRequest {
	req.UserID = strings.TrimSpace(req.UserID)
	if ct, ok := models.ParseContentType(string(req.ContentType)); ok {
		req.ContentType = ct
	}
	return req
}

// createRequestLogger creates a logger with request context.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) createRequestLogger(req models.RecommendRequest, requestID string) zerolog.Logger {
	return o.logger.With().
		Str("request_id", requestID).
		Str("user_id", req.UserID).
		Str("content_type", string(req.ContentType)).
		Int("size", req.Size).
		Logger()
}

// computeShared collapses concurrent identical misses into one pipeline
// run. The run is detached from every caller's cancellation and bounded by
// OverallTimeout; each caller waits on its own context and gets a fallback
// if that ends first.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) computeShared(ctx context.Context, req models.RecommendRequest, key string) *pipelineResult {
	flightKey := key + ":" + strconv.Itoa(req.Size)
	ch := o.group.DoChan(flightKey, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.OverallTimeout)
		defer cancel()
		return o.compute(runCtx, req, key), nil
	})

	select {
	case res := <-ch:
		shared, _ := res.Val.(*pipelineResult)
		return shared
	case <-ctx.Done():
		return o.fallback(ctx, req, reasonAbandoned, ctx.Err())
	}
}

// InvalidateUser drops the cached responses of every deduplicated content
// type for userID. Call it after recording exposures outside the serve
// path, so a cached list cannot keep returning content the user has seen.
func (o *Orchestrator) InvalidateUser(ctx context.Context, userID string) error {
	var errs []error
	for _, ct := range o.config.DedupContentTypes {
		if err := o.deps.Cache.Delete(ctx, CacheKey(userID, ct)); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", ct, err))
		}
	}
	return errors.Join(errs...)
}

// pipelineResult is what one singleflight run produces.
type pipelineResult struct {
	response *models.RecommendResponse
	outcome  string
}

// compute runs the full pipeline after a cache miss. It never fails.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) compute(ctx context.Context, req models.RecommendRequest, key string) *pipelineResult {
	features, degraded := o.fetchFeatures(ctx, req)

	candidates, err := o.recall(ctx, features, req)
	if err != nil {
		return o.fallback(ctx, req, reasonRecallFailed, err)
	}
	if len(candidates) == 0 {
		return o.fallback(ctx, req, reasonRecallEmpty, nil)
	}

	assignment := o.assignVariant(req.UserID)
	ranked, err := o.rank(ctx, features, candidates, assignment.Variant)
	if err != nil {
		return o.fallback(ctx, req, reasonRankingFailed, err)
	}
	if len(ranked) == 0 {
		return o.fallback(ctx, req, reasonRankingEmpty, nil)
	}

	items := o.finalizeItems(ctx, req, ranked)
	resp := &models.RecommendResponse{
		Items:            items,
		Total:            len(items),
		AlgorithmVersion: assignment.Variant,
		ExtraInfo:        map[string]string{"candidates": strconv.Itoa(len(candidates))},
		GeneratedAt:      o.now().UTC(),
	}
	if assignment.ExperimentName != "" {
		resp.ExtraInfo["experiment"] = assignment.ExperimentName
		resp.ExtraInfo["bucket"] = assignment.Bucket
	}

	outcome := outcomeComputed
	ttl := o.config.ResponseTTL
	if degraded {
		outcome = outcomeDegraded
		ttl = o.config.DegradedTTL
		resp.ExtraInfo["degraded"] = "features"
	}
	if ttl > 0 {
		o.cacheResponse(ctx, key, resp, ttl)
	}

	return &pipelineResult{response: resp, outcome: outcome}
}

// fetchFeatures returns the user's features, or anonymous features and
// degraded=true when the feature service is unavailable.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) fetchFeatures(ctx context.Context, req models.RecommendRequest) (models.FeatureSet, bool) {
	start := o.now()
	defer func() { metrics.ObserveStage("features", time.Since(start)) }()

	features, err := breaker.Execute(ctx, o.deps.Breakers.Get(BreakerFeature), func(ctx context.Context) (models.FeatureSet, error) {
		fctx, cancel := context.WithTimeout(ctx, o.config.FeatureTimeout)
		defer cancel()
		return o.deps.Features.GetFeatures(fctx, req.UserID, req.Context)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Feature fetch failed, continuing with anonymous features")
		anon := models.AnonymousFeatures(req.UserID)
		anon.Context = req.Context
		return anon, true
	}

	if features.UserID == "" {
		features.UserID = req.UserID
	}
	features.Sanitize()
	return features, false
}

//nolint:gocritic // hugeParam: features passed by value for immutability
func (o *Orchestrator) recall(ctx context.Context, features models.FeatureSet, req models.RecommendRequest) ([]models.CandidateItem, error) {
	start := o.now()
	defer func() { metrics.ObserveStage("recall", time.Since(start)) }()

	n := o.config.recallSize(req.Size)
	return breaker.Execute(ctx, o.deps.Breakers.Get(BreakerRecall), func(ctx context.Context) ([]models.CandidateItem, error) {
		rctx, cancel := context.WithTimeout(ctx, o.config.RecallTimeout)
		defer cancel()
		return o.deps.Recall.Recall(rctx, features, req.ContentType, n)
	})
}

//nolint:gocritic // hugeParam: features passed by value for immutability
func (o *Orchestrator) rank(ctx context.Context, features models.FeatureSet, candidates []models.CandidateItem, variant string) ([]models.RankedItem, error) {
	start := o.now()
	defer func() { metrics.ObserveStage("ranking", time.Since(start)) }()

	return breaker.Execute(ctx, o.deps.Breakers.Get(BreakerRanking), func(ctx context.Context) ([]models.RankedItem, error) {
		rctx, cancel := context.WithTimeout(ctx, o.config.RankingTimeout)
		defer cancel()
		return o.deps.Ranking.Rank(rctx, features, candidates, variant)
	})
}

// assignVariant picks the ranking variant. Any assignment problem falls
// back to the default variant with no experiment recorded.
func (o *Orchestrator) assignVariant(userID string) models.ExperimentAssignment {
	def := models.ExperimentAssignment{UserID: userID, Variant: o.config.DefaultVariant}
	if o.deps.Assigner == nil || o.config.RankingExperiment == "" {
		return def
	}

	a, err := o.deps.Assigner.Assign(userID, o.config.RankingExperiment)
	if err != nil || a.Variant == "" {
		return def
	}
	return a
}

// finalizeItems sorts, filters exposures, truncates and pads.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) finalizeItems(ctx context.Context, req models.RecommendRequest, ranked []models.RankedItem) []models.RankedItem {
	items := dedupeRanked(ranked)
	models.SortRankedItems(items)

	if o.config.dedups(req.ContentType) {
		items = o.filterExposed(ctx, req.UserID, items)
	}

	if len(items) > req.Size {
		items = items[:req.Size]
	}

	if len(items) < req.Size && o.config.PadFromHot {
		items = o.pad(ctx, req, items)
	}
	return items
}

// filterExposed drops items the user has already seen. A failed lookup
// serves the list unfiltered.
func (o *Orchestrator) filterExposed(ctx context.Context, userID string, items []models.RankedItem) []models.RankedItem {
	if o.deps.Exposures == nil {
		return items
	}
	filtered, err := o.deps.Exposures.FilterExposed(ctx, userID, items)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Exposure lookup failed, serving unfiltered")
		return items
	}
	return filtered
}

// pad appends hot items until items reaches req.Size, skipping anything
// already present or already exposed. Padded items score below every ranked
// item and keep the hot-pool order among themselves.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) pad(ctx context.Context, req models.RecommendRequest, items []models.RankedItem) []models.RankedItem {
	missing := req.Size - len(items)
	hot := o.deps.Fallback.HotItems(ctx, req.ContentType, req.Size+len(items))
	if o.config.dedups(req.ContentType) {
		hot = o.filterExposed(ctx, req.UserID, hot)
	}
	if len(hot) == 0 {
		return items
	}

	present := make(map[string]struct{}, len(items))
	for _, it := range items {
		present[it.ContentID] = struct{}{}
	}

	floor := 0.0
	if len(items) > 0 {
		floor = math.Min(items[len(items)-1].FinalScore, 0)
	}

	added := 0
	for _, h := range hot {
		if added == missing {
			break
		}
		if _, ok := present[h.ContentID]; ok {
			continue
		}
		present[h.ContentID] = struct{}{}
		items = append(items, models.RankedItem{
			ContentID:  h.ContentID,
			FinalScore: floor - float64(added+1),
			Reason:     "popular",
			Confidence: h.Confidence,
			Tags:       h.Tags,
		})
		added++
	}
	return items
}

// fallback builds a fallback result. Fallback responses are never cached.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) fallback(ctx context.Context, req models.RecommendRequest, reason string, cause error) *pipelineResult {
	event := logging.Ctx(ctx).Warn().Str("reason", reason)
	if cause != nil {
		event = event.Err(cause)
	}
	event.Msg("Serving fallback recommendations")

	resp := o.deps.Fallback.GetFallbackWithReason(ctx, req.ContentType, req.Size, reason)
	return &pipelineResult{response: resp, outcome: outcomeFallback}
}

// tryGetCachedResponse returns a cached response with at least req.Size
// items, truncated to req.Size. Cache errors and short entries are misses.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Orchestrator) tryGetCachedResponse(ctx context.Context, key string, req models.RecommendRequest) *models.RecommendResponse {
	start := o.now()
	defer func() { metrics.ObserveStage("cache_lookup", time.Since(start)) }()

	lctx, cancel := context.WithTimeout(ctx, o.config.CacheLookupTimeout)
	defer cancel()

	data, found, err := o.deps.Cache.Get(lctx, key)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Cache lookup failed, treating as miss")
		return nil
	}
	if !found {
		return nil
	}

	resp, err := decodeResponse(data)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return nil
	}
	if len(resp.Items) < req.Size {
		return nil
	}

	resp.Items = resp.Items[:req.Size]
	resp.Total = len(resp.Items)
	resp.FromCache = true
	return resp
}

// cacheResponse writes resp under key. Failures are logged only.
func (o *Orchestrator) cacheResponse(ctx context.Context, key string, resp *models.RecommendResponse, ttl time.Duration) {
	data, err := encodeResponse(resp)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to encode response for cache")
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.CacheWriteTimeout)
	defer cancel()

	if err := o.deps.Cache.Set(wctx, key, data, ttl); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to cache response")
	}
}

// recordExposures hands the served item IDs to the exposure writer.
func (o *Orchestrator) recordExposures(userID string, resp *models.RecommendResponse) {
	if o.deps.Writer == nil || len(resp.Items) == 0 {
		return
	}
	ids := make([]string, len(resp.Items))
	for i, it := range resp.Items {
		ids[i] = it.ContentID
	}
	o.deps.Writer.Enqueue(userID, ids)
}

// dedupeRanked keeps the highest-scored entry per ContentID.
func dedupeRanked(items []models.RankedItem) []models.RankedItem {
	best := make(map[string]int, len(items))
	out := make([]models.RankedItem, 0, len(items))
	for _, it := range items {
		if it.ContentID == "" {
			continue
		}
		if idx, ok := best[it.ContentID]; ok {
			if it.FinalScore > out[idx].FinalScore {
				out[idx] = it
			}
			continue
		}
		best[it.ContentID] = len(out)
		out = append(out, it)
	}
	return out
}

// cloneResponse copies resp deeply enough that callers can mutate the copy.
func cloneResponse(resp *models.RecommendResponse) *models.RecommendResponse {
	out := *resp
	out.Items = make([]models.RankedItem, len(resp.Items))
	copy(out.Items, resp.Items)
	if resp.ExtraInfo != nil {
		out.ExtraInfo = make(map[string]string, len(resp.ExtraInfo))
		for k, v := range resp.ExtraInfo {
			out.ExtraInfo[k] = v
		}
	}
	return &out
}
