// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/breaker"
	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/experiment"
	"github.com/tomtom215/recommendcore/internal/fallback"
	"github.com/tomtom215/recommendcore/internal/logging"
	"github.com/tomtom215/recommendcore/internal/models"
	"github.com/tomtom215/recommendcore/internal/recall"
	"github.com/tomtom215/recommendcore/internal/tracking"
)

// ========================================
// Stubs
// ========================================

type stubFeatures struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (s *stubFeatures) GetFeatures(ctx context.Context, userID string, reqCtx map[string]string) (models.FeatureSet, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.FeatureSet{}, ctx.Err()
		}
	}
	if s.err != nil {
		return models.FeatureSet{}, s.err
	}
	return models.FeatureSet{
		UserID:  userID,
		Values:  map[models.FeatureName]float64{models.FeatureActivityLevel: 0.7, "unknown": 1},
		Context: reqCtx,
	}, nil
}

type stubRecall struct {
	calls atomic.Int32
	err   error
	delay time.Duration
	ids   []string
	// gate, when set, blocks every call until it is closed.
	gate chan struct{}

	mu        sync.Mutex
	lastN     int
	anonymous bool
}

func (s *stubRecall) Recall(ctx context.Context, features models.FeatureSet, _ models.ContentType, n int) ([]models.CandidateItem, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastN = n
	s.anonymous = features.Anonymous
	s.mu.Unlock()

	if s.gate != nil {
		<-s.gate
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}

	items := make([]models.CandidateItem, 0, len(s.ids))
	for i, id := range s.ids {
		items = append(items, models.CandidateItem{
			ContentID:       id,
			SourceAlgorithm: "stub",
			RawScore:        float64(len(s.ids) - i),
			SourceWeight:    1,
		})
	}
	return items, nil
}

// stubRanking scores candidates by their recall score, keeping recall order.
type stubRanking struct {
	calls atomic.Int32
	err   error
	empty bool
	// shift is added to every recall score.
	shift float64

	mu          sync.Mutex
	lastVariant string
}

func (s *stubRanking) Rank(_ context.Context, _ models.FeatureSet, candidates []models.CandidateItem, variant string) ([]models.RankedItem, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastVariant = variant
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if s.empty {
		return nil, nil
	}
	out := make([]models.RankedItem, len(candidates))
	for i, c := range candidates {
		out[i] = models.RankedItem{ContentID: c.ContentID, FinalScore: c.RawScore + s.shift, Reason: "model", Confidence: 0.9}
	}
	return out, nil
}

// slowStrategy is a recall.Strategy that never answers before ctx ends.
type slowStrategy struct {
	name string
}

func (s slowStrategy) Name() string { return s.name }

func (s slowStrategy) Recall(ctx context.Context, _ models.FeatureSet, _ models.ContentType, _ int) ([]models.CandidateItem, error) {
	select {
	case <-time.After(time.Second):
		return []models.CandidateItem{{ContentID: "late", SourceAlgorithm: s.name, RawScore: 1}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordingSink struct {
	mu      sync.Mutex
	batches map[string][][]string
}

func (s *recordingSink) Enqueue(userID string, ids []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batches == nil {
		s.batches = make(map[string][][]string)
	}
	s.batches[userID] = append(s.batches[userID], ids)
	return true
}

func (s *recordingSink) count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches[userID])
}

// ========================================
// Fixture
// ========================================

type fixture struct {
	store    *cache.LocalStore
	features *stubFeatures
	recall   *stubRecall
	ranking  *stubRanking
	tracker  *tracking.ExposureTracker
	sink     *recordingSink
	breakers *breaker.Registry
	fallback *fallback.Controller
	cfg      *Config
	deps     Dependencies
	orch     *Orchestrator
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return out
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	f := &fixture{
		store:    cache.NewLocalStore(1000),
		features: &stubFeatures{},
		recall:   &stubRecall{ids: ids("c", 40)},
		ranking:  &stubRanking{},
		sink:     &recordingSink{},
	}
	f.tracker = tracking.NewExposureTracker(f.store, time.Hour)

	strict := breaker.DefaultSettings()
	strict.MinRequests = 1
	strict.FailureRatio = 1
	strict.CoolDown = time.Minute
	f.breakers = breaker.NewRegistry(breaker.DefaultSettings(), map[string]breaker.Settings{
		BreakerRanking: strict,
	}, zerolog.Nop())

	assigner, err := experiment.NewAssigner([]experiment.Experiment{{
		Name:             "ranking_model",
		Enabled:          true,
		SplitPercentage:  50,
		ControlVariant:   "ranking_v1",
		TreatmentVariant: "ranking_v2",
	}})
	if err != nil {
		t.Fatalf("NewAssigner: %v", err)
	}

	f.fallback = fallback.NewController(fallback.NewCacheHotSource(f.store), fallback.Config{
		Static: map[models.ContentType][]string{models.ContentTypeMixed: {"s1", "s2", "s3"}},
	}, zerolog.Nop())

	cfg := DefaultConfig()
	cfg.OverallTimeout = 2 * time.Second
	cfg.FeatureTimeout = 200 * time.Millisecond
	cfg.RecallTimeout = 300 * time.Millisecond
	cfg.RankingTimeout = 300 * time.Millisecond
	cfg.CacheLookupTimeout = 200 * time.Millisecond
	cfg.CacheWriteTimeout = 200 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	f.cfg = cfg
	f.deps = Dependencies{
		Cache:     f.store,
		Features:  f.features,
		Recall:    f.recall,
		Ranking:   f.ranking,
		Fallback:  f.fallback,
		Breakers:  f.breakers,
		Exposures: f.tracker,
		Writer:    f.sink,
		Assigner:  assigner,
	}
	f.orch, err = NewOrchestrator(cfg, f.deps, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return f
}

func (f *fixture) seedHot(t *testing.T, ct models.ContentType, members ...cache.ScoredMember) {
	t.Helper()
	if err := f.store.ZAdd(context.Background(), fallback.HotPoolKey(ct), members...); err != nil {
		t.Fatalf("seed hot pool: %v", err)
	}
}

func contentIDs(items []models.RankedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ContentID
	}
	return out
}

func request(ct models.ContentType, size int) models.RecommendRequest {
	return models.RecommendRequest{UserID: "u1", ContentType: ct, Size: size}
}

// ========================================
// Construction
// ========================================

func TestNewOrchestrator_MissingDependency(t *testing.T) {
	_, err := NewOrchestrator(nil, Dependencies{Cache: cache.NewLocalStore(1)}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected missing dependency error")
	}
}

func TestNewOrchestrator_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverFetchFactor = 0
	_, err := NewOrchestrator(cfg, Dependencies{}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected config error")
	}
}

// ========================================
// Happy path and cache
// ========================================

func TestGetRecommendations_ComputesThenServesFromCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 10))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if first.FromCache {
		t.Error("first response should not come from cache")
	}
	if first.Total != 10 || len(first.Items) != 10 {
		t.Fatalf("expected 10 items, got total=%d len=%d", first.Total, len(first.Items))
	}
	if !models.RankedItemsSorted(first.Items) {
		t.Error("items are not sorted")
	}
	if first.IsFallback() {
		t.Errorf("unexpected fallback version %q", first.AlgorithmVersion)
	}
	if first.RequestID == "" {
		t.Error("request ID not set")
	}
	if first.ExtraInfo["experiment"] != "ranking_model" {
		t.Errorf("experiment not recorded: %v", first.ExtraInfo)
	}

	f.recall.mu.Lock()
	gotN := f.recall.lastN
	f.recall.mu.Unlock()
	if gotN != 30 {
		t.Errorf("recall size = %d, want 30", gotN)
	}

	second, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 5))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if !second.FromCache {
		t.Error("second response should come from cache")
	}
	if second.Total != 5 {
		t.Errorf("cached response should be truncated to 5, got %d", second.Total)
	}
	if second.RequestID == first.RequestID {
		t.Error("cached response reused the original request ID")
	}
	if f.recall.calls.Load() != 1 {
		t.Errorf("recall called %d times, want 1", f.recall.calls.Load())
	}
	if f.sink.count("u1") != 2 {
		t.Errorf("expected exposures enqueued for both responses, got %d", f.sink.count("u1"))
	}
}

func TestGetRecommendations_CachedTooShortIsMiss(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeProduct, 5)); err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	resp, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeProduct, 20))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.FromCache {
		t.Error("a cached list shorter than the requested size must not be served")
	}
	if resp.Total != 20 {
		t.Errorf("expected 20 items, got %d", resp.Total)
	}
}

func TestGetRecommendations_IdenticalRepeatServedFromCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 10))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	second, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 10))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}

	if first.FromCache || !second.FromCache {
		t.Fatalf("FromCache = %v then %v, want false then true", first.FromCache, second.FromCache)
	}
	if len(second.Items) != len(first.Items) {
		t.Fatalf("cached response has %d items, want %d", len(second.Items), len(first.Items))
	}
	for i := range first.Items {
		if second.Items[i].ContentID != first.Items[i].ContentID || second.Items[i].FinalScore != first.Items[i].FinalScore {
			t.Errorf("item %d = %+v, want %+v", i, second.Items[i], first.Items[i])
		}
	}
	if second.AlgorithmVersion != first.AlgorithmVersion {
		t.Errorf("AlgorithmVersion = %q, want %q", second.AlgorithmVersion, first.AlgorithmVersion)
	}
}

func TestGetRecommendations_EngagedExposureInvalidatesCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	consumer := tracking.NewFeedbackConsumer(nil, nil, f.tracker, zerolog.Nop())
	consumer.SetInvalidator(f.orch)

	first, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 10))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	clicked := first.Items[0].ContentID

	if err := consumer.Apply(ctx, models.FeedbackEvent{
		EventID:      "e1",
		UserID:       "u1",
		ContentID:    clicked,
		ContentType:  models.ContentTypeArticle,
		FeedbackType: models.FeedbackClick,
		Timestamp:    time.Now(),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	second, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 10))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if second.FromCache {
		t.Error("response cached before the exposure was served from cache")
	}
	for _, it := range second.Items {
		if it.ContentID == clicked {
			t.Fatalf("exposed item %s returned again", clicked)
		}
	}
	if second.Total != 10 {
		t.Errorf("expected 10 items, got %d", second.Total)
	}
}

func TestInvalidateUser_OnlyDedupContentTypes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, ct := range []models.ContentType{models.ContentTypeArticle, models.ContentTypeVideo, models.ContentTypeProduct} {
		if _, err := f.orch.GetRecommendations(ctx, request(ct, 3)); err != nil {
			t.Fatalf("GetRecommendations(%s): %v", ct, err)
		}
	}
	if err := f.orch.InvalidateUser(ctx, "u1"); err != nil {
		t.Fatalf("InvalidateUser: %v", err)
	}

	tests := []struct {
		ct        models.ContentType
		wantCache bool
	}{
		{models.ContentTypeArticle, false},
		{models.ContentTypeVideo, false},
		{models.ContentTypeProduct, true},
	}
	for _, tt := range tests {
		if _, found, _ := f.store.Get(ctx, CacheKey("u1", tt.ct)); found != tt.wantCache {
			t.Errorf("%s cached = %v, want %v", tt.ct, found, tt.wantCache)
		}
	}
}

func TestGetRecommendations_UsesRequestIDFromContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx := logging.ContextWithRequestID(context.Background(), "req-42")

	resp, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeProduct, 3))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", resp.RequestID)
	}
}

func TestGetRecommendations_NormalizesContentType(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.orch.GetRecommendations(context.Background(), models.RecommendRequest{
		UserID: "u1", ContentType: " Video ", Size: 3,
	})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("expected 3 items, got %d", resp.Total)
	}
	if _, found, _ := f.store.Get(context.Background(), CacheKey("u1", models.ContentTypeVideo)); !found {
		t.Error("response not cached under the normalized content type")
	}
}

// ========================================
// Validation
// ========================================

func TestGetRecommendations_InvalidRequest(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		req  models.RecommendRequest
	}{
		{"empty user", models.RecommendRequest{ContentType: models.ContentTypeArticle, Size: 5}},
		{"unknown content type", models.RecommendRequest{UserID: "u1", ContentType: "podcast", Size: 5}},
		{"zero size", models.RecommendRequest{UserID: "u1", ContentType: models.ContentTypeArticle, Size: 0}},
		{"oversized", models.RecommendRequest{UserID: "u1", ContentType: models.ContentTypeArticle, Size: 201}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.orch.GetRecommendations(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			if resp != nil {
				t.Error("expected nil response")
			}
		})
	}
	if f.recall.calls.Load() != 0 {
		t.Error("invalid requests must not reach recall")
	}
}

// ========================================
// Degradation and fallback
// ========================================

func TestGetRecommendations_FeatureFailureDegrades(t *testing.T) {
	f := newFixture(t, nil)
	f.features.err = errors.New("feature service down")

	resp, err := f.orch.GetRecommendations(context.Background(), request(models.ContentTypeArticle, 5))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.IsFallback() {
		t.Error("feature failure alone must not trigger fallback")
	}
	if resp.ExtraInfo["degraded"] != "features" {
		t.Errorf("expected degraded marker, got %v", resp.ExtraInfo)
	}
	f.recall.mu.Lock()
	anon := f.recall.anonymous
	f.recall.mu.Unlock()
	if !anon {
		t.Error("recall should receive anonymous features")
	}
}

func TestGetRecommendations_DegradedNotCachedWhenTTLZero(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.DegradedTTL = 0 })
	f.features.err = errors.New("down")

	if _, err := f.orch.GetRecommendations(context.Background(), request(models.ContentTypeArticle, 5)); err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if _, found, _ := f.store.Get(context.Background(), CacheKey("u1", models.ContentTypeArticle)); found {
		t.Error("degraded response cached despite DegradedTTL=0")
	}
}

func TestGetRecommendations_RecallFailureFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.recall.err = errors.New("all strategies failed")
	f.seedHot(t, models.ContentTypeArticle,
		cache.ScoredMember{Member: "h1", Score: 9},
		cache.ScoredMember{Member: "h2", Score: 7},
	)

	resp, err := f.orch.GetRecommendations(context.Background(), request(models.ContentTypeArticle, 5))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.AlgorithmVersion != fallback.VersionHot {
		t.Errorf("AlgorithmVersion = %q, want %q", resp.AlgorithmVersion, fallback.VersionHot)
	}
	if resp.ExtraInfo["fallback_reason"] != reasonRecallFailed {
		t.Errorf("fallback_reason = %q", resp.ExtraInfo["fallback_reason"])
	}
	if _, found, _ := f.store.Get(context.Background(), CacheKey("u1", models.ContentTypeArticle)); found {
		t.Error("fallback responses must not be cached")
	}
}

func TestGetRecommendations_RecallTimeoutFallsBackToStatic(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RecallTimeout = 20 * time.Millisecond })
	f.recall.delay = time.Second

	start := time.Now()
	resp, err := f.orch.GetRecommendations(context.Background(), request(models.ContentTypeVideo, 2))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("recall timeout not enforced, took %v", elapsed)
	}
	if resp.AlgorithmVersion != fallback.VersionStatic {
		t.Errorf("AlgorithmVersion = %q, want %q", resp.AlgorithmVersion, fallback.VersionStatic)
	}
	if resp.Total != 2 {
		t.Errorf("expected 2 static items, got %d", resp.Total)
	}
}

func TestGetRecommendations_AllRecallStrategiesTimeOut(t *testing.T) {
	f := newFixture(t, nil)
	f.seedHot(t, models.ContentTypeArticle,
		cache.ScoredMember{Member: "h1", Score: 9},
		cache.ScoredMember{Member: "h2", Score: 7},
		cache.ScoredMember{Member: "h3", Score: 5},
	)

	merger, err := recall.NewMerger([]recall.WeightedStrategy{
		{Strategy: slowStrategy{name: "trending"}, Weight: 1, Timeout: 20 * time.Millisecond},
		{Strategy: slowStrategy{name: "similar"}, Weight: 1, Timeout: 20 * time.Millisecond},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	deps := f.deps
	deps.Recall = merger
	orch, err := NewOrchestrator(f.cfg, deps, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	ctx := context.Background()
	resp, err := orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 3))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.AlgorithmVersion != fallback.VersionHot {
		t.Fatalf("AlgorithmVersion = %q, want %q", resp.AlgorithmVersion, fallback.VersionHot)
	}

	hot := f.fallback.HotItems(ctx, models.ContentTypeArticle, 3)
	if len(resp.Items) != len(hot) {
		t.Fatalf("items = %v, want hot list %v", contentIDs(resp.Items), contentIDs(hot))
	}
	for i := range hot {
		if resp.Items[i].ContentID != hot[i].ContentID || resp.Items[i].FinalScore != hot[i].FinalScore {
			t.Errorf("item %d = %+v, want %+v", i, resp.Items[i], hot[i])
		}
	}
}

func TestGetRecommendations_EmptyRecallFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.recall.ids = nil

	resp, err := f.orch.GetRecommendations(context.Background(), request(models.ContentTypeArticle, 3))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.ExtraInfo["fallback_reason"] != reasonRecallEmpty {
		t.Errorf("fallback_reason = %q, want %q", resp.ExtraInfo["fallback_reason"], reasonRecallEmpty)
	}
	if f.ranking.calls.Load() != 0 {
		t.Error("ranking must not run without candidates")
	}
}

func TestGetRecommendations_RankingBreakerOpens(t *testing.T) {
	f := newFixture(t, nil)
	f.ranking.err = errors.New("ranking 503")
	ctx := context.Background()

	resp, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 3))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.ExtraInfo["fallback_reason"] != reasonRankingFailed {
		t.Errorf("fallback_reason = %q", resp.ExtraInfo["fallback_reason"])
	}
	if f.breakers.Get(BreakerRanking).State() != breaker.StateOpen {
		t.Fatalf("expected ranking breaker open, got %s", f.breakers.Get(BreakerRanking).State())
	}

	// With the breaker open, ranking is not called at all.
	resp, err = f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 3))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if !resp.IsFallback() {
		t.Error("expected fallback while breaker is open")
	}
	if got := f.ranking.calls.Load(); got != 1 {
		t.Errorf("ranking called %d times, want 1", got)
	}
}

func TestGetRecommendations_EmptyRankingFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.ranking.empty = true

	resp, err := f.orch.GetRecommendations(context.Background(), request(models.ContentTypeArticle, 3))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.ExtraInfo["fallback_reason"] != reasonRankingEmpty {
		t.Errorf("fallback_reason = %q, want %q", resp.ExtraInfo["fallback_reason"], reasonRankingEmpty)
	}
}

// ========================================
// Post-processing
// ========================================

func TestGetRecommendations_FiltersExposedItems(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.PadFromHot = false })
	f.recall.ids = []string{"a", "b", "c", "d"}
	ctx := context.Background()

	if err := f.tracker.RecordExposures(ctx, "u1", []string{"a", "c"}); err != nil {
		t.Fatalf("RecordExposures: %v", err)
	}

	resp, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 4))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	got := make([]string, len(resp.Items))
	for i, it := range resp.Items {
		got[i] = it.ContentID
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "d" {
		t.Errorf("items = %v, want [b d]", got)
	}
}

func TestGetRecommendations_NoExposureFilterForProducts(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.PadFromHot = false })
	f.recall.ids = []string{"a", "b"}
	ctx := context.Background()

	if err := f.tracker.RecordExposure(ctx, "u1", "a"); err != nil {
		t.Fatalf("RecordExposure: %v", err)
	}
	resp, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeProduct, 2))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("products are not deduplicated, expected 2 items, got %d", resp.Total)
	}
}

func TestGetRecommendations_PadsFromHotContent(t *testing.T) {
	f := newFixture(t, nil)
	f.recall.ids = []string{"a", "b"}
	f.seedHot(t, models.ContentTypeArticle,
		cache.ScoredMember{Member: "a", Score: 100},
		cache.ScoredMember{Member: "x", Score: 50},
		cache.ScoredMember{Member: "seen", Score: 40},
		cache.ScoredMember{Member: "y", Score: 30},
	)
	ctx := context.Background()
	if err := f.tracker.RecordExposure(ctx, "u1", "seen"); err != nil {
		t.Fatalf("RecordExposure: %v", err)
	}

	resp, err := f.orch.GetRecommendations(ctx, request(models.ContentTypeArticle, 4))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if resp.Total != 4 {
		t.Fatalf("expected padded list of 4, got %d: %+v", resp.Total, resp.Items)
	}
	if !models.RankedItemsSorted(resp.Items) {
		t.Error("padded list is not sorted")
	}

	seen := map[string]models.RankedItem{}
	for _, it := range resp.Items {
		if _, dup := seen[it.ContentID]; dup {
			t.Errorf("duplicate item %s", it.ContentID)
		}
		seen[it.ContentID] = it
	}
	if _, ok := seen["seen"]; ok {
		t.Error("exposed hot item was used for padding")
	}
	if it, ok := seen["x"]; !ok || it.FinalScore != -1 || it.Reason != "popular" {
		t.Errorf("expected padded item x with score -1, got %+v", it)
	}
	if got := contentIDs(resp.Items); got[0] != "a" || got[1] != "b" || got[2] != "x" || got[3] != "y" {
		t.Errorf("items = %v, want [a b x y]", got)
	}
}

func TestGetRecommendations_PadRanksBelowNegativeScores(t *testing.T) {
	f := newFixture(t, nil)
	f.recall.ids = []string{"a", "b"}
	f.ranking.shift = -10
	f.seedHot(t, models.ContentTypeArticle,
		cache.ScoredMember{Member: "x", Score: 50},
		cache.ScoredMember{Member: "y", Score: 30},
	)

	resp, err := f.orch.GetRecommendations(context.Background(), request(models.ContentTypeArticle, 4))
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	got := contentIDs(resp.Items)
	if len(got) != 4 || got[0] != "a" || got[1] != "b" || got[2] != "x" || got[3] != "y" {
		t.Fatalf("items = %v, want [a b x y]", got)
	}
	if !models.RankedItemsSorted(resp.Items) {
		t.Error("padded list is not sorted")
	}
	if resp.Items[2].FinalScore >= resp.Items[1].FinalScore {
		t.Errorf("pad score %v not below lowest ranked score %v", resp.Items[2].FinalScore, resp.Items[1].FinalScore)
	}
}

func TestGetRecommendations_DeduplicatesRankerOutput(t *testing.T) {
	got := dedupeRanked([]models.RankedItem{
		{ContentID: "a", FinalScore: 1},
		{ContentID: "b", FinalScore: 2},
		{ContentID: "a", FinalScore: 3},
		{ContentID: "", FinalScore: 9},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].ContentID != "a" || got[0].FinalScore != 3 {
		t.Errorf("expected best score kept for a, got %+v", got[0])
	}
}

// ========================================
// Concurrency
// ========================================

func TestGetRecommendations_CollapsesConcurrentMisses(t *testing.T) {
	f := newFixture(t, nil)
	f.recall.gate = make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*models.RecommendResponse, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.orch.GetRecommendations(context.Background(), request(models.ContentTypeArticle, 5))
			if err != nil {
				t.Errorf("GetRecommendations: %v", err)
				return
			}
			results[i] = resp
		}(i)
	}

	// Give every caller time to join the in-flight computation.
	time.Sleep(100 * time.Millisecond)
	close(f.recall.gate)
	wg.Wait()

	if got := f.recall.calls.Load(); got != 1 {
		t.Errorf("recall called %d times, want 1", got)
	}
	requestIDs := map[string]bool{}
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Total != 5 {
			t.Errorf("expected 5 items, got %d", r.Total)
		}
		requestIDs[r.RequestID] = true
	}
	if len(requestIDs) != callers {
		t.Errorf("expected %d distinct request IDs, got %d", callers, len(requestIDs))
	}
}

func TestGetRecommendations_CancelledCallerDoesNotDegradeSharedFlight(t *testing.T) {
	f := newFixture(t, nil)
	f.recall.delay = 200 * time.Millisecond

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	var respA *models.RecommendResponse
	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		respA, _ = f.orch.GetRecommendations(ctxA, request(models.ContentTypeArticle, 5))
	}()

	deadline := time.Now().Add(time.Second)
	for f.recall.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first caller never reached recall")
		}
		time.Sleep(time.Millisecond)
	}

	var respB *models.RecommendResponse
	var errB error
	doneB := make(chan struct{})
	go func() {
		defer close(doneB)
		respB, errB = f.orch.GetRecommendations(context.Background(), request(models.ContentTypeArticle, 5))
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()
	<-doneA
	<-doneB

	if errB != nil {
		t.Fatalf("GetRecommendations: %v", errB)
	}
	if respB.IsFallback() {
		t.Errorf("second caller got %q (%s) after the first caller cancelled", respB.AlgorithmVersion, respB.ExtraInfo["fallback_reason"])
	}
	if respB.Total != 5 {
		t.Errorf("expected 5 items, got %d", respB.Total)
	}
	if respA == nil || respA.ExtraInfo["fallback_reason"] != reasonAbandoned {
		t.Errorf("cancelled caller response = %+v, want %s fallback", respA, reasonAbandoned)
	}
	if got := f.recall.calls.Load(); got != 1 {
		t.Errorf("recall called %d times, want 1", got)
	}
	if _, found, _ := f.store.Get(context.Background(), CacheKey("u1", models.ContentTypeArticle)); !found {
		t.Error("shared run did not cache its result")
	}
}

func TestCloneResponse_Independent(t *testing.T) {
	orig := &models.RecommendResponse{
		Items:     []models.RankedItem{{ContentID: "a"}},
		ExtraInfo: map[string]string{"k": "v"},
	}
	c := cloneResponse(orig)
	c.Items[0].ContentID = "b"
	c.ExtraInfo["k"] = "w"

	if orig.Items[0].ContentID != "a" || orig.ExtraInfo["k"] != "v" {
		t.Error("clone shares state with the original")
	}
}
