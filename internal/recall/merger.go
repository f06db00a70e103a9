// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recall

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/logging"
	"github.com/tomtom215/recommendcore/internal/metrics"
	"github.com/tomtom215/recommendcore/internal/models"
)

// ErrAllStrategiesFailed is returned by Recall when no strategy produced a result.
var ErrAllStrategiesFailed = errors.New("all recall strategies failed")

// DefaultStrategyTimeout applies to strategies configured without a timeout.
const DefaultStrategyTimeout = 150 * time.Millisecond

// WeightedStrategy pairs a strategy with its merge weight and deadline.
type WeightedStrategy struct {
	Strategy Strategy
	// Weight is relative; the Merger normalizes all weights to sum to 1.
	Weight float64
	// Timeout bounds this strategy. Zero means DefaultStrategyTimeout.
	Timeout time.Duration
}

type registered struct {
	strategy Strategy
	weight   float64
	timeout  time.Duration
}

// Merger runs recall strategies concurrently and merges their candidates.
// It is immutable after construction and safe for concurrent use.
type Merger struct {
	strategies []registered
	logger     zerolog.Logger
}

// NewMerger validates the strategy set and normalizes weights.
// If every weight is zero the strategies are weighted equally.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMerger(strategies []WeightedStrategy, logger zerolog.Logger) (*Merger, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one recall strategy is required")
	}

	seen := make(map[string]struct{}, len(strategies))
	sum := 0.0
	for _, ws := range strategies {
		if ws.Strategy == nil {
			return nil, fmt.Errorf("recall strategy is nil")
		}
		name := ws.Strategy.Name()
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("recall strategy %s registered twice", name)
		}
		seen[name] = struct{}{}
		if ws.Weight < 0 {
			return nil, fmt.Errorf("recall strategy %s: weight must be >= 0, got %f", name, ws.Weight)
		}
		sum += ws.Weight
	}

	m := &Merger{
		strategies: make([]registered, len(strategies)),
		logger:     logger.With().Str("component", "recall").Logger(),
	}
	for i, ws := range strategies {
		weight := 1.0 / float64(len(strategies))
		if sum > 0 {
			weight = ws.Weight / sum
		}
		timeout := ws.Timeout
		if timeout <= 0 {
			timeout = DefaultStrategyTimeout
		}
		m.strategies[i] = registered{strategy: ws.Strategy, weight: weight, timeout: timeout}
	}
	return m, nil
}

// Weights returns the normalized weight per strategy name.
func (m *Merger) Weights() map[string]float64 {
	out := make(map[string]float64, len(m.strategies))
	for _, s := range m.strategies {
		out[s.strategy.Name()] = s.weight
	}
	return out
}

// Outcome is the full result of one recall fan-out.
type Outcome struct {
	// Candidates is the merged, sorted, truncated list.
	Candidates []models.CandidateItem
	// Results has one entry per strategy, in registration order.
	Results []models.RecallResult
}

// Failed returns the names of strategies that errored or timed out.
func (o *Outcome) Failed() []string {
	var names []string
	for i := range o.Results {
		if o.Results[i].Failed() {
			names = append(names, o.Results[i].Algorithm)
		}
	}
	return names
}

// AllFailed reports whether no strategy succeeded.
func (o *Outcome) AllFailed() bool {
	return len(o.Failed()) == len(o.Results)
}

// Recall returns up to n merged candidates. Partial failures are logged;
// ErrAllStrategiesFailed is returned only when nothing succeeded.
//
//nolint:gocritic // hugeParam: features passed by value for immutability
func (m *Merger) Recall(ctx context.Context, features models.FeatureSet, contentType models.ContentType, n int) ([]models.CandidateItem, error) {
	outcome := m.Run(ctx, features, contentType, n)

	if outcome.AllFailed() {
		return []models.CandidateItem{}, fmt.Errorf("%w: %s", ErrAllStrategiesFailed, strings.Join(outcome.Failed(), ", "))
	}

	if failed := outcome.Failed(); len(failed) > 0 {
		logging.Ctx(ctx).Warn().
			Strs("failed_strategies", failed).
			Int("succeeded", len(outcome.Results)-len(failed)).
			Msg("Partial recall failure")
	}
	return outcome.Candidates, nil
}

// Run fans out to every strategy and merges whatever arrives in time.
//
//nolint:gocritic // hugeParam: features passed by value for immutability
func (m *Merger) Run(ctx context.Context, features models.FeatureSet, contentType models.ContentType, n int) *Outcome {
	results := m.runStrategies(ctx, features, contentType, n)
	candidates := m.merge(results, n)
	metrics.RecallCandidates.Observe(float64(len(candidates)))
	return &Outcome{Candidates: candidates, Results: results}
}

// runStrategies runs all strategies in parallel and waits for each to
// either answer or hit its deadline.
//
//nolint:gocritic // hugeParam: features passed by value for immutability
func (m *Merger) runStrategies(ctx context.Context, features models.FeatureSet, contentType models.ContentType, n int) []models.RecallResult {
	results := make([]models.RecallResult, len(m.strategies))
	var wg sync.WaitGroup

	for i, s := range m.strategies {
		wg.Add(1)
		go func(idx int, s registered) {
			defer wg.Done()
			results[idx] = m.runSingleStrategy(ctx, s, features, contentType, n)
		}(i, s)
	}

	wg.Wait()
	return results
}

type strategyAnswer struct {
	items []models.CandidateItem
	err   error
}

// runSingleStrategy invokes one strategy under its own deadline. On timeout
// the strategy goroutine is abandoned; its buffered channel lets it exit
// whenever it finishes.
//
//nolint:gocritic // hugeParam: features passed by value for immutability
func (m *Merger) runSingleStrategy(ctx context.Context, s registered, features models.FeatureSet, contentType models.ContentType, n int) models.RecallResult {
	name := s.strategy.Name()
	result := models.RecallResult{Algorithm: name, Weight: s.weight}
	start := time.Now()

	stratCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer := make(chan strategyAnswer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				answer <- strategyAnswer{err: fmt.Errorf("recall strategy %s panicked: %v", name, r)}
			}
		}()
		items, err := s.strategy.Recall(stratCtx, features, contentType, n)
		answer <- strategyAnswer{items: items, err: err}
	}()

	outcome := "success"
	select {
	case a := <-answer:
		result.Items, result.Err = a.items, a.err
		if a.err != nil {
			outcome = "error"
			if errors.Is(a.err, context.DeadlineExceeded) {
				outcome = "timeout"
			}
		}
	case <-stratCtx.Done():
		result.Err = fmt.Errorf("recall strategy %s: %w", name, stratCtx.Err())
		outcome = "timeout"
	}
	result.Elapsed = time.Since(start)

	metrics.RecordRecallStrategy(name, outcome, result.Elapsed)
	if result.Err != nil {
		m.logger.Debug().
			Str("strategy", name).
			Dur("elapsed", result.Elapsed).
			Err(result.Err).
			Msg("Recall strategy failed")
	}
	return result
}

// mergedItem accumulates one ContentID across strategies.
type mergedItem struct {
	score   float64
	weight  float64
	sources []string
}

// merge combines successful results into a sorted list of at most n items.
// n <= 0 means no limit.
func (m *Merger) merge(results []models.RecallResult, n int) []models.CandidateItem {
	combined := make(map[string]*mergedItem)

	for i := range results {
		r := &results[i]
		if r.Failed() || len(r.Items) == 0 {
			continue
		}
		for id, norm := range normalizeScores(r.Items) {
			item, ok := combined[id]
			if !ok {
				item = &mergedItem{}
				combined[id] = item
			}
			item.score += r.Weight * norm
			item.weight += r.Weight
			item.sources = append(item.sources, r.Algorithm)
		}
	}

	candidates := make([]models.CandidateItem, 0, len(combined))
	for id, item := range combined {
		sort.Strings(item.sources)
		candidates = append(candidates, models.CandidateItem{
			ContentID:       id,
			SourceAlgorithm: strings.Join(item.sources, "+"),
			RawScore:        item.score,
			SourceWeight:    item.weight,
		})
	}

	SortCandidates(candidates)
	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// normalizeScores maps one strategy's raw scores into [0, 1], keyed by
// ContentID. Duplicate IDs keep their highest score.
func normalizeScores(items []models.CandidateItem) map[string]float64 {
	raw := make(map[string]float64, len(items))
	for _, it := range items {
		if prev, ok := raw[it.ContentID]; !ok || it.RawScore > prev {
			raw[it.ContentID] = it.RawScore
		}
	}

	first := true
	var lo, hi float64
	for _, s := range raw {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make(map[string]float64, len(raw))
	for id, s := range raw {
		switch {
		case hi == lo:
			out[id] = 1
		case lo >= 0:
			out[id] = s / hi
		default:
			out[id] = (s - lo) / (hi - lo)
		}
	}
	return out
}

// SortCandidates orders by descending RawScore, ties by ascending ContentID.
func SortCandidates(items []models.CandidateItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].RawScore != items[j].RawScore {
			return items[i].RawScore > items[j].RawScore
		}
		return items[i].ContentID < items[j].ContentID
	})
}
