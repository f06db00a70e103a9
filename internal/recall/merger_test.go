// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recall

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/models"
)

// fakeStrategy returns fixed items after an optional delay.
type fakeStrategy struct {
	name  string
	items []models.CandidateItem
	err   error
	delay time.Duration
	panic bool
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Recall(ctx context.Context, _ models.FeatureSet, _ models.ContentType, _ int) ([]models.CandidateItem, error) {
	if f.panic {
		panic("boom")
	}
	if f.delay > 0 {
		// Ignores ctx on purpose to exercise abandonment.
		time.Sleep(f.delay)
	}
	return f.items, f.err
}

func items(pairs ...interface{}) []models.CandidateItem {
	out := make([]models.CandidateItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.CandidateItem{
			ContentID: pairs[i].(string),
			RawScore:  pairs[i+1].(float64),
		})
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func newTestMerger(t *testing.T, strategies ...WeightedStrategy) *Merger {
	t.Helper()
	m, err := NewMerger(strategies, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	return m
}

func TestMerger_WeightedSum(t *testing.T) {
	m := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "cf", items: items("a", 10.0, "b", 5.0)}, Weight: 0.6},
		WeightedStrategy{Strategy: &fakeStrategy{name: "pop", items: items("b", 2.0, "c", 1.0)}, Weight: 0.4},
	)

	got, err := m.Recall(context.Background(), models.FeatureSet{UserID: "u1"}, models.ContentTypeArticle, 10)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}

	// cf: a=1.0 b=0.5; pop: b=1.0 c=0.5
	// a = 0.6, b = 0.6*0.5 + 0.4*1.0 = 0.7, c = 0.4*0.5 = 0.2
	want := []struct {
		id    string
		score float64
		src   string
	}{
		{"b", 0.7, "cf+pop"},
		{"a", 0.6, "cf"},
		{"c", 0.2, "pop"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].ContentID != w.id || !approx(got[i].RawScore, w.score) || got[i].SourceAlgorithm != w.src {
			t.Errorf("candidate %d = %+v, want %s %.2f %s", i, got[i], w.id, w.score, w.src)
		}
	}
	if !approx(got[0].SourceWeight, 1.0) {
		t.Errorf("SourceWeight(b) = %v, want 1.0", got[0].SourceWeight)
	}
}

func TestMerger_TieBreakAndTruncate(t *testing.T) {
	m := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "s", items: items("d", 1.0, "b", 1.0, "c", 1.0, "a", 1.0)}, Weight: 1},
	)

	got, err := m.Recall(context.Background(), models.FeatureSet{}, models.ContentTypeVideo, 3)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	ids := []string{}
	for _, c := range got {
		ids = append(ids, c.ContentID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("ids = %v, want [a b c]", ids)
	}
}

func TestMerger_NeverPads(t *testing.T) {
	m := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "s", items: items("a", 1.0)}, Weight: 1},
	)
	got, _ := m.Recall(context.Background(), models.FeatureSet{}, models.ContentTypeVideo, 50)
	if len(got) != 1 {
		t.Errorf("got %d candidates, want 1", len(got))
	}
}

func TestMerger_PartialFailure(t *testing.T) {
	m := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "ok", items: items("a", 3.0, "b", 1.0)}, Weight: 1},
		WeightedStrategy{Strategy: &fakeStrategy{name: "broken", err: errors.New("connection refused")}, Weight: 1},
	)

	outcome := m.Run(context.Background(), models.FeatureSet{}, models.ContentTypeArticle, 10)
	if failed := outcome.Failed(); len(failed) != 1 || failed[0] != "broken" {
		t.Errorf("Failed() = %v, want [broken]", failed)
	}
	if outcome.AllFailed() {
		t.Error("AllFailed() = true with one healthy strategy")
	}
	if len(outcome.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(outcome.Candidates))
	}

	got, err := m.Recall(context.Background(), models.FeatureSet{}, models.ContentTypeArticle, 10)
	if err != nil || len(got) != 2 {
		t.Errorf("Recall = %d items, err %v", len(got), err)
	}
}

func TestMerger_TimeoutAbandonsStrategy(t *testing.T) {
	m := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "fast", items: items("a", 1.0)}, Weight: 1, Timeout: 200 * time.Millisecond},
		WeightedStrategy{Strategy: &fakeStrategy{name: "slow", items: items("z", 9.0), delay: 500 * time.Millisecond}, Weight: 1, Timeout: 20 * time.Millisecond},
	)

	start := time.Now()
	outcome := m.Run(context.Background(), models.FeatureSet{}, models.ContentTypeArticle, 10)
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("Run waited %v for an abandoned strategy", elapsed)
	}
	slow := outcome.Results[1]
	if !errors.Is(slow.Err, context.DeadlineExceeded) {
		t.Errorf("slow strategy err = %v, want deadline exceeded", slow.Err)
	}
	if len(outcome.Candidates) != 1 || outcome.Candidates[0].ContentID != "a" {
		t.Errorf("candidates = %+v, want only a", outcome.Candidates)
	}
}

func TestMerger_AllFail(t *testing.T) {
	m := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "slow", delay: 200 * time.Millisecond}, Weight: 1, Timeout: 10 * time.Millisecond},
		WeightedStrategy{Strategy: &fakeStrategy{name: "err", err: errors.New("503")}, Weight: 1},
		WeightedStrategy{Strategy: &fakeStrategy{name: "panics", panic: true}, Weight: 1},
	)

	got, err := m.Recall(context.Background(), models.FeatureSet{}, models.ContentTypeArticle, 10)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("candidates = %v, want empty non-nil slice", got)
	}
}

func TestMerger_ParentDeadline(t *testing.T) {
	m := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "slow", items: items("a", 1.0), delay: 200 * time.Millisecond}, Weight: 1, Timeout: time.Second},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Recall(ctx, models.FeatureSet{}, models.ContentTypeArticle, 10)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Errorf("err = %v, want ErrAllStrategiesFailed", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Error("strategy timeout was not bounded by the parent deadline")
	}
}

func TestNewMerger_Weights(t *testing.T) {
	m := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "a"}, Weight: 3},
		WeightedStrategy{Strategy: &fakeStrategy{name: "b"}, Weight: 1},
	)
	w := m.Weights()
	if !approx(w["a"], 0.75) || !approx(w["b"], 0.25) {
		t.Errorf("Weights() = %v", w)
	}

	equal := newTestMerger(t,
		WeightedStrategy{Strategy: &fakeStrategy{name: "a"}},
		WeightedStrategy{Strategy: &fakeStrategy{name: "b"}},
	)
	w = equal.Weights()
	if !approx(w["a"], 0.5) || !approx(w["b"], 0.5) {
		t.Errorf("zero weights not equalized: %v", w)
	}
}

func TestNewMerger_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		strategies []WeightedStrategy
	}{
		{"empty", nil},
		{"nil strategy", []WeightedStrategy{{Weight: 1}}},
		{"negative weight", []WeightedStrategy{{Strategy: &fakeStrategy{name: "a"}, Weight: -1}}},
		{"duplicate", []WeightedStrategy{
			{Strategy: &fakeStrategy{name: "a"}, Weight: 1},
			{Strategy: &fakeStrategy{name: "a"}, Weight: 1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMerger(tt.strategies, zerolog.Nop()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNormalizeScores(t *testing.T) {
	tests := []struct {
		name  string
		items []models.CandidateItem
		want  map[string]float64
	}{
		{"non-negative divides by max", items("a", 4.0, "b", 2.0, "c", 0.0), map[string]float64{"a": 1, "b": 0.5, "c": 0}},
		{"negative uses min-max", items("a", 1.0, "b", -1.0, "c", 0.0), map[string]float64{"a": 1, "b": 0, "c": 0.5}},
		{"single value", items("a", 7.0), map[string]float64{"a": 1}},
		{"all equal", items("a", 0.0, "b", 0.0), map[string]float64{"a": 1, "b": 1}},
		{"duplicates keep max", items("a", 1.0, "a", 4.0, "b", 2.0), map[string]float64{"a": 1, "b": 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeScores(tt.items)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for id, w := range tt.want {
				if !approx(got[id], w) {
					t.Errorf("%s = %v, want %v", id, got[id], w)
				}
			}
		})
	}
}
