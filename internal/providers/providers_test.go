// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recommendcore/internal/models"
)

func newServer(t *testing.T, handler http.HandlerFunc) ClientConfig {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return ClientConfig{BaseURL: srv.URL + "/", Timeout: time.Second}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode: %v", err)
	}
}

func TestFeatureClient_GetFeatures(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/users/u 1/features" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(t, w, map[string]interface{}{
			"user_id":     "u 1",
			"features":    map[string]float64{"ctr": 0.12, "activity_level": 3, "shoe_size": 44},
			"preferences": []string{"tech", "science"},
		})
	})

	c, err := NewFeatureClient(cfg)
	if err != nil {
		t.Fatalf("NewFeatureClient: %v", err)
	}
	set, err := c.GetFeatures(context.Background(), "u 1", map[string]string{"device": "ios"})
	if err != nil {
		t.Fatalf("GetFeatures: %v", err)
	}

	if v, ok := set.Value(models.FeatureClickThroughRate); !ok || v != 0.12 {
		t.Errorf("ctr = %v, %v", v, ok)
	}
	if _, ok := set.Values["shoe_size"]; ok {
		t.Error("unknown feature not sanitized")
	}
	if set.Anonymous {
		t.Error("fetched features marked anonymous")
	}
	if len(set.Preferences) != 2 || set.Context["device"] != "ios" {
		t.Errorf("set = %+v", set)
	}
}

func TestFeatureClient_StatusError(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "feature store overloaded", http.StatusServiceUnavailable)
	})
	c, _ := NewFeatureClient(cfg)

	_, err := c.GetFeatures(context.Background(), "u1", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || !se.Temporary() {
		t.Errorf("status error = %+v", se)
	}
	if se.Body != "feature store overloaded" {
		t.Errorf("body = %q", se.Body)
	}
}

func TestFeatureClient_HonorsContextDeadline(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		writeJSON(t, w, map[string]interface{}{})
	})
	c, _ := NewFeatureClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.GetFeatures(ctx, "u1", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 300*time.Millisecond {
		t.Error("client did not abandon the call at the deadline")
	}
}

func TestRecallClient_Recall(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/recall" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req recallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Strategy != "collab" || req.UserID != "u1" || req.ContentType != models.ContentTypeArticle || req.Size != 2 {
			t.Errorf("request = %+v", req)
		}
		writeJSON(t, w, map[string]interface{}{
			"items": []map[string]interface{}{
				{"content_id": "a1", "score": 0.9},
				{"content_id": "", "score": 0.8},
				{"content_id": "a2", "score": 0.7},
				{"content_id": "a3", "score": 0.6},
			},
		})
	})

	c, err := NewRecallClient("collab", cfg)
	if err != nil {
		t.Fatalf("NewRecallClient: %v", err)
	}
	if c.Name() != "collab" {
		t.Errorf("Name() = %s", c.Name())
	}

	items, err := c.Recall(context.Background(), models.FeatureSet{UserID: "u1"}, models.ContentTypeArticle, 2)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(items) != 2 || items[0].ContentID != "a1" || items[1].ContentID != "a2" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].SourceAlgorithm != "collab" || items[0].RawScore != 0.9 {
		t.Errorf("item = %+v", items[0])
	}
}

func TestRankingClient_Rank(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req rankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Variant != "ranking_v2" || len(req.Candidates) != 2 {
			t.Errorf("request = %+v", req)
		}
		writeJSON(t, w, map[string]interface{}{
			"items": []map[string]interface{}{
				{"content_id": "a2", "score": 0.8, "reason": "similar users", "confidence": 0.6},
				{"content_id": "a1", "score": 0.4},
				{"content_id": "injected", "score": 0.99},
			},
		})
	})

	c, _ := NewRankingClient(cfg)
	ranked, err := c.Rank(context.Background(), models.FeatureSet{UserID: "u1"}, []models.CandidateItem{
		{ContentID: "a1", RawScore: 0.9},
		{ContentID: "a2", RawScore: 0.5},
	}, "ranking_v2")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranked = %+v; items outside the candidate set must be dropped", ranked)
	}
	if ranked[0].ContentID != "a2" || ranked[0].Reason != "similar users" || ranked[0].Confidence != 0.6 {
		t.Errorf("ranked[0] = %+v", ranked[0])
	}
}

func TestHotContentClient_HotContent(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("content_type") != "video" || r.URL.Query().Get("size") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		writeJSON(t, w, map[string]interface{}{
			"items": []map[string]interface{}{
				{"content_id": "v1", "score": 10},
				{"content_id": "v3", "score": 30},
				{"content_id": "v2", "score": 30},
			},
		})
	})

	c, _ := NewHotContentClient(cfg)
	items, err := c.HotContent(context.Background(), models.ContentTypeVideo, 2)
	if err != nil {
		t.Fatalf("HotContent: %v", err)
	}
	if len(items) != 2 || items[0].ContentID != "v2" || items[1].ContentID != "v3" {
		t.Errorf("items = %+v", items)
	}
}

func TestClients_Malformed(t *testing.T) {
	cfg := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	})
	c, _ := NewHotContentClient(cfg)
	if _, err := c.HotContent(context.Background(), models.ContentTypeVideo, 5); err == nil {
		t.Error("expected decode error")
	}
}

func TestNewClients_RequireURL(t *testing.T) {
	if _, err := NewFeatureClient(ClientConfig{}); !errors.Is(err, ErrEmptyBaseURL) {
		t.Errorf("feature: %v", err)
	}
	if _, err := NewRankingClient(ClientConfig{BaseURL: "  "}); !errors.Is(err, ErrEmptyBaseURL) {
		t.Errorf("ranking: %v", err)
	}
	if _, err := NewRecallClient("", ClientConfig{BaseURL: "http://x"}); err == nil {
		t.Error("recall without name should fail")
	}
}
