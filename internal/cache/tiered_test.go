// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/metrics"
)

func newTestTieredStore(t *testing.T, l1TTL time.Duration) (*TieredStore, *RedisStore, *miniredis.Miniredis) {
	t.Helper()
	l2, mr := newTestRedisStore(t)
	store := NewTieredStore(NewLocalStore(100), l2, TieredConfig{
		L1TTL:         l1TTL,
		LookupTimeout: time.Second,
	}, zerolog.Nop())
	return store, l2, mr
}

func TestTieredStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store, l2, _ := newTestTieredStore(t, time.Minute)

	// Written by another instance: only in L2
	if err := l2.Set(ctx, "rec:u1:article", []byte("shared"), 10*time.Minute); err != nil {
		t.Fatalf("seed L2: %v", err)
	}

	l2Hits := testutil.ToFloat64(metrics.CacheHits.WithLabelValues(tierL2))
	v, found, err := store.Get(ctx, "rec:u1:article")
	if err != nil || !found || string(v) != "shared" {
		t.Fatalf("Get = %q, %v, %v", v, found, err)
	}
	if got := testutil.ToFloat64(metrics.CacheHits.WithLabelValues(tierL2)); got != l2Hits+1 {
		t.Errorf("l2 hits = %v, want %v", got, l2Hits+1)
	}

	// L1 is now populated
	if _, found, _ := store.Local().Get(ctx, "rec:u1:article"); !found {
		t.Error("L2 hit did not populate L1")
	}
}

func TestTieredStore_L1NeverOutlivesL2(t *testing.T) {
	ctx := context.Background()
	store, l2, _ := newTestTieredStore(t, time.Hour)

	_ = l2.Set(ctx, "short", []byte("v"), 30*time.Millisecond)
	if _, found, _ := store.Get(ctx, "short"); !found {
		t.Fatal("expected L2 hit")
	}

	time.Sleep(60 * time.Millisecond)

	if _, found, _ := store.Local().Get(ctx, "short"); found {
		t.Error("L1 copy outlived the L2 TTL")
	}
}

func TestTieredStore_SetWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	store, _, mr := newTestTieredStore(t, time.Minute)

	if err := store.Set(ctx, "k", []byte("v"), 10*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("rc:k") {
		t.Error("value not written to L2")
	}
	if _, found, _ := store.Local().Get(ctx, "k"); !found {
		t.Error("value not written to L1")
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists("rc:k") {
		t.Error("Delete left L2 copy")
	}
	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("Delete left a readable copy")
	}
}

func TestTieredStore_L2Failure(t *testing.T) {
	ctx := context.Background()
	store, _, mr := newTestTieredStore(t, time.Minute)

	mr.SetError("ERR injected failure")
	defer mr.SetError("")

	before := testutil.ToFloat64(metrics.CacheErrors.WithLabelValues(tierL2, "get"))
	if _, found, err := store.Get(ctx, "k"); err == nil || found {
		t.Errorf("Get with failing L2 = found %v err %v, want error", found, err)
	}
	if got := testutil.ToFloat64(metrics.CacheErrors.WithLabelValues(tierL2, "get")); got != before+1 {
		t.Errorf("cache errors = %v, want %v", got, before+1)
	}

	// L1 still takes the write
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Error("Set with failing L2 should report the error")
	}
	if v, found, err := store.Get(ctx, "k"); err != nil || !found || string(v) != "v" {
		t.Errorf("L1 fallback Get = %q, %v, %v", v, found, err)
	}
}

func TestTieredStore_SortedSetsUseSharedTier(t *testing.T) {
	ctx := context.Background()
	store, _, mr := newTestTieredStore(t, time.Minute)

	if _, err := store.ZIncrBy(ctx, "hot:article", "a1", 3); err != nil {
		t.Fatalf("ZIncrBy: %v", err)
	}
	score, err := mr.ZScore("rc:hot:article", "a1")
	if err != nil || score != 3 {
		t.Errorf("L2 score = %v, %v; want 3", score, err)
	}
	if _, found, _ := store.Local().ZScore(ctx, "hot:article", "a1"); found {
		t.Error("sorted set leaked into L1")
	}
}

func TestTieredStore_LocalOnly(t *testing.T) {
	ctx := context.Background()
	store := NewTieredStore(NewLocalStore(10), nil, TieredConfig{L1TTL: time.Minute}, zerolog.Nop())

	_ = store.Set(ctx, "k", []byte("v"), time.Hour)
	if _, found, err := store.Get(ctx, "k"); err != nil || !found {
		t.Errorf("Get = %v, %v", found, err)
	}
	_ = store.ZAdd(ctx, "z", ScoredMember{Member: "m", Score: 1})
	if _, found, _ := store.ZScore(ctx, "z", "m"); !found {
		t.Error("sorted set missing in local-only mode")
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
