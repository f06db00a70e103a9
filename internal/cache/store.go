// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

// Package cache implements the multi-tier Cache Store: a process-local L1
// (LRU with per-entry TTL plus in-memory sorted sets) in front of a shared
// Redis L2.
//
// Values are opaque byte slices; callers own encoding. Sorted sets back the
// exposure windows and hot-content pools, so they live in the shared tier
// whenever one is configured.
//
// All Store implementations are safe for concurrent use without client-side
// locking.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache store closed")

// ScoredMember is one sorted-set entry.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the key-value and sorted-set abstraction the orchestrator consumes.
type Store interface {
	// Get returns the value for key. found is false for missing or expired keys.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key for ttl. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key (plain value or sorted set).
	Delete(ctx context.Context, key string) error

	// ZAdd adds or updates members of the sorted set at key.
	ZAdd(ctx context.Context, key string, members ...ScoredMember) error
	// ZIncrBy adds delta to member's score, creating it at delta if absent.
	ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error)
	// ZRevRange returns members by descending score, ranks start..stop inclusive (-1 = last).
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	// ZScore returns member's score; found is false when absent.
	ZScore(ctx context.Context, key, member string) (score float64, found bool, err error)
	// ZRemRangeByScore removes members with min <= score <= max.
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	// Expire sets a TTL on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// ttlReader is implemented by stores that can report a key's remaining TTL
// together with its value. The tiered store uses it so L1 copies never
// outlive the L2 entry.
type ttlReader interface {
	GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, found bool, err error)
}
