// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/metrics"
)

const (
	tierL1 = "l1"
	tierL2 = "l2"
)

// TieredConfig tunes a TieredStore.
type TieredConfig struct {
	// L1TTL caps how long a value lives in the local tier.
	L1TTL time.Duration
	// LookupTimeout bounds each L2 call made from Get.
	LookupTimeout time.Duration
}

// TieredStore reads through a process-local L1 to a shared L2.
//
// Values are written to both tiers. Sorted sets go to L2 only, because
// exposures and hot pools must be visible to every instance. With a nil L2
// the store degrades to L1 for everything.
type TieredStore struct {
	l1     *LocalStore
	l2     Store
	cfg    TieredConfig
	logger zerolog.Logger
}

// NewTieredStore builds a tiered store. l2 may be nil.
func NewTieredStore(l1 *LocalStore, l2 Store, cfg TieredConfig, logger zerolog.Logger) *TieredStore {
	if cfg.L1TTL <= 0 {
		cfg.L1TTL = time.Minute
	}
	return &TieredStore{
		l1:     l1,
		l2:     l2,
		cfg:    cfg,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// Local returns the L1 tier.
func (s *TieredStore) Local() *LocalStore { return s.l1 }

func (s *TieredStore) shared() Store {
	if s.l2 != nil {
		return s.l2
	}
	return s.l1
}

func (s *TieredStore) l2Context(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.LookupTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.LookupTimeout)
}

// Get implements Store.
func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := s.l1.Get(ctx, key); err == nil && ok {
		metrics.RecordCacheLookup(tierL1, true)
		return v, true, nil
	}
	metrics.RecordCacheLookup(tierL1, false)

	if s.l2 == nil {
		return nil, false, nil
	}

	l2ctx, cancel := s.l2Context(ctx)
	defer cancel()

	var (
		v     []byte
		ttl   time.Duration
		found bool
		err   error
	)
	if r, ok := s.l2.(ttlReader); ok {
		v, ttl, found, err = r.GetWithTTL(l2ctx, key)
	} else {
		v, found, err = s.l2.Get(l2ctx, key)
	}
	if err != nil {
		metrics.RecordCacheError(tierL2, "get")
		return nil, false, err
	}
	metrics.RecordCacheLookup(tierL2, found)
	if !found {
		return nil, false, nil
	}

	localTTL := s.cfg.L1TTL
	if ttl > 0 && ttl < localTTL {
		localTTL = ttl
	}
	_ = s.l1.Set(ctx, key, v, localTTL)
	return v, true, nil
}

// Set implements Store. The L1 copy is written even when L2 fails.
func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	localTTL := s.cfg.L1TTL
	if ttl > 0 && ttl < localTTL {
		localTTL = ttl
	}
	if err := s.l1.Set(ctx, key, value, localTTL); err != nil {
		return err
	}
	if s.l2 == nil {
		return nil
	}
	if err := s.l2.Set(ctx, key, value, ttl); err != nil {
		metrics.RecordCacheError(tierL2, "set")
		return err
	}
	return nil
}

// Delete implements Store.
func (s *TieredStore) Delete(ctx context.Context, key string) error {
	var errs []error
	if err := s.l1.Delete(ctx, key); err != nil {
		errs = append(errs, err)
	}
	if s.l2 != nil {
		if err := s.l2.Delete(ctx, key); err != nil {
			metrics.RecordCacheError(tierL2, "delete")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ZAdd implements Store.
func (s *TieredStore) ZAdd(ctx context.Context, key string, members ...ScoredMember) error {
	return s.recordZ("zadd", s.shared().ZAdd(ctx, key, members...))
}

// ZIncrBy implements Store.
func (s *TieredStore) ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error) {
	score, err := s.shared().ZIncrBy(ctx, key, member, delta)
	return score, s.recordZ("zincrby", err)
}

// ZRevRange implements Store.
func (s *TieredStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	members, err := s.shared().ZRevRange(ctx, key, start, stop)
	return members, s.recordZ("zrevrange", err)
}

// ZScore implements Store.
func (s *TieredStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, found, err := s.shared().ZScore(ctx, key, member)
	return score, found, s.recordZ("zscore", err)
}

// ZRemRangeByScore implements Store.
func (s *TieredStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	return s.recordZ("zremrangebyscore", s.shared().ZRemRangeByScore(ctx, key, min, max))
}

// Expire implements Store.
func (s *TieredStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.recordZ("expire", s.shared().Expire(ctx, key, ttl))
}

func (s *TieredStore) recordZ(op string, err error) error {
	if err != nil {
		tier := tierL1
		if s.l2 != nil {
			tier = tierL2
		}
		metrics.RecordCacheError(tier, op)
	}
	return err
}

// Ping implements Store. It reports on the shared tier.
func (s *TieredStore) Ping(ctx context.Context) error {
	return s.shared().Ping(ctx)
}

// Sweep drops expired L1 entries and returns how many were removed.
func (s *TieredStore) Sweep() int {
	return s.l1.Sweep()
}

// Close implements Store.
func (s *TieredStore) Close() error {
	var errs []error
	if s.l2 != nil {
		if err := s.l2.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.l1.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		s.logger.Warn().Err(errors.Join(errs...)).Msg("Cache close reported errors")
	}
	return errors.Join(errs...)
}
