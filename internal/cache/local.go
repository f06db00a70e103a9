// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/recommendcore/internal/metrics"
)

// sortedSet is an in-memory ZSET. Guarded by LocalStore.zmu.
type sortedSet struct {
	scores    map[string]float64
	expiresAt time.Time
}

func (z *sortedSet) expired(now time.Time) bool {
	return !z.expiresAt.IsZero() && now.After(z.expiresAt)
}

// LocalStore is the process-local tier: an LRUCache for values and in-memory
// sorted sets with Redis-compatible ordering.
type LocalStore struct {
	values *LRUCache

	zmu  sync.Mutex
	sets map[string]*sortedSet

	closed atomic.Bool
}

// NewLocalStore creates a local store holding at most maxEntries values.
func NewLocalStore(maxEntries int) *LocalStore {
	values := NewLRUCache(maxEntries)
	values.OnEvict(func(string) { metrics.CacheEvictions.Inc() })
	return &LocalStore{
		values: values,
		sets:   make(map[string]*sortedSet),
	}
}

// Get implements Store.
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	v, ok := s.values.Get(key)
	return v, ok, nil
}

// Set implements Store.
func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.values.Set(key, value, ttl)
	return nil
}

// Delete implements Store.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.values.Remove(key)

	s.zmu.Lock()
	delete(s.sets, key)
	s.zmu.Unlock()
	return nil
}

// liveSet returns the set at key, dropping it if expired. create allocates a missing set.
// Must be called with zmu held.
func (s *LocalStore) liveSet(key string, create bool) *sortedSet {
	z, ok := s.sets[key]
	if ok && z.expired(time.Now()) {
		delete(s.sets, key)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		z = &sortedSet{scores: make(map[string]float64)}
		s.sets[key] = z
	}
	return z
}

// ZAdd implements Store.
func (s *LocalStore) ZAdd(_ context.Context, key string, members ...ScoredMember) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(members) == 0 {
		return nil
	}

	s.zmu.Lock()
	defer s.zmu.Unlock()
	z := s.liveSet(key, true)
	for _, m := range members {
		z.scores[m.Member] = m.Score
	}
	return nil
}

// ZIncrBy implements Store.
func (s *LocalStore) ZIncrBy(_ context.Context, key, member string, delta float64) (float64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	s.zmu.Lock()
	defer s.zmu.Unlock()
	z := s.liveSet(key, true)
	z.scores[member] += delta
	return z.scores[member], nil
}

// ZRevRange implements Store. Equal scores are ordered by descending member, as Redis does.
func (s *LocalStore) ZRevRange(_ context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.zmu.Lock()
	z := s.liveSet(key, false)
	if z == nil {
		s.zmu.Unlock()
		return nil, nil
	}
	all := make([]ScoredMember, 0, len(z.scores))
	for m, score := range z.scores {
		all = append(all, ScoredMember{Member: m, Score: score})
	}
	s.zmu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Member > all[j].Member
	})

	lo, hi, ok := rangeBounds(int64(len(all)), start, stop)
	if !ok {
		return nil, nil
	}
	return all[lo : hi+1], nil
}

// ZScore implements Store.
func (s *LocalStore) ZScore(_ context.Context, key, member string) (float64, bool, error) {
	if s.closed.Load() {
		return 0, false, ErrClosed
	}

	s.zmu.Lock()
	defer s.zmu.Unlock()
	z := s.liveSet(key, false)
	if z == nil {
		return 0, false, nil
	}
	score, ok := z.scores[member]
	return score, ok, nil
}

// ZRemRangeByScore implements Store.
func (s *LocalStore) ZRemRangeByScore(_ context.Context, key string, min, max float64) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.zmu.Lock()
	defer s.zmu.Unlock()
	z := s.liveSet(key, false)
	if z == nil {
		return nil
	}
	for m, score := range z.scores {
		if score >= min && score <= max {
			delete(z.scores, m)
		}
	}
	if len(z.scores) == 0 {
		delete(s.sets, key)
	}
	return nil
}

// Expire implements Store. Applies to sorted sets and plain values.
func (s *LocalStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.zmu.Lock()
	if z := s.liveSet(key, false); z != nil {
		z.expiresAt = time.Now().Add(ttl)
	}
	s.zmu.Unlock()

	if v, ok := s.values.Get(key); ok {
		s.values.Set(key, v, ttl)
	}
	return nil
}

// Sweep drops expired values and sorted sets. Returns the number removed.
func (s *LocalStore) Sweep() int {
	removed := s.values.CleanupExpired()

	now := time.Now()
	s.zmu.Lock()
	for key, z := range s.sets {
		if z.expired(now) {
			delete(s.sets, key)
			removed++
		}
	}
	s.zmu.Unlock()
	return removed
}

// Ping implements Store.
func (s *LocalStore) Ping(context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (s *LocalStore) Close() error {
	s.closed.Store(true)
	return nil
}

// rangeBounds converts Redis-style inclusive rank bounds into slice indexes.
func rangeBounds(n, start, stop int64) (lo, hi int64, ok bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
