// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/recommendcore/internal/logging"
	"github.com/tomtom215/recommendcore/internal/metrics"
	"github.com/tomtom215/recommendcore/internal/models"
)

// Feedback log errors.
var (
	// ErrLogClosed is returned when the feedback log is closed.
	ErrLogClosed = errors.New("feedback log is closed")

	// ErrMissingEventID is returned when appending an event without an ID.
	ErrMissingEventID = errors.New("feedback event has no event ID")
)

const feedbackKeyPrefix = "fb:"

// FeedbackLogConfig configures the badger-backed feedback log.
type FeedbackLogConfig struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory keeps the log in RAM only. Used in tests and single-node demos.
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs every append.
	SyncWrites bool `koanf:"sync_writes"`

	// Compression enables Snappy block compression.
	Compression bool `koanf:"compression"`

	// Retention is how long an event is kept. 0 keeps events forever.
	Retention time.Duration `koanf:"retention"`

	// GCRatio is the value-log discard ratio passed to badger GC.
	GCRatio float64 `koanf:"gc_ratio"`

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// DefaultFeedbackLogConfig returns production defaults.
func DefaultFeedbackLogConfig() FeedbackLogConfig {
	return FeedbackLogConfig{
		Path:         "/data/feedback",
		SyncWrites:   true,
		Compression:  true,
		Retention:    30 * 24 * time.Hour,
		GCRatio:      0.5,
		CloseTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *FeedbackLogConfig) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("path is required unless in_memory is set")
	}
	if c.Retention < 0 {
		return errors.New("retention must not be negative")
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return errors.New("gc_ratio must be between 0 and 1 exclusive")
	}
	return nil
}

// FeedbackLog is the durable record of every consumed feedback event.
//
// Keys are fb:{escaped userID}:{unix-nanos, zero padded}:{eventID}, so a prefix scan
// over fb:{userID}: walks one user's history in time order and a redelivered
// event rewrites the same key.
type FeedbackLog struct {
	db     *badger.DB
	config FeedbackLogConfig

	mu     sync.RWMutex
	closed bool
}

// OpenFeedbackLog opens (or creates) the log.
//
//nolint:gocritic // hugeParam: config passed by value for immutability
func OpenFeedbackLog(cfg FeedbackLogConfig) (*FeedbackLog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feedback log config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites && !cfg.InMemory
	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("retention", cfg.Retention).
		Msg("Feedback log opened")

	return &FeedbackLog{db: db, config: cfg}, nil
}

// FeedbackKey returns the storage key for ev.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func FeedbackKey(ev models.FeedbackEvent) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", userPrefix(ev.UserID), ev.Timestamp.UnixNano(), ev.EventID))
}

// userPrefix escapes userID so one user's prefix never matches another's keys.
func userPrefix(userID string) string {
	return feedbackKeyPrefix + url.QueryEscape(userID) + ":"
}

// Append stores ev. Appending the same event twice is a no-op overwrite.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func (l *FeedbackLog) Append(ctx context.Context, ev models.FeedbackEvent) error {
	if ev.EventID == "" {
		return ErrMissingEventID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.checkOpen(); err != nil {
		return err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal feedback event: %w", err)
	}

	entry := badger.NewEntry(FeedbackKey(ev), payload)
	if l.config.Retention > 0 {
		entry = entry.WithTTL(l.config.Retention)
	}

	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("append feedback %s: %w", ev.EventID, err)
	}
	return nil
}

// UserEvents returns up to limit of userID's events, newest first.
// limit <= 0 returns all of them.
func (l *FeedbackLog) UserEvents(ctx context.Context, userID string, limit int) ([]models.FeedbackEvent, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	prefix := []byte(userPrefix(userID))
	// Reverse iteration seeks to the largest key <= seek, so step past the prefix.
	seek := append(append([]byte{}, prefix...), 0xFF)

	events := make([]models.FeedbackEvent, 0)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ev models.FeedbackEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			events = append(events, ev)
			if limit > 0 && len(events) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read feedback for %s: %w", userID, err)
	}
	return events, nil
}

// Count returns the number of live events.
func (l *FeedbackLog) Count() (int64, error) {
	if err := l.checkOpen(); err != nil {
		return 0, err
	}

	var n int64
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(feedbackKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return n, nil
}

// RunGC reclaims value-log space until badger reports nothing left to
// rewrite, then refreshes the entries gauge.
func (l *FeedbackLog) RunGC() error {
	if err := l.checkOpen(); err != nil {
		return err
	}

	for {
		err := l.db.RunValueLogGC(l.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			break
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}

	if n, err := l.Count(); err == nil {
		metrics.FeedbackLogEntries.Set(float64(n))
	}
	return nil
}

// Close shuts the log down, giving up after CloseTimeout.
func (l *FeedbackLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	timeout := l.config.CloseTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- l.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close badger: %w", err)
		}
		logging.Info().Msg("Feedback log closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("Feedback log close timed out")
		return fmt.Errorf("feedback log close timeout after %v", timeout)
	}
}

func (l *FeedbackLog) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLogClosed
	}
	return nil
}
