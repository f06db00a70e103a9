// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/recommendcore/internal/cache"
)

const feedbackHandlerName = "feedback-consumer"

// RouterConfig holds configuration for the feedback router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// Retry configuration
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// Throttle configuration (messages per second, 0 = disabled)
	ThrottlePerSecond int64 `koanf:"throttle_per_second"`

	// PoisonQueueTopic receives messages that still fail after all retries.
	// Empty disables the poison queue.
	PoisonQueueTopic string `koanf:"poison_queue_topic"`

	// DedupTTL is how long a processed event ID is remembered. 0 disables.
	DedupTTL      time.Duration `koanf:"dedup_ttl"`
	DedupCapacity int           `koanf:"dedup_capacity"`
}

// DefaultRouterConfig returns production defaults for the router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		RetryMultiplier:      2.0,
		ThrottlePerSecond:    0, // Disabled by default
		PoisonQueueTopic:     FeedbackTopic + ".dlq",
		DedupTTL:             10 * time.Minute,
		DedupCapacity:        10000,
	}
}

// FeedbackRouter consumes FeedbackTopic and feeds a FeedbackConsumer.
//
// A watermill router cannot be restarted once closed, so Serve builds a
// fresh one on every call. That lets the supervisor restart it after a
// subscriber failure.
type FeedbackRouter struct {
	config     RouterConfig
	subscriber message.Subscriber
	poisonPub  message.Publisher
	consumer   *FeedbackConsumer
	logger     watermill.LoggerAdapter
	dedup      *processedSet

	mu      sync.Mutex
	running *message.Router
}

// NewFeedbackRouter creates the router. poisonPublisher may be nil.
//
//nolint:gocritic // hugeParam: config passed by value for immutability
func NewFeedbackRouter(
	cfg RouterConfig,
	subscriber message.Subscriber,
	poisonPublisher message.Publisher,
	consumer *FeedbackConsumer,
	logger watermill.LoggerAdapter,
) (*FeedbackRouter, error) {
	if subscriber == nil {
		return nil, errors.New("feedback router requires a subscriber")
	}
	if consumer == nil {
		return nil, errors.New("feedback router requires a consumer")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	r := &FeedbackRouter{
		config:     cfg,
		subscriber: subscriber,
		poisonPub:  poisonPublisher,
		consumer:   consumer,
		logger:     logger,
	}
	if cfg.DedupTTL > 0 {
		r.dedup = newProcessedSet(cfg.DedupCapacity, cfg.DedupTTL)
	}
	return r, nil
}

// build creates a configured watermill router.
func (r *FeedbackRouter) build() (*message.Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: r.config.CloseTimeout}, r.logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Middleware order (outer to inner):
	// 1. Poison Queue - route messages that exhausted their retries
	// 2. Recoverer - catch panics and convert to errors
	// 3. Dedup - skip event IDs that were already processed
	// 4. Retry - handle transient failures with backoff
	// 5. Throttle - rate limiting (if enabled)
	if r.poisonPub != nil && r.config.PoisonQueueTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(r.poisonPub, r.config.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	if r.dedup != nil {
		wmRouter.AddMiddleware(r.dedup.Middleware)
	}

	retryMiddleware := middleware.Retry{
		MaxRetries:      r.config.RetryMaxRetries,
		InitialInterval: r.config.RetryInitialInterval,
		MaxInterval:     r.config.RetryMaxInterval,
		Multiplier:      r.config.RetryMultiplier,
		Logger:          r.logger,
	}
	wmRouter.AddMiddleware(retryMiddleware.Middleware)

	if r.config.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(r.config.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	wmRouter.AddConsumerHandler(feedbackHandlerName, FeedbackTopic, r.subscriber, r.consumer.Handle)
	return wmRouter, nil
}

// Serve implements suture.Service. It runs until ctx is cancelled.
func (r *FeedbackRouter) Serve(ctx context.Context) error {
	wmRouter, err := r.build()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.running = wmRouter
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = nil
		r.mu.Unlock()
	}()

	r.logger.Info("Feedback router starting", watermill.LogFields{"topic": FeedbackTopic})
	if err := wmRouter.Run(ctx); err != nil {
		return fmt.Errorf("feedback router: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Running returns a channel closed once the current router is consuming,
// or nil when no router is active.
func (r *FeedbackRouter) Running() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running == nil {
		return nil
	}
	return r.running.Running()
}

// String implements fmt.Stringer for suture logging.
func (r *FeedbackRouter) String() string {
	return "feedback-router"
}

// processedSet remembers event IDs whose handler succeeded.
//
// watermill's Deduplicator marks a key before the handler runs, so a
// redelivery after a failed attempt would be dropped. Here an ID is only
// marked once the wrapped handler returns nil.
type processedSet struct {
	seen *cache.LRUCache
	ttl  time.Duration
}

func newProcessedSet(capacity int, ttl time.Duration) *processedSet {
	return &processedSet{seen: cache.NewLRUCache(capacity), ttl: ttl}
}

// Middleware is a message.HandlerMiddleware.
func (p *processedSet) Middleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		key := msg.UUID
		if _, dup := p.seen.Get(key); dup {
			return nil, nil
		}

		produced, err := h(msg)
		if err != nil {
			return produced, err
		}
		p.seen.Set(key, nil, p.ttl)
		return produced, nil
	}
}
