// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/fallback"
	"github.com/tomtom215/recommendcore/internal/metrics"
	"github.com/tomtom215/recommendcore/internal/models"
)

// ResponseInvalidator drops a user's cached recommendation responses.
type ResponseInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// FeedbackConsumer applies consumed feedback events to the feedback log,
// the hot-content pools and the exposure windows.
type FeedbackConsumer struct {
	log         *FeedbackLog
	hotStore    cache.Store
	exposures   *ExposureTracker
	invalidator ResponseInvalidator
	logger      zerolog.Logger
}

// NewFeedbackConsumer creates a consumer. hotStore and exposures may be nil
// to skip those side effects.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFeedbackConsumer(log *FeedbackLog, hotStore cache.Store, exposures *ExposureTracker, logger zerolog.Logger) *FeedbackConsumer {
	return &FeedbackConsumer{
		log:       log,
		hotStore:  hotStore,
		exposures: exposures,
		logger:    logger.With().Str("component", "feedback-consumer").Logger(),
	}
}

// SetInvalidator makes the consumer drop the user's cached responses after
// recording an engaged exposure. Call it before the router starts.
func (c *FeedbackConsumer) SetInvalidator(inv ResponseInvalidator) {
	c.invalidator = inv
}

// Handle is a message.NoPublishHandlerFunc. Malformed messages are acked
// and dropped; storage failures are returned so the router retries them.
func (c *FeedbackConsumer) Handle(msg *message.Message) error {
	var ev models.FeedbackEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		metrics.FeedbackEvents.WithLabelValues("unknown", "invalid").Inc()
		c.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed feedback message")
		return nil
	}
	if ev.EventID == "" {
		ev.EventID = msg.UUID
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	return c.Apply(msg.Context(), ev)
}

// Apply processes one event.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func (c *FeedbackConsumer) Apply(ctx context.Context, ev models.FeedbackEvent) error {
	if ev.UserID == "" || ev.ContentID == "" {
		metrics.FeedbackEvents.WithLabelValues(string(ev.FeedbackType), "invalid").Inc()
		c.logger.Warn().Str("event_id", ev.EventID).Msg("Dropping feedback event without user or content")
		return nil
	}

	if c.log != nil {
		if err := c.log.Append(ctx, ev); err != nil {
			metrics.FeedbackEvents.WithLabelValues(string(ev.FeedbackType), "store_failed").Inc()
			if errors.Is(err, ErrLogClosed) {
				// Shutting down; nothing a retry can fix.
				return nil
			}
			return fmt.Errorf("store feedback %s: %w", ev.EventID, err)
		}
	}

	// Side effects below are best effort: the event is already durable.
	c.updateHotPools(ctx, ev)
	c.recordExposure(ctx, ev)

	metrics.FeedbackEvents.WithLabelValues(string(ev.FeedbackType), "stored").Inc()
	return nil
}

//nolint:gocritic // hugeParam: event passed by value for immutability
func (c *FeedbackConsumer) updateHotPools(ctx context.Context, ev models.FeedbackEvent) {
	weight := ev.FeedbackType.HotWeight()
	if c.hotStore == nil || weight == 0 {
		return
	}

	keys := []string{fallback.HotPoolKey(models.ContentTypeMixed)}
	if ev.ContentType != "" && ev.ContentType != models.ContentTypeMixed {
		keys = append(keys, fallback.HotPoolKey(ev.ContentType))
	}
	for _, key := range keys {
		if _, err := c.hotStore.ZIncrBy(ctx, key, ev.ContentID, weight); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Str("content_id", ev.ContentID).Msg("Failed to update hot pool")
		}
	}
}

//nolint:gocritic // hugeParam: event passed by value for immutability
func (c *FeedbackConsumer) recordExposure(ctx context.Context, ev models.FeedbackEvent) {
	if c.exposures == nil || !ev.FeedbackType.Engaged() {
		return
	}
	if err := c.exposures.RecordExposure(ctx, ev.UserID, ev.ContentID); err != nil {
		c.logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("Failed to record engaged exposure")
		return
	}
	if c.invalidator == nil {
		return
	}
	if err := c.invalidator.InvalidateUser(ctx, ev.UserID); err != nil {
		c.logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("Failed to invalidate cached responses")
	}
}
