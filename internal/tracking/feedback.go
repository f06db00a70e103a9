// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/metrics"
	"github.com/tomtom215/recommendcore/internal/models"
	"github.com/tomtom215/recommendcore/internal/validation"
)

// FeedbackTopic is the topic feedback events are published to.
const FeedbackTopic = "recommend.feedback"

// Metadata keys set on published feedback messages.
const (
	MetadataUserID       = "user_id"
	MetadataFeedbackType = "feedback_type"
	MetadataContentType  = "content_type"
)

// ErrInvalidFeedback is returned for events that fail validation.
// The validation details are joined into the returned error and can be
// extracted with errors.As into *validation.RequestValidationError.
var ErrInvalidFeedback = errors.New("invalid feedback event")

// FeedbackRecorder validates feedback and hands it to the event pipeline.
type FeedbackRecorder struct {
	publisher message.Publisher
	topic     string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewFeedbackRecorder creates a recorder publishing to FeedbackTopic.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFeedbackRecorder(publisher message.Publisher, logger zerolog.Logger) *FeedbackRecorder {
	return &FeedbackRecorder{
		publisher: publisher,
		topic:     FeedbackTopic,
		logger:    logger.With().Str("component", "feedback-recorder").Logger(),
		now:       time.Now,
	}
}

// RecordFeedback validates ev and publishes it. Only validation failures are
// returned; the pipeline is best effort and publish errors are logged.
// The returned event carries the assigned EventID and Timestamp.
func (r *FeedbackRecorder) RecordFeedback(ctx context.Context, ev models.FeedbackEvent) (models.FeedbackEvent, error) {
	ev = r.normalize(ev)

	if verr := validation.ValidateStruct(ev); verr != nil {
		metrics.FeedbackEvents.WithLabelValues(string(ev.FeedbackType), "invalid").Inc()
		return ev, fmt.Errorf("%w: %w", ErrInvalidFeedback, verr)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		// Every field is a plain value; this only fails on a programming error.
		return ev, fmt.Errorf("marshal feedback event: %w", err)
	}

	msg := message.NewMessage(ev.EventID, payload)
	msg.Metadata.Set(MetadataUserID, ev.UserID)
	msg.Metadata.Set(MetadataFeedbackType, string(ev.FeedbackType))
	if ev.ContentType != "" {
		msg.Metadata.Set(MetadataContentType, string(ev.ContentType))
	}
	msg.SetContext(ctx)

	if err := r.publisher.Publish(r.topic, msg); err != nil {
		metrics.FeedbackEvents.WithLabelValues(string(ev.FeedbackType), "publish_failed").Inc()
		r.logger.Warn().Err(err).
			Str("event_id", ev.EventID).
			Str("user_id", ev.UserID).
			Msg("Failed to publish feedback event")
		return ev, nil
	}

	metrics.FeedbackEvents.WithLabelValues(string(ev.FeedbackType), "published").Inc()
	return ev, nil
}

// normalize fills server-assigned fields and canonicalizes enums.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func (r *FeedbackRecorder) normalize(ev models.FeedbackEvent) models.FeedbackEvent {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now().UTC()
	}
	ev.FeedbackType = models.FeedbackType(strings.ToLower(strings.TrimSpace(string(ev.FeedbackType))))
	if ev.ContentType != "" {
		if ct, ok := models.ParseContentType(string(ev.ContentType)); ok {
			ev.ContentType = ct
		}
	}
	return ev
}
