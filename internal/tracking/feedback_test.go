// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/models"
	"github.com/tomtom215/recommendcore/internal/validation"
)

// failingPublisher rejects every publish.
type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                              { return nil }

func validFeedback() models.FeedbackEvent {
	return models.FeedbackEvent{
		UserID:       "u1",
		ContentID:    "a1",
		ContentType:  models.ContentTypeArticle,
		FeedbackType: models.FeedbackClick,
		Position:     2,
	}
}

func TestRecordFeedback_Publishes(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer pubSub.Close()

	msgs, err := pubSub.Subscribe(context.Background(), FeedbackTopic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	rec := NewFeedbackRecorder(pubSub, zerolog.Nop())
	ev, err := rec.RecordFeedback(context.Background(), validFeedback())
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if ev.EventID == "" {
		t.Error("EventID not assigned")
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp not assigned")
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		if msg.UUID != ev.EventID {
			t.Errorf("message UUID = %s, want event ID %s", msg.UUID, ev.EventID)
		}
		if got := msg.Metadata.Get(MetadataFeedbackType); got != "click" {
			t.Errorf("feedback_type metadata = %q", got)
		}
		var decoded models.FeedbackEvent
		if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if decoded.ContentID != "a1" || decoded.UserID != "u1" {
			t.Errorf("decoded = %+v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestRecordFeedback_KeepsClientIDs(t *testing.T) {
	rec := NewFeedbackRecorder(failingPublisher{}, zerolog.Nop())
	in := validFeedback()
	in.EventID = "client-1"
	in.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ev, err := rec.RecordFeedback(context.Background(), in)
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if ev.EventID != "client-1" || !ev.Timestamp.Equal(in.Timestamp) {
		t.Errorf("client-supplied fields overwritten: %+v", ev)
	}
}

func TestRecordFeedback_Invalid(t *testing.T) {
	rec := NewFeedbackRecorder(failingPublisher{}, zerolog.Nop())

	tests := []struct {
		name   string
		mutate func(*models.FeedbackEvent)
		field  string
	}{
		{"missing user", func(e *models.FeedbackEvent) { e.UserID = "" }, "user_id"},
		{"missing content", func(e *models.FeedbackEvent) { e.ContentID = "" }, "content_id"},
		{"unknown type", func(e *models.FeedbackEvent) { e.FeedbackType = "bookmark" }, "feedback_type"},
		{"bad content type", func(e *models.FeedbackEvent) { e.ContentType = "podcast" }, "content_type"},
		{"negative position", func(e *models.FeedbackEvent) { e.Position = -1 }, "position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validFeedback()
			tt.mutate(&ev)

			_, err := rec.RecordFeedback(context.Background(), ev)
			if !errors.Is(err, ErrInvalidFeedback) {
				t.Fatalf("err = %v, want ErrInvalidFeedback", err)
			}
			var verr *validation.RequestValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err does not carry validation details: %v", err)
			}
			if verr.Fields[0].Field != tt.field {
				t.Errorf("failed field = %s, want %s", verr.Fields[0].Field, tt.field)
			}
		})
	}
}

func TestRecordFeedback_NormalizesCase(t *testing.T) {
	rec := NewFeedbackRecorder(failingPublisher{}, zerolog.Nop())
	ev := validFeedback()
	ev.FeedbackType = " LIKE "
	ev.ContentType = "Video"

	out, err := rec.RecordFeedback(context.Background(), ev)
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if out.FeedbackType != models.FeedbackLike || out.ContentType != models.ContentTypeVideo {
		t.Errorf("not normalized: %s / %s", out.FeedbackType, out.ContentType)
	}
}

func TestRecordFeedback_PublishFailureIsSwallowed(t *testing.T) {
	rec := NewFeedbackRecorder(failingPublisher{}, zerolog.Nop())
	if _, err := rec.RecordFeedback(context.Background(), validFeedback()); err != nil {
		t.Errorf("publish failure surfaced to caller: %v", err)
	}
}
