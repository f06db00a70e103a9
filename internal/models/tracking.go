// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package models

import "time"

// ExposureRecord notes that ContentID was shown to UserID at Timestamp.
type ExposureRecord struct {
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackType classifies a feedback event.
type FeedbackType string

const (
	FeedbackImpression FeedbackType = "impression"
	FeedbackClick      FeedbackType = "click"
	FeedbackLike       FeedbackType = "like"
	FeedbackDislike    FeedbackType = "dislike"
	FeedbackShare      FeedbackType = "share"
	FeedbackComplete   FeedbackType = "complete"
	FeedbackSkip       FeedbackType = "skip"
)

// HotWeight is how much one event of this type moves an item in the hot-content pool.
func (t FeedbackType) HotWeight() float64 {
	switch t {
	case FeedbackClick:
		return 1
	case FeedbackLike:
		return 2
	case FeedbackShare:
		return 3
	case FeedbackComplete:
		return 2
	case FeedbackDislike:
		return -2
	default:
		return 0
	}
}

// Engaged reports whether the event means the user actually saw the item.
func (t FeedbackType) Engaged() bool {
	switch t {
	case FeedbackClick, FeedbackLike, FeedbackDislike, FeedbackShare, FeedbackComplete:
		return true
	}
	return false
}

// FeedbackEvent is a single user interaction report. Never mutated after ingestion.
type FeedbackEvent struct {
	EventID      string       `json:"event_id,omitempty"`
	UserID       string       `json:"user_id" validate:"required,max=128"`
	ContentID    string       `json:"content_id" validate:"required,max=256"`
	ContentType  ContentType  `json:"content_type,omitempty" validate:"omitempty,contenttype"`
	FeedbackType FeedbackType `json:"feedback_type" validate:"required,oneof=impression click like dislike share complete skip"`
	SessionID    string       `json:"session_id" validate:"max=128"`
	Position     int          `json:"position" validate:"gte=0"`
	Timestamp    time.Time    `json:"timestamp"`
}
