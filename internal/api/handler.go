// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package api

import (
	"context"
	"time"

	"github.com/tomtom215/recommendcore/internal/breaker"
	"github.com/tomtom215/recommendcore/internal/config"
	"github.com/tomtom215/recommendcore/internal/models"
)

// Recommender serves recommendation requests. Implemented by *recommend.Orchestrator.
type Recommender interface {
	GetRecommendations(ctx context.Context, req models.RecommendRequest) (*models.RecommendResponse, error)
}

// FeedbackRecorder accepts feedback events. Implemented by *tracking.FeedbackRecorder.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, ev models.FeedbackEvent) (models.FeedbackEvent, error)
}

// FeedbackReader lists stored feedback. Implemented by *tracking.FeedbackLog.
type FeedbackReader interface {
	UserEvents(ctx context.Context, userID string, limit int) ([]models.FeedbackEvent, error)
}

// BreakerInspector reports breaker state. Implemented by *breaker.Registry.
type BreakerInspector interface {
	Snapshots() []breaker.Snapshot
}

// ExperimentAssigner maps users to experiment arms. Implemented by *experiment.Assigner.
type ExperimentAssigner interface {
	Assign(userID, experimentName string) (models.ExperimentAssignment, error)
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerDeps are the collaborators of Handler. Recommender and Feedback
// are required; the inspection endpoints answer 503 when theirs is nil.
type HandlerDeps struct {
	Recommender Recommender
	Feedback    FeedbackRecorder
	FeedbackLog FeedbackReader
	Breakers    BreakerInspector
	Experiments ExperimentAssigner
	// Ready maps a dependency name to its readiness check.
	Ready map[string]Pinger
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	deps      HandlerDeps
	config    config.APIConfig
	startTime time.Time

	readyTimeout time.Duration
}

// Default limits applied when the api config is left zero.
const (
	defaultFeedbackListLimit = 50
	maxFeedbackListLimit     = 500
	defaultReadyTimeout      = 2 * time.Second
)

// NewHandler creates a Handler.
func NewHandler(deps HandlerDeps, cfg config.APIConfig) *Handler {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 200
	}
	if cfg.DefaultSize <= 0 || cfg.DefaultSize > cfg.MaxSize {
		cfg.DefaultSize = min(10, cfg.MaxSize)
	}
	return &Handler{
		deps:         deps,
		config:       cfg,
		startTime:    time.Now(),
		readyTimeout: defaultReadyTimeout,
	}
}
