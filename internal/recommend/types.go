// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package recommend

import (
	"context"

	"github.com/tomtom215/recommendcore/internal/breaker"
	"github.com/tomtom215/recommendcore/internal/cache"
	"github.com/tomtom215/recommendcore/internal/models"
)

// FeatureProvider returns user features.
type FeatureProvider interface {
	GetFeatures(ctx context.Context, userID string, reqCtx map[string]string) (models.FeatureSet, error)
}

// Recaller produces merged candidates. Implemented by *recall.Merger.
type Recaller interface {
	Recall(ctx context.Context, features models.FeatureSet, contentType models.ContentType, n int) ([]models.CandidateItem, error)
}

// RankingProvider scores candidates with the model named by variant.
type RankingProvider interface {
	Rank(ctx context.Context, features models.FeatureSet, candidates []models.CandidateItem, variant string) ([]models.RankedItem, error)
}

// FallbackProvider builds degraded responses. Implemented by *fallback.Controller.
type FallbackProvider interface {
	GetFallbackWithReason(ctx context.Context, contentType models.ContentType, size int, reason string) *models.RecommendResponse
	HotItems(ctx context.Context, contentType models.ContentType, n int) []models.RankedItem
}

// ExposureFilter removes items the user has already seen.
// Implemented by *tracking.ExposureTracker.
type ExposureFilter interface {
	FilterExposed(ctx context.Context, userID string, items []models.RankedItem) ([]models.RankedItem, error)
}

// ExposureSink records served items without blocking.
// Implemented by *tracking.ExposureWriter.
type ExposureSink interface {
	Enqueue(userID string, contentIDs []string) bool
}

// VariantAssigner maps a user to an experiment arm.
// Implemented by *experiment.Assigner.
type VariantAssigner interface {
	Assign(userID, experimentName string) (models.ExperimentAssignment, error)
}

// Dependencies are the orchestrator's collaborators. Cache, Features,
// Recall, Ranking, Fallback and Breakers are required; the rest are
// optional and their step is skipped when nil.
type Dependencies struct {
	Cache     cache.Store
	Features  FeatureProvider
	Recall    Recaller
	Ranking   RankingProvider
	Fallback  FallbackProvider
	Breakers  *breaker.Registry
	Exposures ExposureFilter
	Writer    ExposureSink
	Assigner  VariantAssigner
}

func (d *Dependencies) validate() error {
	switch {
	case d.Cache == nil:
		return errMissingDependency("cache")
	case d.Features == nil:
		return errMissingDependency("features")
	case d.Recall == nil:
		return errMissingDependency("recall")
	case d.Ranking == nil:
		return errMissingDependency("ranking")
	case d.Fallback == nil:
		return errMissingDependency("fallback")
	case d.Breakers == nil:
		return errMissingDependency("breakers")
	}
	return nil
}

type errMissingDependency string

func (e errMissingDependency) Error() string {
	return "missing dependency: " + string(e)
}
