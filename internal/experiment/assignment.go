// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

// Package experiment assigns users to A/B experiment buckets.
//
// Assignment is a pure function of (userID, experimentName): the xxhash64 of
// their concatenation modulo 100 is compared with the experiment's split
// percentage. No state is stored, so every instance agrees on every
// assignment and a user never flips buckets unless the split changes.
package experiment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/tomtom215/recommendcore/internal/metrics"
	"github.com/tomtom215/recommendcore/internal/models"
)

// Bucket is an experiment arm.
type Bucket string

const (
	BucketControl   Bucket = "control"
	BucketTreatment Bucket = "treatment"
)

// ErrUnknownExperiment is returned by Assign for unconfigured experiment names.
var ErrUnknownExperiment = errors.New("unknown experiment")

// AssignBucket returns the bucket for userID in experimentName.
// splitPercentage is the share of users (0-100) routed to treatment.
func AssignBucket(userID, experimentName string, splitPercentage int) Bucket {
	if int(xxhash.Sum64String(userID+experimentName)%100) < splitPercentage {
		return BucketTreatment
	}
	return BucketControl
}

// Experiment is one configured A/B test.
type Experiment struct {
	Name             string `koanf:"name"`
	Enabled          bool   `koanf:"enabled"`
	SplitPercentage  int    `koanf:"split_percentage"`
	ControlVariant   string `koanf:"control_variant"`
	TreatmentVariant string `koanf:"treatment_variant"`
}

// Validate checks the experiment definition.
func (e Experiment) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("experiment name is required")
	}
	if e.SplitPercentage < 0 || e.SplitPercentage > 100 {
		return fmt.Errorf("experiment %s: split_percentage must be between 0 and 100, got %d", e.Name, e.SplitPercentage)
	}
	if e.ControlVariant == "" || e.TreatmentVariant == "" {
		return fmt.Errorf("experiment %s: control_variant and treatment_variant are required", e.Name)
	}
	return nil
}

// Assigner resolves assignments for a fixed set of experiments.
// It is immutable after construction and safe for concurrent use.
type Assigner struct {
	experiments map[string]Experiment
}

// NewAssigner validates experiments and builds an Assigner.
func NewAssigner(experiments []Experiment) (*Assigner, error) {
	a := &Assigner{experiments: make(map[string]Experiment, len(experiments))}
	for _, e := range experiments {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := a.experiments[e.Name]; dup {
			return nil, fmt.Errorf("experiment %s defined twice", e.Name)
		}
		a.experiments[e.Name] = e
	}
	return a, nil
}

// Assign returns the user's assignment in experimentName.
// A disabled experiment puts everyone in control.
func (a *Assigner) Assign(userID, experimentName string) (models.ExperimentAssignment, error) {
	e, ok := a.experiments[experimentName]
	if !ok {
		return models.ExperimentAssignment{}, fmt.Errorf("%w: %s", ErrUnknownExperiment, experimentName)
	}

	bucket := BucketControl
	if e.Enabled {
		bucket = AssignBucket(userID, e.Name, e.SplitPercentage)
	}

	variant := e.ControlVariant
	if bucket == BucketTreatment {
		variant = e.TreatmentVariant
	}

	metrics.ExperimentAssignments.WithLabelValues(e.Name, string(bucket)).Inc()

	return models.ExperimentAssignment{
		UserID:         userID,
		ExperimentName: e.Name,
		Bucket:         string(bucket),
		Variant:        variant,
	}, nil
}

// Variant returns the variant label for userID, or fallback when the
// experiment is not configured.
func (a *Assigner) Variant(userID, experimentName, fallback string) string {
	assignment, err := a.Assign(userID, experimentName)
	if err != nil {
		return fallback
	}
	return assignment.Variant
}

// Names returns the configured experiment names in sorted order.
func (a *Assigner) Names() []string {
	names := make([]string, 0, len(a.experiments))
	for name := range a.experiments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
