// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package models

// FeatureName enumerates the user features recall and ranking understand.
type FeatureName string

const (
	FeatureActivityLevel    FeatureName = "activity_level"
	FeatureRecencyDays      FeatureName = "recency_days"
	FeatureClickThroughRate FeatureName = "ctr"
	FeatureAvgDwellSeconds  FeatureName = "avg_dwell_seconds"
	FeatureAccountAgeDays   FeatureName = "account_age_days"
	FeatureDiversityPref    FeatureName = "diversity_preference"
)

// KnownFeatures lists the recognized feature names.
var KnownFeatures = []FeatureName{
	FeatureActivityLevel,
	FeatureRecencyDays,
	FeatureClickThroughRate,
	FeatureAvgDwellSeconds,
	FeatureAccountAgeDays,
	FeatureDiversityPref,
}

// Known reports whether f is one of KnownFeatures.
func (f FeatureName) Known() bool {
	for _, k := range KnownFeatures {
		if f == k {
			return true
		}
	}
	return false
}

// FeatureSet is the typed feature bag for one user.
//
// Values only holds KnownFeatures; providers returning other names have them
// dropped by Sanitize. Context is the open-ended request context passed
// through untouched.
type FeatureSet struct {
	UserID      string                  `json:"user_id"`
	Anonymous   bool                    `json:"anonymous"`
	Values      map[FeatureName]float64 `json:"values,omitempty"`
	Preferences []string                `json:"preferences,omitempty"`
	Context     map[string]string       `json:"context,omitempty"`
}

// AnonymousFeatures is the degraded feature set used when the feature provider is unavailable.
func AnonymousFeatures(userID string) FeatureSet {
	return FeatureSet{
		UserID:    userID,
		Anonymous: true,
		Values:    map[FeatureName]float64{},
	}
}

// Value returns the named feature and whether it was present.
func (f FeatureSet) Value(name FeatureName) (float64, bool) {
	v, ok := f.Values[name]
	return v, ok
}

// Sanitize drops unrecognized feature names in place.
func (f *FeatureSet) Sanitize() {
	for name := range f.Values {
		if !name.Known() {
			delete(f.Values, name)
		}
	}
}
