// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package models

import (
	"sort"
	"strings"
	"time"
)

// ContentType selects which catalog a recommendation is drawn from.
type ContentType string

const (
	ContentTypeArticle ContentType = "article"
	ContentTypeVideo   ContentType = "video"
	ContentTypeProduct ContentType = "product"
	ContentTypeMixed   ContentType = "mixed"
)

// ContentTypes lists every recognized content type.
var ContentTypes = []ContentType{ContentTypeArticle, ContentTypeVideo, ContentTypeProduct, ContentTypeMixed}

// Valid reports whether c is a recognized content type.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeArticle, ContentTypeVideo, ContentTypeProduct, ContentTypeMixed:
		return true
	}
	return false
}

// ParseContentType normalizes s and reports whether it names a recognized type.
func ParseContentType(s string) (ContentType, bool) {
	c := ContentType(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// RecommendRequest is one client request for recommendations.
// Treat it as immutable once built; the orchestrator takes it by value.
type RecommendRequest struct {
	UserID      string            `json:"user_id" validate:"required,max=128"`
	ContentType ContentType       `json:"content_type" validate:"required,contenttype"`
	Size        int               `json:"size" validate:"gt=0,lte=200"`
	Context     map[string]string `json:"context,omitempty" validate:"max=32"`
}

// CandidateItem is a single recall hit. It lives only for the request that produced it.
type CandidateItem struct {
	ContentID       string  `json:"content_id"`
	SourceAlgorithm string  `json:"source_algorithm"`
	RawScore        float64 `json:"raw_score"`
	SourceWeight    float64 `json:"source_weight"`
}

// RecallResult is the outcome of invoking one recall strategy.
type RecallResult struct {
	Algorithm string          `json:"algorithm"`
	Items     []CandidateItem `json:"items"`
	Weight    float64         `json:"weight"`
	Elapsed   time.Duration   `json:"elapsed"`
	Err       error           `json:"-"`
}

// Failed reports whether the strategy contributed nothing because of an error or timeout.
func (r *RecallResult) Failed() bool {
	return r.Err != nil
}

// RankedItem is one entry of the final, client-facing list.
type RankedItem struct {
	ContentID  string   `json:"content_id"`
	FinalScore float64  `json:"final_score"`
	Reason     string   `json:"reason,omitempty"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
}

// RecommendResponse is the orchestrator output and the cached unit.
type RecommendResponse struct {
	Items            []RankedItem      `json:"items"`
	Total            int               `json:"total"`
	RequestID        string            `json:"request_id"`
	AlgorithmVersion string            `json:"algorithm_version"`
	FromCache        bool              `json:"from_cache"`
	ExtraInfo        map[string]string `json:"extra_info,omitempty"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// FallbackVersionPrefix marks responses produced by the fallback chain.
const FallbackVersionPrefix = "fallback_"

// IsFallback reports whether the response came from the fallback chain.
func (r *RecommendResponse) IsFallback() bool {
	return strings.HasPrefix(r.AlgorithmVersion, FallbackVersionPrefix)
}

// SortRankedItems orders items by descending FinalScore, ties broken by ascending ContentID.
// The ordering is total, so the result does not depend on the input order.
func SortRankedItems(items []RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].FinalScore != items[j].FinalScore {
			return items[i].FinalScore > items[j].FinalScore
		}
		return items[i].ContentID < items[j].ContentID
	})
}

// RankedItemsSorted reports whether items satisfy the SortRankedItems order.
func RankedItemsSorted(items []RankedItem) bool {
	for i := 1; i < len(items); i++ {
		prev, cur := items[i-1], items[i]
		if prev.FinalScore < cur.FinalScore {
			return false
		}
		if prev.FinalScore == cur.FinalScore && prev.ContentID > cur.ContentID {
			return false
		}
	}
	return true
}

// ExperimentAssignment records which arm of an experiment a user falls into.
type ExperimentAssignment struct {
	UserID         string `json:"user_id"`
	ExperimentName string `json:"experiment_name"`
	Bucket         string `json:"bucket"`
	Variant        string `json:"variant"`
}
