// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/recommendcore/internal/models"
)

func TestValidateRecommendRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       models.RecommendRequest
		wantField string
	}{
		{
			name: "valid",
			req:  models.RecommendRequest{UserID: "u1", ContentType: models.ContentTypeArticle, Size: 10},
		},
		{
			name:      "empty user",
			req:       models.RecommendRequest{ContentType: models.ContentTypeVideo, Size: 10},
			wantField: "user_id",
		},
		{
			name:      "zero size",
			req:       models.RecommendRequest{UserID: "u1", ContentType: models.ContentTypeVideo},
			wantField: "size",
		},
		{
			name:      "negative size",
			req:       models.RecommendRequest{UserID: "u1", ContentType: models.ContentTypeVideo, Size: -3},
			wantField: "size",
		},
		{
			name:      "unknown content type",
			req:       models.RecommendRequest{UserID: "u1", ContentType: "podcast", Size: 5},
			wantField: "content_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verr := ValidateStruct(&tt.req)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if verr.Fields[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Fields[0].Field, tt.wantField)
			}
			if api := verr.ToAPIError(); api.Code != ErrorCode {
				t.Errorf("code = %q, want %q", api.Code, ErrorCode)
			}
		})
	}
}

func TestValidateFeedbackEventMultipleErrors(t *testing.T) {
	t.Parallel()

	ev := models.FeedbackEvent{FeedbackType: "purchase", Position: -1}
	verr := ValidateStruct(&ev)
	if verr == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}

	api := verr.ToAPIError()
	fields, ok := api.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("details = %#v, want fields list", api.Details)
	}
	if len(fields) != 4 {
		t.Errorf("got %d field errors, want 4 (user_id, content_id, feedback_type, position)", len(fields))
	}
	if !strings.Contains(api.Message, "feedback_type must be one of") {
		t.Errorf("message %q does not describe feedback_type", api.Message)
	}
}
