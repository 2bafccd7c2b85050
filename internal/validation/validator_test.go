// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package validation

import (
	"strings"
	"testing"
)

type bboxRequest struct {
	MinLat *float64 `query:"min_lat" validate:"required_with=MaxLat MinLon MaxLon"`
	MaxLat *float64 `query:"max_lat" validate:"required_with=MinLat MinLon MaxLon"`
	MinLon *float64 `query:"min_lon" validate:"required_with=MinLat MaxLat MaxLon"`
	MaxLon *float64 `query:"max_lon" validate:"required_with=MinLat MaxLat MinLon"`
	From   string   `query:"from" validate:"omitempty,rfc3339"`
	Limit  int      `query:"limit" validate:"min=1,max=10000"`
	Policy string   `json:"policy" validate:"omitempty,oneof=drop_oldest drop_newest disconnect"`
}

func f(v float64) *float64 { return &v }

func TestGetValidator_Singleton(t *testing.T) {
	v1, v2 := GetValidator(), GetValidator()
	if v1 == nil || v1 != v2 {
		t.Fatal("GetValidator() should return one shared instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name string
		req  bboxRequest
	}{
		{"no bbox", bboxRequest{Limit: 1}},
		{"full bbox", bboxRequest{MinLat: f(-10), MaxLat: f(10), MinLon: f(0), MaxLon: f(0), Limit: 100}},
		{"rfc3339", bboxRequest{From: "2024-05-01T12:00:00Z", Limit: 10000}},
		{"rfc3339 with fraction and offset", bboxRequest{From: "2024-05-01T12:00:00.123+02:00", Limit: 5}},
		{"oneof", bboxRequest{Policy: "drop_newest", Limit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(&tt.req); err != nil {
				t.Errorf("ValidateStruct() = %v, want nil", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		req       bboxRequest
		wantField string
		wantTag   string
	}{
		{"limit zero", bboxRequest{}, "limit", "min"},
		{"limit too large", bboxRequest{Limit: 10001}, "limit", "max"},
		{"bad timestamp", bboxRequest{From: "2024-05-01", Limit: 1}, "from", "rfc3339"},
		{"bad policy", bboxRequest{Policy: "block", Limit: 1}, "policy", "oneof"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			found := false
			for _, fe := range err.Errors() {
				if fe.Field() == tt.wantField && fe.Tag() == tt.wantTag {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not include %s/%s", err, tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestValidateStruct_PartialBBox(t *testing.T) {
	req := bboxRequest{MinLat: f(0), Limit: 1}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected partial bbox to fail")
	}
	if got := len(err.Errors()); got != 3 {
		t.Fatalf("got %d errors, want 3 (max_lat, min_lon, max_lon)", got)
	}
	msg := err.Errors()[0].Error()
	if !strings.Contains(msg, "max_lat is required when") || !strings.Contains(msg, "min_lat") {
		t.Errorf("message = %q", msg)
	}
}

func TestToAPIError(t *testing.T) {
	single := ValidateStruct(&bboxRequest{Limit: 0}).ToAPIError()
	if single.Code != CodeValidationFailed {
		t.Errorf("Code = %q, want %q", single.Code, CodeValidationFailed)
	}
	if single.Details["field"] != "limit" {
		t.Errorf("Details[field] = %v, want limit", single.Details["field"])
	}
	if single.Message != "limit must be at least 1" {
		t.Errorf("Message = %q", single.Message)
	}

	multi := ValidateStruct(&bboxRequest{Limit: 0, From: "yesterday"}).ToAPIError()
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("Details[fields] = %#v, want two entries", multi.Details["fields"])
	}
	if !strings.Contains(multi.Message, "; ") {
		t.Errorf("Message %q should join both failures", multi.Message)
	}

	empty := (&RequestValidationError{}).ToAPIError()
	if empty.Code != CodeValidationFailed || empty.Message == "" {
		t.Errorf("empty ToAPIError() = %+v", empty)
	}
}

func TestValidationError_DereferencesPointerValues(t *testing.T) {
	req := struct {
		Lat *float64 `query:"lat" validate:"omitempty,latitude"`
	}{Lat: f(91)}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected latitude failure")
	}
	if v, ok := err.Errors()[0].Value().(float64); !ok || v != 91 {
		t.Errorf("Value() = %#v, want 91", err.Errors()[0].Value())
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("2024-05-01T14:00:00+02:00")
	if err != nil {
		t.Fatal(err)
	}
	if got.Location().String() != "UTC" || got.Hour() != 12 {
		t.Errorf("ParseTimestamp = %v, want 12:00 UTC", got)
	}
	if _, err := ParseTimestamp("1714564800"); err == nil {
		t.Error("expected unix seconds to be rejected")
	}
}

func TestToSnake(t *testing.T) {
	for in, want := range map[string]string{"MinLat": "min_lat", "Limit": "limit", "MaxLon": "max_lon"} {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}
