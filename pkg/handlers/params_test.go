package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestParseID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		pathValue  string
		wantOK     bool
		wantStatus int
	}{
		{name: "valid UUID", pathValue: "550e8400-e29b-41d4-a716-446655440000", wantOK: true},
		{name: "invalid UUID", pathValue: "not-a-uuid", wantStatus: http.StatusBadRequest},
		{name: "empty", pathValue: "", wantStatus: http.StatusBadRequest},
		{name: "numeric id", pathValue: "42", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/datasources/x", nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseID(rec, req, logger)

			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK {
				if id.String() != tt.pathValue {
					t.Errorf("id = %s, want %s", id, tt.pathValue)
				}
				return
			}

			if id != uuid.Nil {
				t.Errorf("expected uuid.Nil on failure, got %s", id)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["error"] != "invalid_id" {
				t.Errorf("error = %q, want invalid_id", body["error"])
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name   string
		target string
		want   int
		wantOK bool
	}{
		{"absent uses default", "/x", 3, true},
		{"explicit", "/x?limit=7", 7, true},
		{"malformed", "/x?limit=abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := queryInt(rec, httptest.NewRequest(http.MethodGet, tt.target, nil), "limit", 3, logger)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("queryInt = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
			if !tt.wantOK && rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestQueryBool(t *testing.T) {
	if !queryBool(httptest.NewRequest(http.MethodGet, "/x?include_views=true", nil), "include_views") {
		t.Error("expected true")
	}
	if queryBool(httptest.NewRequest(http.MethodGet, "/x?include_views=maybe", nil), "include_views") {
		t.Error("malformed value should be false")
	}
	if queryBool(httptest.NewRequest(http.MethodGet, "/x", nil), "include_views") {
		t.Error("absent value should be false")
	}
}
