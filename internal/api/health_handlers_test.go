package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	name string
	err  error
}

func (m *mockHealthChecker) Name() string { return m.name }

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error { return m.err }

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers()

	w := httptest.NewRecorder()
	handlers.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	response := decodeHealth(t, w)
	if response.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %s", response.Status)
	}
	if response.Checks["runtime"] != "ok" {
		t.Errorf("expected runtime check to be 'ok', got %s", response.Checks["runtime"])
	}
	if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
		t.Errorf("timestamp is not valid RFC3339: %v", err)
	}
}

func TestReady(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name       string
		checkers   []HealthChecker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"metrics": "ok"},
		},
		{
			name: "all healthy",
			checkers: []HealthChecker{
				&mockHealthChecker{name: "database"},
				&mockHealthChecker{name: "redis"},
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok", "metrics": "ok"},
		},
		{
			name: "redis down",
			checkers: []HealthChecker{
				&mockHealthChecker{name: "database"},
				&mockHealthChecker{name: "redis", err: down},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "redis": "error", "metrics": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandlers(tt.checkers...).Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			response := decodeHealth(t, w)
			wantStatus := "healthy"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "unhealthy"
			}
			if response.Status != wantStatus {
				t.Errorf("status field = %q, want %q", response.Status, wantStatus)
			}
			if len(response.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %v, want %v", response.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if response.Checks[name] != want {
					t.Errorf("check %s = %q, want %q", name, response.Checks[name], want)
				}
			}
		})
	}
}
