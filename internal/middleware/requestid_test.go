package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantKeep bool
	}{
		{name: "no header", header: "", wantKeep: false},
		{name: "client id kept", header: "existing-request-id-123", wantKeep: true},
		{name: "too long", header: strings.Repeat("a", maxRequestIDLength+1), wantKeep: false},
		{name: "control characters", header: "bad\x01id", wantKeep: false},
		{name: "spaces", header: "has space", wantKeep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/events/search", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Header().Get(RequestIDHeader) != captured {
				t.Errorf("response header %q != context id %q", rr.Header().Get(RequestIDHeader), captured)
			}
			if tt.wantKeep {
				if captured != tt.header {
					t.Errorf("request ID = %q, want %q", captured, tt.header)
				}
				return
			}
			if _, err := uuid.Parse(captured); err != nil {
				t.Errorf("request ID = %q, want a generated UUID", captured)
			}
		})
	}
}

func TestGetRequestID_EmptyContextReturnsEmptyString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("expected empty string, got %q", id)
	}
}
