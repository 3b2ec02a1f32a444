package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingProvider(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func TestTracing_SpanNames(t *testing.T) {
	tests := []struct {
		path      string
		wantSpans int
		wantName  string
	}{
		{"/events/search", 1, "GET /events/search"},
		{"/events/42", 1, "GET " + unmatchedRoute},
		{"/health", 0, ""},
		{"/metrics", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			recorder := newRecordingProvider(t)

			var traceID string
			handler := Tracing("test-service")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				traceID = GetTraceID(r)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			spans := recorder.Ended()
			if len(spans) != tt.wantSpans {
				t.Fatalf("spans = %d, want %d", len(spans), tt.wantSpans)
			}
			if tt.wantSpans == 0 {
				return
			}
			if spans[0].Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", spans[0].Name(), tt.wantName)
			}
			if traceID != spans[0].SpanContext().TraceID().String() {
				t.Errorf("trace ID %q does not match span", traceID)
			}
		})
	}
}

func TestTracing_PropagatesIncomingContext(t *testing.T) {
	recorder := newRecordingProvider(t)
	prevProp := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prevProp) })

	handler := Tracing("test-service")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/events/search", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace ID = %s, want the incoming one", got)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if id := GetTraceID(httptest.NewRequest(http.MethodGet, "/", nil)); id != "" {
		t.Errorf("GetTraceID = %q, want empty", id)
	}
}
