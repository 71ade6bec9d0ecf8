package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTraceContextPropagation verifies that trace context is properly propagated
func TestTraceContextPropagation(t *testing.T) {
	// Create a test exporter to capture spans
	exporter := tracetest.NewInMemoryExporter()

	// Create tracer provider with the test exporter
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)

	// Set up propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Create test router with OTEL middleware
	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServiceAPI))
	r.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		// Application spans started from the request context join its trace
		_, span := Tracer().Start(r.Context(), "habits.list")
		span.End()
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	})

	tests := []struct {
		name            string
		withTraceParent bool
		traceParent     string
	}{
		{
			name:            "without existing trace ID",
			withTraceParent: false,
		},
		{
			name:            "with existing trace ID",
			withTraceParent: true,
			traceParent:     "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear previous spans
			exporter.Reset()

			// Create test request
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.withTraceParent {
				req.Header.Set("traceparent", tt.traceParent)
			}

			// Record response
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			// Verify response
			if rr.Code != http.StatusOK {
				t.Errorf("Expected status OK, got %d", rr.Code)
			}

			// Force flush
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Errorf("Failed to flush tracer provider: %v", err)
			}

			spans := exporter.GetSpans()
			if len(spans) != 2 {
				t.Fatalf("Expected request and application spans, got %d", len(spans))
			}
			if spans[0].Name != "habits.list" {
				t.Errorf("Expected child span habits.list first, got %s", spans[0].Name)
			}
			if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
				t.Error("Expected application span to be a child of the request span")
			}

			// If trace parent was provided, verify it was used
			if tt.withTraceParent && len(spans) > 0 {
				if got := spans[1].SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
					t.Errorf("Expected incoming trace ID to be continued, got %s", got)
				}
			}
		})
	}
}
