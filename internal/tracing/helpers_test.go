package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newSpanRecorder installs a fresh recording tracer provider and returns
// the recorder. The previous global provider is restored on cleanup.
func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
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

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"query with table", "content_items", DBOperationQuery, "query content_items"},
		{"insert with table", "discovery_events", DBOperationInsert, "insert discovery_events"},
		{"delete with table", "trending_snapshots", DBOperationDelete, "delete trending_snapshots"},
		{"upsert with table", "experiment_assignments", DBOperationUpsert, "upsert experiment_assignments"},
		{"query without table", "", DBOperationQuery, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := newSpanRecorder(t)

			_, endSpan := StartDBSpan(context.Background(), tt.table, tt.operation)
			endSpan(nil)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			if got := spans[0].Name(); got != tt.wantName {
				t.Errorf("span name = %q, want %q", got, tt.wantName)
			}

			attrs := spans[0].Attributes()
			if !hasAttribute(attrs, "db.system", "postgresql") {
				t.Error("expected db.system=postgresql attribute")
			}
			if tt.table != "" && !hasAttribute(attrs, "db.sql.table", tt.table) {
				t.Errorf("expected db.sql.table=%s attribute", tt.table)
			}
		})
	}
}

func TestStartDBSpan_RecordsError(t *testing.T) {
	recorder := newSpanRecorder(t)

	_, endSpan := StartDBSpan(context.Background(), "content_items", DBOperationQuery)
	endSpan(errors.New("connection refused"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestStartSpan(t *testing.T) {
	recorder := newSpanRecorder(t)

	_, endSpan := StartSpan(context.Background(), "trending.run")
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "trending.run" {
		t.Errorf("span name = %q, want trending.run", spans[0].Name())
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("clean end should not set error status")
	}
}

func TestAddEventAndSetAttributes(t *testing.T) {
	recorder := newSpanRecorder(t)

	ctx, endSpan := StartSpan(context.Background(), "discovery.next")
	AddEvent(ctx, "pool_loaded", attribute.Int("pool_size", 300))
	SetAttributes(ctx, attribute.String("algorithm", "default"))
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(spans[0].Events()))
	}
	if spans[0].Events()[0].Name != "pool_loaded" {
		t.Errorf("event name = %q, want pool_loaded", spans[0].Events()[0].Name)
	}
	if !hasAttribute(spans[0].Attributes(), "algorithm", "default") {
		t.Error("expected algorithm attribute on span")
	}
}

func hasAttribute(attrs []attribute.KeyValue, key, value string) bool {
	for _, a := range attrs {
		if string(a.Key) == key && a.Value.AsString() == value {
			return true
		}
	}
	return false
}
