package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestDBCall_Status(t *testing.T) {
	rec := withRecorder(t)
	boom := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"ok", nil, codes.Ok},
		{"no rows", pgx.ErrNoRows, codes.Ok},
		{"failure", boom, codes.Error},
	}
	for _, tt := range tests {
		err := DBCall(context.Background(), "select", "run_states", func(context.Context) error {
			return tt.err
		})
		if !errors.Is(err, tt.err) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.err)
		}
	}

	spans := rec.Ended()
	if len(spans) != len(tests) {
		t.Fatalf("spans = %d, want %d", len(spans), len(tests))
	}
	for i, tt := range tests {
		if got := spans[i].Status().Code; got != tt.want {
			t.Errorf("%s: status = %v, want %v", tt.name, got, tt.want)
		}
		if spans[i].Name() != "db.select" {
			t.Errorf("%s: name = %q", tt.name, spans[i].Name())
		}
	}
}
