package trace

import (
	"context"
	"testing"
)

func TestEnsureKeepsExistingID(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	ctx, id := Ensure(ctx)
	if id != "abc" || FromContext(ctx) != "abc" {
		t.Fatalf("Ensure replaced existing trace id: %q", id)
	}
}

func TestEnsureGeneratesID(t *testing.T) {
	ctx, id := Ensure(context.Background())
	if id == "" {
		t.Fatal("expected generated trace id")
	}
	if FromContext(ctx) != id {
		t.Fatalf("context carries %q, want %q", FromContext(ctx), id)
	}
}
