package runctx

import (
	"context"
	"testing"
)

func TestWithAttachesIdentity(t *testing.T) {
	ctx := With(context.Background())

	run, ok := From(ctx)
	if !ok {
		t.Fatal("Expected run identity on context")
	}
	if len(run.ID) != 16 {
		t.Errorf("Expected 16-char run ID, got %q", run.ID)
	}
	if run.Started.IsZero() {
		t.Error("Expected start time to be set")
	}
}

func TestWithReplacesIdentity(t *testing.T) {
	ctx := With(context.Background())
	first, _ := From(ctx)

	ctx = With(ctx)
	second, _ := From(ctx)

	if first.ID == second.ID {
		t.Errorf("Expected a fresh ID per With call, got %q twice", first.ID)
	}
}

func TestFromWithoutIdentity(t *testing.T) {
	if _, ok := From(context.Background()); ok {
		t.Error("Expected no run identity on a bare context")
	}
}
