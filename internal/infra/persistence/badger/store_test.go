package badger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestInMemoryBuckets(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.SaveBuckets(ctx, map[string][]byte{"issues": []byte(`[]`), "links": []byte(`[]`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveBuckets(ctx, map[string][]byte{"issues": []byte(`[{"id":"1"}]`)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadBuckets(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || string(got["issues"]) != `[{"id":"1"}]` || string(got["links"]) != `[]` {
		t.Fatalf("unexpected buckets %q", got)
	}
}

func TestBucketsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewStore(dir, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SaveBuckets(ctx, map[string][]byte{"lastSync": []byte(`"2024-01-01T00:00:00Z"`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(dir, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, err := reopened.LoadBuckets(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got["lastSync"]) != `"2024-01-01T00:00:00Z"` {
		t.Fatalf("unexpected lastSync %q", got["lastSync"])
	}
}

func TestCancelledContext(t *testing.T) {
	s, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SaveBuckets(ctx, map[string][]byte{"x": nil}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
