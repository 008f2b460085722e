package memory

import (
	"context"
	"testing"
)

func TestSaveAndLoadBuckets(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	payload := []byte(`[{"id":"1"}]`)
	if err := s.SaveBuckets(ctx, map[string][]byte{"issues": payload, "links": []byte(`[]`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	payload[0] = 'x'
	if err := s.SaveBuckets(ctx, map[string][]byte{"links": []byte(`[{"key":"a"}]`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadBuckets(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got["issues"]) != `[{"id":"1"}]` || string(got["links"]) != `[{"key":"a"}]` {
		t.Fatalf("unexpected buckets %q", got)
	}
	got["issues"][0] = 'y'
	again, _ := s.LoadBuckets(ctx)
	if again["issues"][0] != '[' {
		t.Fatalf("loaded buckets alias stored state")
	}
	if s.Saves() != 2 {
		t.Fatalf("expected 2 saves, got %d", s.Saves())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
