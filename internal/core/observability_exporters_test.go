package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "submit_update", true, 2*time.Millisecond)
	rec.Observe(ctx, "submit_update", true, time.Millisecond)
	rec.Observe(ctx, "submit_update", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("submit_update", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("submit_update", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.latency); n != 1 {
		t.Fatalf("expected one latency series, got %d", n)
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestPrometheusRecorderThroughService(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := newTestService(WithMetricsRecorder(rec))
	if _, err := svc.RemoveIssue(context.Background(), "missing"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("remove_issue", "success")); got != 1 {
		t.Fatalf("expected remove_issue counted, got %v", got)
	}
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	ticks := []time.Time{fixedNow, fixedNow.Add(3 * time.Millisecond)}
	tracer.clock = ClockFunc(func() time.Time {
		now := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return now
	})

	_, span := tracer.Start(context.Background(), "export")
	span.End(errors.New("boom"))
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("span ended twice: %+v", entries)
	}
	if entries[0].Status != "error" || entries[0].Error != "boom" || entries[0].DurationMS != 3 {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.Operation != "export" {
		t.Fatalf("unexpected line %s", buf.String())
	}
}
