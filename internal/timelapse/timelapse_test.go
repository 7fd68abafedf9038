package timelapse

import (
	"testing"
	"time"

	"candlegraph/internal/interval"
)

func TestIndexForAlignment(t *testing.T) {
	base := time.Unix(0, 0).UTC()
	tl, err := New[float64](interval.Minute, base, 4, 1, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	idx, err := tl.IndexFor(base.Add(3 * time.Minute))
	if err != nil {
		t.Fatalf("IndexFor: %v", err)
	}
	if idx != 3 {
		t.Fatalf("IndexFor = %d, want 3", idx)
	}
	if _, err := tl.IndexFor(base.Add(90 * time.Second)); err == nil {
		t.Fatal("expected alignment error for non-multiple offset")
	}
}

func TestTimestampAtRoundTrip(t *testing.T) {
	base := time.Unix(1000, 0).UTC()
	tl, err := New[float64](interval.Minute, base, 4, 1, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := tl.TimestampAt(5)
	idx, err := tl.IndexFor(ts)
	if err != nil {
		t.Fatalf("IndexFor: %v", err)
	}
	if idx != 5 {
		t.Fatalf("round trip idx = %d, want 5", idx)
	}
}
