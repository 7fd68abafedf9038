package indicator

import (
	"math"
	"testing"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/event"
	"candlegraph/internal/interval"
	"candlegraph/internal/pricing"
	"candlegraph/internal/source"
)

func mustPriceSource(t *testing.T) *source.PriceSource {
	t.Helper()
	s, err := source.NewPriceSource(interval.Minute, time.Unix(0, 0).UTC(), 4, nil, nil)
	if err != nil {
		t.Fatalf("NewPriceSource: %v", err)
	}
	return s
}

func isNaN(f float64) bool { return math.IsNaN(f) }

func TestMovingMeanPropagation(t *testing.T) {
	s := mustPriceSource(t)
	if err := s.Push([]pricing.StandardizedPrice{10, 20, 30, 40, 50}, 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	m, err := NewMovingMean(s, 3, broadcast.ComponentEnd, true, 4, nil)
	if err != nil {
		t.Fatalf("NewMovingMean: %v", err)
	}
	want := []float64{math.NaN(), math.NaN(), 20, 30, 40}
	for i, w := range want {
		got := m.At(i)
		if isNaN(w) {
			if !isNaN(got) {
				t.Fatalf("At(%d) = %v, want NaN", i, got)
			}
			continue
		}
		if got != w {
			t.Fatalf("At(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestMovingVarianceOverMean(t *testing.T) {
	s := mustPriceSource(t)
	if err := s.Push([]pricing.StandardizedPrice{10, 20, 30, 40, 50}, 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	m, err := NewMovingMean(s, 3, broadcast.ComponentEnd, true, 4, nil)
	if err != nil {
		t.Fatalf("NewMovingMean: %v", err)
	}
	v, err := NewMovingVariance(m, true, true, true, 4, nil)
	if err != nil {
		t.Fatalf("NewMovingVariance: %v", err)
	}
	variance := v.ColumnAt(2, 0)
	stderr := v.ColumnAt(2, 1)
	if variance != 100 {
		t.Fatalf("variance at i=2 = %v, want 100", variance)
	}
	if stderr != 10 {
		t.Fatalf("stderr at i=2 = %v, want 10", stderr)
	}
}

func TestDisposeCascade(t *testing.T) {
	s := mustPriceSource(t)
	if err := s.Push([]pricing.StandardizedPrice{10, 20, 30, 40, 50}, 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	m, err := NewMovingMean(s, 3, broadcast.ComponentEnd, true, 4, nil)
	if err != nil {
		t.Fatalf("NewMovingMean: %v", err)
	}
	v, err := NewMovingVariance(m, true, true, true, 4, nil)
	if err != nil {
		t.Fatalf("NewMovingVariance: %v", err)
	}

	m.Dispose()

	if !v.Disposed() {
		t.Fatal("v.Disposed() = false, want true after parent dispose")
	}
	if !m.Disposed() {
		t.Fatal("m.Disposed() = false, want true")
	}
	if err := s.Push([]pricing.StandardizedPrice{60}, 5); err != nil {
		t.Fatalf("Push after dispose: %v", err)
	}
}

// fakeBroadcaster is a minimal broadcast.Broadcaster double for exercising
// Base's multi-dependency high-water-mark join directly, independent of any
// concrete Source/Indicator implementation.
type fakeBroadcaster struct {
	iv   interval.Interval
	base time.Time
	len  int
	sub  event.Event[broadcast.RefreshArgs]
	vals []float64
}

func (f *fakeBroadcaster) Interval() interval.Interval { return f.iv }
func (f *fakeBroadcaster) BaseTimestamp() time.Time    { return f.base }
func (f *fakeBroadcaster) Len() int                    { return f.len }
func (f *fakeBroadcaster) Kind() broadcast.Kind        { return broadcast.KindPrice }
func (f *fakeBroadcaster) ProjectedAt(i int, _ broadcast.Component) float64 {
	return f.vals[i]
}
func (f *fakeBroadcaster) SubscribeIndicator(cb func(broadcast.RefreshArgs)) broadcast.Unsubscribe {
	h := f.sub.Register(cb)
	return func() { f.sub.Unregister(h) }
}
func (f *fakeBroadcaster) push(n int) {
	f.len = n
	f.sub.Trigger(broadcast.RefreshArgs{Start: 0, End: n})
}

func TestIndicatorLengthIsMinOfDependencies(t *testing.T) {
	base := time.Unix(0, 0).UTC()
	a := &fakeBroadcaster{iv: interval.Minute, base: base, vals: []float64{1, 2, 3, 4, 5}}
	b := &fakeBroadcaster{iv: interval.Minute, base: base, vals: []float64{1, 2, 3}}
	a.len, b.len = 5, 3

	var ind Base
	var seen []broadcast.RefreshArgs
	err := ind.init([]broadcast.Broadcaster{a, b}, 1, 4, nil, func(start, end int) {
		seen = append(seen, broadcast.RefreshArgs{Start: start, End: end})
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(seen) == 0 {
		t.Fatal("expected at least one update call during seed")
	}
	last := seen[len(seen)-1]
	if last.End != 3 {
		t.Fatalf("joined end = %d, want min(len(a),len(b))=3", last.End)
	}
}
