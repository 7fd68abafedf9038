package source

import (
	"testing"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/interval"
	"candlegraph/internal/pricing"
)

func mustPriceSource(t *testing.T, initial *pricing.StandardizedPrice) *PriceSource {
	t.Helper()
	s, err := NewPriceSource(interval.Minute, time.Unix(0, 0).UTC(), 4, initial, nil)
	if err != nil {
		t.Fatalf("NewPriceSource: %v", err)
	}
	return s
}

func TestPriceSourceSimplePush(t *testing.T) {
	s := mustPriceSource(t, nil)
	if err := s.Push([]pricing.StandardizedPrice{100, 101, 102}, 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	for i, want := range []pricing.StandardizedPrice{100, 101, 102} {
		got, err := s.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if got != want {
			t.Fatalf("At(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestPriceSourceInterpolation(t *testing.T) {
	initial := pricing.StandardizedPrice(100)
	s := mustPriceSource(t, &initial)
	if err := s.Push([]pricing.StandardizedPrice{200}, 4); err != nil {
		t.Fatalf("Push: %v", err)
	}
	want := []pricing.StandardizedPrice{120, 140, 160, 180, 200}
	if s.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", s.Len(), len(want))
	}
	for i, w := range want {
		got, err := s.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if got != w {
			t.Fatalf("At(%d) = %d, want %d", i, got, w)
		}
	}
}

func TestPriceSourceMissingInitialFails(t *testing.T) {
	s := mustPriceSource(t, nil)
	if err := s.Push([]pricing.StandardizedPrice{100}, 4); err == nil {
		t.Fatal("expected MissingInitial error")
	}
}

func TestPriceSourceFiresEventsInOrder(t *testing.T) {
	s := mustPriceSource(t, nil)
	var order []string
	s.onRefreshLinked.Register(func(broadcast.RefreshArgs) { order = append(order, "linked") })
	s.onRefreshIndicators.Register(func(broadcast.RefreshArgs) { order = append(order, "indicators") })
	if err := s.Push([]pricing.StandardizedPrice{1}, 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(order) != 2 || order[0] != "linked" || order[1] != "indicators" {
		t.Fatalf("order = %v, want [linked indicators]", order)
	}
}

func TestCandleSourceLinkDigestsFiveMinute(t *testing.T) {
	base := time.Unix(0, 0).UTC()
	finer, err := NewCandleSource(interval.Minute, base, 4, nil, nil)
	if err != nil {
		t.Fatalf("NewCandleSource(finer): %v", err)
	}
	coarse, err := NewCandleSource(interval.FiveMinutes, base, 4, nil, nil)
	if err != nil {
		t.Fatalf("NewCandleSource(coarse): %v", err)
	}
	if err := coarse.Link(finer); err != nil {
		t.Fatalf("Link: %v", err)
	}
	candles := make([]pricing.Candle, 15)
	for i := range candles {
		p := pricing.StandardizedPrice(i + 1)
		candles[i] = pricing.NewCandle(p)
	}
	if err := finer.Push(candles, 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if coarse.Len() != 3 {
		t.Fatalf("coarse.Len() = %d, want 3", coarse.Len())
	}
	got, err := coarse.At(0)
	if err != nil {
		t.Fatalf("At(0): %v", err)
	}
	want := candles[0]
	for i := 1; i < 5; i++ {
		want = want.MergeCandle(candles[i])
	}
	if got != want {
		t.Fatalf("coarse[0] = %+v, want %+v", got, want)
	}
}
