package digest

import (
	"testing"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/interval"
	"candlegraph/internal/pricing"
)

// fakeLinkedSource is a minimal broadcast.LinkedBroadcaster double so Digest
// can be tested without depending on the source package.
type fakeLinkedSource struct {
	iv      interval.Interval
	base    time.Time
	candles []pricing.Candle
	subs    []func(broadcast.RefreshArgs)
}

func (f *fakeLinkedSource) Interval() interval.Interval   { return f.iv }
func (f *fakeLinkedSource) BaseTimestamp() time.Time      { return f.base }
func (f *fakeLinkedSource) Len() int                      { return len(f.candles) }
func (f *fakeLinkedSource) CandleAt(i int) pricing.Candle { return f.candles[i] }
func (f *fakeLinkedSource) SubscribeLinked(cb func(broadcast.RefreshArgs)) broadcast.Unsubscribe {
	f.subs = append(f.subs, cb)
	idx := len(f.subs) - 1
	return func() { f.subs[idx] = nil }
}
func (f *fakeLinkedSource) push(candles []pricing.Candle) {
	start := len(f.candles)
	f.candles = append(f.candles, candles...)
	end := len(f.candles)
	for _, cb := range f.subs {
		if cb != nil {
			cb(broadcast.RefreshArgs{Start: start, End: end})
		}
	}
}

func TestDigestAggregatesFiveToOne(t *testing.T) {
	base := time.Unix(0, 0).UTC()
	finer := &fakeLinkedSource{iv: interval.Minute, base: base}
	d, err := New(interval.FiveMinutes, finer, 4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	candles := make([]pricing.Candle, 15)
	for i := range candles {
		candles[i] = pricing.NewCandle(pricing.StandardizedPrice(i + 1))
	}
	finer.push(candles)
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	want := candles[0]
	for i := 1; i < 5; i++ {
		want = want.MergeCandle(candles[i])
	}
	if d.CandleAt(0) != want {
		t.Fatalf("CandleAt(0) = %+v, want %+v", d.CandleAt(0), want)
	}
}

func TestDigestIdempotentReplay(t *testing.T) {
	minIdx1, maxIdx1, ubound1 := Rebin(&fakeLinkedSource{candles: makeCandles(5)}, 5, 0, 0, 5, func(int, pricing.Candle) {})
	minIdx2, maxIdx2, ubound2 := Rebin(&fakeLinkedSource{candles: makeCandles(5)}, 5, ubound1, 0, 5, func(int, pricing.Candle) {})
	if minIdx1 != minIdx2 || maxIdx1 != maxIdx2 {
		t.Fatalf("replay produced different bin range: (%d,%d) vs (%d,%d)", minIdx1, maxIdx1, minIdx2, maxIdx2)
	}
	if ubound1 != ubound2 {
		t.Fatalf("ubound1=%d ubound2=%d, want equal after idempotent replay", ubound1, ubound2)
	}
}

func makeCandles(n int) []pricing.Candle {
	out := make([]pricing.Candle, n)
	for i := range out {
		out[i] = pricing.NewCandle(pricing.StandardizedPrice(i + 1))
	}
	return out
}
