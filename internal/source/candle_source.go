package source

import (
	"fmt"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/digest"
	"candlegraph/internal/event"
	"candlegraph/internal/interval"
	"candlegraph/internal/logger"
	"candlegraph/internal/pricing"
	"candlegraph/internal/timelapse"
	"candlegraph/internal/tserr"
	"candlegraph/internal/tsarray"
)

// CandleSource is a Timelapse of OHLC candles. It may additionally act as a
// LinkedSource: a sink that rebins a finer CandleSource's ticks into its own
// coarser candles, while remaining an ordinary source for its own
// downstream subscribers.
type CandleSource struct {
	timelapse.Timelapse[pricing.Candle]
	initial *pricing.Candle

	onRefreshIndicators event.Event[broadcast.RefreshArgs]
	onRefreshLinked     event.Event[broadcast.RefreshArgs]

	link *linkState
}

// linkState holds the LinkedSource bookkeeping while this source is linked
// to a finer CandleSource. Reset to nil on Unlink.
type linkState struct {
	finer           broadcast.LinkedBroadcaster
	relativeBinSize int
	lastReadUbound  int
	baseIndex       int
	unsub           broadcast.Unsubscribe
}

// NewCandleSource constructs an empty candle source.
func NewCandleSource(iv interval.Interval, baseTimestamp time.Time, chunkSize int, initial *pricing.Candle, warn func(kind, msg string)) (*CandleSource, error) {
	if !iv.AllowedAsSource() {
		return nil, fmt.Errorf("source: interval %s is not allowed as a source interval: %w", iv, tserr.ErrInvalidArgument)
	}
	tl, err := timelapse.New[pricing.Candle](iv, baseTimestamp, chunkSize, 1, pricing.Candle{}, warn)
	if err != nil {
		return nil, err
	}
	return &CandleSource{Timelapse: *tl, initial: initial}, nil
}

// Interval and BaseTimestamp are wrappers: Timelapse exposes them as fields,
// but broadcast.Broadcaster/LinkedBroadcaster require methods of the same
// name.
func (s *CandleSource) Interval() interval.Interval { return s.Timelapse.Interval }
func (s *CandleSource) BaseTimestamp() time.Time    { return s.Timelapse.BaseTimestamp }
func (s *CandleSource) Kind() broadcast.Kind        { return broadcast.KindCandle }

// ProjectedAt satisfies broadcast.Broadcaster: projects the candle at i to
// the scalar column named by component.
func (s *CandleSource) ProjectedAt(i int, component broadcast.Component) float64 {
	row, err := s.Array.Get(i)
	if err != nil {
		return 0
	}
	return float64(row[0].Project(int(component)))
}

func (s *CandleSource) SubscribeIndicator(cb func(broadcast.RefreshArgs)) broadcast.Unsubscribe {
	h := s.onRefreshIndicators.Register(cb)
	return func() { s.onRefreshIndicators.Unregister(h) }
}

func (s *CandleSource) SubscribeLinked(cb func(broadcast.RefreshArgs)) broadcast.Unsubscribe {
	h := s.onRefreshLinked.Register(cb)
	return func() { s.onRefreshLinked.Unregister(h) }
}

// CandleAt satisfies broadcast.LinkedBroadcaster.
func (s *CandleSource) CandleAt(i int) pricing.Candle {
	row, err := s.Array.Get(i)
	if err != nil {
		return pricing.Candle{}
	}
	return row[0]
}

// At is an error-returning accessor for direct callers.
func (s *CandleSource) At(i int) (pricing.Candle, error) {
	row, err := s.Array.Get(i)
	if err != nil {
		return pricing.Candle{}, err
	}
	return row[0], nil
}

// Push writes candles starting at index, back-fill interpolating any gap
// first, then fires on_refresh_linked_sources followed by
// on_refresh_indicators over [index, end).
func (s *CandleSource) Push(data []pricing.Candle, index int) error {
	if index < 0 {
		index = s.Len()
	}
	if len(data) == 0 {
		return nil
	}
	if index > s.Len() {
		if err := s.interpolateGap(index, data[0]); err != nil {
			return err
		}
	}
	end := index + len(data)
	rows := make([]tsarray.Row[pricing.Candle], len(data))
	for i, c := range data {
		rows[i] = tsarray.Row[pricing.Candle]{c}
	}
	if err := s.Array.SetSlice(index, end, rows); err != nil {
		return err
	}
	s.onRefreshLinked.Trigger(broadcast.RefreshArgs{Start: index, End: end})
	s.onRefreshIndicators.Trigger(broadcast.RefreshArgs{Start: index, End: end})
	return nil
}

// PushAt is Push with a timestamp index, converted via the embedded
// Timelapse's IndexFor.
func (s *CandleSource) PushAt(ts time.Time, data []pricing.Candle) error {
	idx, err := s.IndexFor(ts)
	if err != nil {
		return err
	}
	return s.Push(data, idx)
}

func (s *CandleSource) interpolateGap(index int, right pricing.Candle) error {
	left, leftIndex, err := s.leftBoundary()
	if err != nil {
		return err
	}
	distance := index - leftIndex
	if distance <= 1 {
		return nil
	}
	rows := make([]tsarray.Row[pricing.Candle], distance-1)
	for i := 1; i < distance; i++ {
		rows[i-1] = tsarray.Row[pricing.Candle]{interpolateCandle(left, right, i, distance)}
	}
	if err := s.Array.SetSlice(leftIndex+1, index, rows); err != nil {
		return err
	}
	logger.Warn("interpolation", "back-fill interpolation applied", "gap_rows", distance-1)
	return nil
}

func (s *CandleSource) leftBoundary() (pricing.Candle, int, error) {
	if s.Len() == 0 {
		if s.initial == nil {
			return pricing.Candle{}, 0, fmt.Errorf("source: push before index 0 with no initial value set: %w", tserr.ErrMissingInitial)
		}
		return *s.initial, -1, nil
	}
	row, err := s.Array.Get(s.Len() - 1)
	if err != nil {
		return pricing.Candle{}, 0, err
	}
	return row[0], s.Len() - 1, nil
}

// interpolateCandle linearly interpolates each OHLC field independently
// (rounding toward zero, matching integer-price interpolation), then
// re-clamps min/max so the start<=... invariant holds after rounding. The
// original mistra implementation does not reclamp; this is an intentional
// deviation, see DESIGN.md.
func interpolateCandle(left, right pricing.Candle, i, distance int) pricing.Candle {
	start := interpInt(left.Start, right.Start, i, distance)
	end := interpInt(left.End, right.End, i, distance)
	mn := interpInt(left.Min, right.Min, i, distance)
	mx := interpInt(left.Max, right.Max, i, distance)
	if start < mn {
		mn = start
	}
	if end < mn {
		mn = end
	}
	if start > mx {
		mx = start
	}
	if end > mx {
		mx = end
	}
	return pricing.Candle{Start: start, End: end, Min: mn, Max: mx}
}

func interpInt(left, right pricing.StandardizedPrice, i, distance int) pricing.StandardizedPrice {
	l, r := int64(left), int64(right)
	v := l + (r-l)*int64(i)/int64(distance)
	return pricing.StandardizedPrice(v)
}

// Link subscribes this candle source to a finer candle source, turning it
// into a LinkedSource: every finer update is rebinned into this source's own
// coarser candles, translated by base_index = IndexFor(finer.BaseTimestamp).
func (s *CandleSource) Link(finer broadcast.LinkedBroadcaster) error {
	if s.link != nil {
		return fmt.Errorf("source: already linked: %w", tserr.ErrAlignment)
	}
	if !s.Interval().AllowedAsDigest(finer.Interval()) {
		return fmt.Errorf("source: interval %s cannot link finer %s: %w", s.Interval(), finer.Interval(), tserr.ErrAlignment)
	}
	if finer.BaseTimestamp().Before(s.BaseTimestamp()) {
		return fmt.Errorf("source: finer base timestamp %s precedes self base %s: %w", finer.BaseTimestamp(), s.BaseTimestamp(), tserr.ErrAlignment)
	}
	baseIndex, err := s.IndexFor(finer.BaseTimestamp())
	if err != nil {
		return err
	}
	ls := &linkState{
		finer:           finer,
		relativeBinSize: int(s.Interval().Seconds() / finer.Interval().Seconds()),
		baseIndex:       baseIndex,
	}
	ls.unsub = finer.SubscribeLinked(func(args broadcast.RefreshArgs) { s.onFinerUpdate(args) })
	s.link = ls
	return nil
}

// Unlink unsubscribes from the finer source and resets rebinning state.
func (s *CandleSource) Unlink() {
	if s.link == nil {
		return
	}
	if s.link.unsub != nil {
		s.link.unsub()
	}
	s.link = nil
}

func (s *CandleSource) onFinerUpdate(args broadcast.RefreshArgs) {
	ls := s.link
	if ls == nil {
		return
	}
	minIdx, maxIdx, newUbound := digest.Rebin(ls.finer, ls.relativeBinSize, ls.lastReadUbound, args.Start, args.End, func(i int, c pricing.Candle) {
		_ = s.Array.Set(i+ls.baseIndex, tsarray.Row[pricing.Candle]{c})
	})
	ls.lastReadUbound = newUbound
	if maxIdx > minIdx {
		translated := broadcast.RefreshArgs{Start: minIdx + ls.baseIndex, End: maxIdx + ls.baseIndex}
		s.onRefreshLinked.Trigger(translated)
		s.onRefreshIndicators.Trigger(translated)
	}
}
