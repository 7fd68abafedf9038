// Package source implements the two concrete Source flavors: a price-typed
// source of StandardizedPrice ticks, and a candle-typed source that also
// supports linking to a finer candle source via the digest package's
// rebinning algorithm.
package source

import (
	"fmt"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/event"
	"candlegraph/internal/interval"
	"candlegraph/internal/logger"
	"candlegraph/internal/pricing"
	"candlegraph/internal/timelapse"
	"candlegraph/internal/tserr"
	"candlegraph/internal/tsarray"
)

// PriceSource is a Timelapse of StandardizedPrice ticks: the finest-grained
// producer in the graph, typically fed directly from an external feed.
type PriceSource struct {
	timelapse.Timelapse[pricing.StandardizedPrice]
	initial *pricing.StandardizedPrice

	onRefreshIndicators event.Event[broadcast.RefreshArgs]
	onRefreshLinked     event.Event[broadcast.RefreshArgs]
}

// NewPriceSource constructs an empty price source. initial may be nil; if so
// the first Push must start at index 0 or it fails MissingInitial.
func NewPriceSource(iv interval.Interval, baseTimestamp time.Time, chunkSize int, initial *pricing.StandardizedPrice, warn func(kind, msg string)) (*PriceSource, error) {
	if !iv.AllowedAsSource() {
		return nil, fmt.Errorf("source: interval %s is not allowed as a source interval: %w", iv, tserr.ErrInvalidArgument)
	}
	tl, err := timelapse.New[pricing.StandardizedPrice](iv, baseTimestamp, chunkSize, 1, 0, warn)
	if err != nil {
		return nil, err
	}
	return &PriceSource{Timelapse: *tl, initial: initial}, nil
}

// Interval and BaseTimestamp are wrappers: Timelapse exposes them as fields,
// but broadcast.Broadcaster requires methods of the same name.
func (s *PriceSource) Interval() interval.Interval { return s.Timelapse.Interval }
func (s *PriceSource) BaseTimestamp() time.Time    { return s.Timelapse.BaseTimestamp }
func (s *PriceSource) Kind() broadcast.Kind        { return broadcast.KindPrice }

// ProjectedAt satisfies broadcast.Broadcaster; component is ignored since a
// price source has only one column.
func (s *PriceSource) ProjectedAt(i int, _ broadcast.Component) float64 {
	row, err := s.Array.Get(i)
	if err != nil {
		return 0
	}
	return float64(row[0])
}

// SubscribeIndicator satisfies broadcast.Broadcaster.
func (s *PriceSource) SubscribeIndicator(cb func(broadcast.RefreshArgs)) broadcast.Unsubscribe {
	h := s.onRefreshIndicators.Register(cb)
	return func() { s.onRefreshIndicators.Unregister(h) }
}

// At returns the raw price at i.
func (s *PriceSource) At(i int) (pricing.StandardizedPrice, error) {
	row, err := s.Array.Get(i)
	if err != nil {
		return 0, err
	}
	return row[0], nil
}

// Push writes data starting at index (pass s.Len() for append semantics),
// back-fill interpolating any gap first. It fires on_refresh_linked_sources
// then on_refresh_indicators over [index, end), in that order.
func (s *PriceSource) Push(data []pricing.StandardizedPrice, index int) error {
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
	rows := make([]tsarray.Row[pricing.StandardizedPrice], len(data))
	for i, p := range data {
		rows[i] = tsarray.Row[pricing.StandardizedPrice]{p}
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
func (s *PriceSource) PushAt(ts time.Time, data []pricing.StandardizedPrice) error {
	idx, err := s.IndexFor(ts)
	if err != nil {
		return err
	}
	return s.Push(data, idx)
}

// interpolateGap fills the back-fill interpolation region between the last
// known left value and right, per the interpolation contract: left and
// right sit at virtual positions leftIndex and index; positions
// (leftIndex+1 .. index-1) are filled by integer linear interpolation,
// rounding toward zero.
func (s *PriceSource) interpolateGap(index int, right pricing.StandardizedPrice) error {
	left, leftIndex, err := s.leftBoundary()
	if err != nil {
		return err
	}
	distance := index - leftIndex
	if distance <= 1 {
		return nil
	}
	rows := make([]tsarray.Row[pricing.StandardizedPrice], distance-1)
	l, r := int64(left), int64(right)
	for i := 1; i < distance; i++ {
		v := l + (r-l)*int64(i)/int64(distance)
		rows[i-1] = tsarray.Row[pricing.StandardizedPrice]{pricing.StandardizedPrice(v)}
	}
	if err := s.Array.SetSlice(leftIndex+1, index, rows); err != nil {
		return err
	}
	logger.Warn("interpolation", "back-fill interpolation applied", "gap_rows", distance-1)
	return nil
}

// leftBoundary returns the last known value and its virtual index: either
// (initial, -1) if the array is still empty, or (row[len-1], len-1).
func (s *PriceSource) leftBoundary() (pricing.StandardizedPrice, int, error) {
	if s.Len() == 0 {
		if s.initial == nil {
			return 0, 0, fmt.Errorf("source: push before index 0 with no initial value set: %w", tserr.ErrMissingInitial)
		}
		return *s.initial, -1, nil
	}
	row, err := s.Array.Get(s.Len() - 1)
	if err != nil {
		return 0, 0, err
	}
	return row[0], s.Len() - 1, nil
}
