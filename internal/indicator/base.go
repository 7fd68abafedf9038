// Package indicator implements the Indicator side of the dependency graph:
// a Timelapse of float64 driven by one or more broadcast.Broadcaster
// dependencies via the high-water-mark join described in SPEC_FULL.md's
// carry-forward of the original refresh algorithm.
package indicator

import (
	"fmt"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/event"
	"candlegraph/internal/interval"
	"candlegraph/internal/timelapse"
	"candlegraph/internal/tserr"
	"candlegraph/internal/tsarray"
)

// Disposable is anything that can be torn down as part of a dispose cascade.
type Disposable interface {
	Dispose()
}

// node is the capability an indicator needs from a producer to register
// itself as a dependent for cascading dispose — only other indicators
// implement it; Source never does, since sources are never disposed.
type node interface {
	addDependent(d Disposable)
	removeDependent(d Disposable)
}

// Base is the embeddable core shared by every concrete indicator. A
// concrete type embeds Base, sets its own fields, then calls init with a
// bound method value as the per-range recompute callback.
type Base struct {
	timelapse.Timelapse[float64]
	disposed bool

	broadcasters []broadcast.Broadcaster
	unsubs       []broadcast.Unsubscribe

	maxRequestedStart []int
	maxRequestedEnd   []int

	updateFn func(start, end int)

	onRefreshIndicators event.Event[broadcast.RefreshArgs]
	dependents          []Disposable
}

// init validates the broadcaster set, builds the backing array, subscribes
// to every broadcaster, and seeds the indicator by replaying each
// broadcaster's full current range in turn.
func (b *Base) init(broadcasters []broadcast.Broadcaster, width, chunkSize int, warn func(kind, msg string), updateFn func(start, end int)) error {
	if len(broadcasters) == 0 {
		return fmt.Errorf("indicator: at least one broadcaster is required: %w", tserr.ErrInvalidArgument)
	}
	iv := broadcasters[0].Interval()
	latest := broadcasters[0].BaseTimestamp()
	for _, bc := range broadcasters[1:] {
		if bc.Interval() != iv {
			return fmt.Errorf("indicator: all broadcasters must share one interval: %w", tserr.ErrAlignment)
		}
		if bc.BaseTimestamp().After(latest) {
			latest = bc.BaseTimestamp()
		}
	}
	tl, err := timelapse.New[float64](iv, latest, chunkSize, width, nan(), warn)
	if err != nil {
		return err
	}

	b.Timelapse = *tl
	b.broadcasters = broadcasters
	b.maxRequestedStart = make([]int, len(broadcasters))
	b.maxRequestedEnd = make([]int, len(broadcasters))
	for i := range b.maxRequestedStart {
		b.maxRequestedStart[i] = -1
		b.maxRequestedEnd[i] = -1
	}
	b.updateFn = updateFn
	b.unsubs = make([]broadcast.Unsubscribe, len(broadcasters))

	for k, bc := range broadcasters {
		idx := k
		b.unsubs[idx] = bc.SubscribeIndicator(func(args broadcast.RefreshArgs) {
			b.onDependencyUpdate(idx, args.Start, args.End)
		})
		if producer, ok := bc.(node); ok {
			producer.addDependent(b)
		}
	}
	for k, bc := range broadcasters {
		b.onDependencyUpdate(k, 0, bc.Len())
	}
	return nil
}

// onDependencyUpdate implements the high-water-mark join: the per-dependency
// running maxima of requested start/end, then the cross-dependency minimum,
// then clamped to the current event's end. See SPEC_FULL.md / spec.md §4.4.
func (b *Base) onDependencyUpdate(dep, start, end int) {
	if b.disposed {
		return
	}
	if end > b.maxRequestedEnd[dep] {
		b.maxRequestedEnd[dep] = end
	}
	minEndAcrossDeps := b.maxRequestedEnd[0]
	for _, v := range b.maxRequestedEnd[1:] {
		if v < minEndAcrossDeps {
			minEndAcrossDeps = v
		}
	}
	currentEnd := end
	if minEndAcrossDeps < currentEnd {
		currentEnd = minEndAcrossDeps
	}

	if start > b.maxRequestedStart[dep] {
		b.maxRequestedStart[dep] = start
	}
	minStartAcrossDeps := b.maxRequestedStart[0]
	for _, v := range b.maxRequestedStart[1:] {
		if v < minStartAcrossDeps {
			minStartAcrossDeps = v
		}
	}
	currentStart := start
	if minStartAcrossDeps < currentStart {
		currentStart = minStartAcrossDeps
	}

	if currentStart < 0 || currentEnd <= currentStart {
		return
	}
	if b.updateFn != nil {
		b.updateFn(currentStart, currentEnd)
	}
	b.onRefreshIndicators.Trigger(broadcast.RefreshArgs{Start: currentStart, End: currentEnd})
}

// Interval and BaseTimestamp are wrappers: Timelapse exposes them as fields,
// but broadcast.Broadcaster requires methods of the same name.
func (b *Base) Interval() interval.Interval { return b.Timelapse.Interval }
func (b *Base) BaseTimestamp() time.Time    { return b.Timelapse.BaseTimestamp }
func (b *Base) Len() int {
	if b.Array == nil {
		return 0
	}
	return b.Array.Len()
}
func (b *Base) Kind() broadcast.Kind { return broadcast.KindIndicator }
func (b *Base) Disposed() bool       { return b.disposed }

// ProjectedAt satisfies broadcast.Broadcaster for width-1 indicators.
// component is ignored: an indicator has no OHLC semantics of its own.
func (b *Base) ProjectedAt(i int, _ broadcast.Component) float64 {
	v, err := b.at(i, 0)
	if err != nil {
		return nan()
	}
	return v
}

// ColumnAt reads column of row i, returning NaN for any out-of-range or
// disposed access rather than an error — concrete indicators use this for
// internal lookback windows where "not yet computed" is the expected case.
func (b *Base) ColumnAt(i, column int) float64 {
	v, err := b.at(i, column)
	if err != nil {
		return nan()
	}
	return v
}

func (b *Base) at(i, column int) (float64, error) {
	if b.disposed {
		return 0, fmt.Errorf("indicator: read after dispose: %w", tserr.ErrDisposed)
	}
	row, err := b.Array.Get(i)
	if err != nil {
		return 0, err
	}
	return row[column], nil
}

func (b *Base) SubscribeIndicator(cb func(broadcast.RefreshArgs)) broadcast.Unsubscribe {
	h := b.onRefreshIndicators.Register(cb)
	return func() { b.onRefreshIndicators.Unregister(h) }
}

func (b *Base) addDependent(d Disposable)    { b.dependents = append(b.dependents, d) }
func (b *Base) removeDependent(d Disposable) {
	for i, dep := range b.dependents {
		if dep == d {
			b.dependents = append(b.dependents[:i], b.dependents[i+1:]...)
			return
		}
	}
}

// set writes row i's column to v, extending the array as needed.
func (b *Base) set(i, column int, v float64) {
	row := make(tsarray.Row[float64], b.Array.Width())
	if existing, err := b.Array.Get(i); err == nil {
		copy(row, existing)
	} else {
		for c := range row {
			row[c] = nan()
		}
	}
	row[column] = v
	_ = b.Array.Set(i, row)
}

// Dispose is idempotent: marks disposed, unsubscribes from every producer,
// releases the buffer, then recursively disposes every dependent indicator.
func (b *Base) Dispose() {
	b.dispose()
}

// dispose is the shared teardown: unsubscribe from producers *before*
// nulling any references (the order the original implementation got
// backwards), then recursively dispose every dependent.
func (b *Base) dispose() {
	if b.disposed {
		return
	}
	b.disposed = true

	for k, unsub := range b.unsubs {
		if unsub != nil {
			unsub()
		}
		if producer, ok := b.broadcasters[k].(node); ok {
			producer.removeDependent(b)
		}
	}
	b.unsubs = nil
	b.broadcasters = nil
	b.Array = nil

	dependents := b.dependents
	b.dependents = nil
	for _, d := range dependents {
		d.Dispose()
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
