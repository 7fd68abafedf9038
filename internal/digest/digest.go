// Package digest implements the coarse-bin rebinning algorithm shared by a
// standalone Digest and a Source's embedded LinkedSource behavior: folding
// relative_bin_size consecutive finer candles into one coarser candle via
// Candle.MergeCandle, replaying idempotently from last_read_ubound.
package digest

import (
	"fmt"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/event"
	"candlegraph/internal/interval"
	"candlegraph/internal/pricing"
	"candlegraph/internal/timelapse"
	"candlegraph/internal/tserr"
	"candlegraph/internal/tsarray"
)

// Rebin performs one incremental rebinning pass for a finer-source update
// [sStart, sEnd). It reprocesses any span already seen up to sStart (making
// the whole operation idempotent under replay), folds relativeBinSize finer
// rows into each coarse bin, and calls store once per bin index i the update
// touches, including a trailing bin that is not complete yet (folded from
// the finer rows present so far), in the *finer-aligned* bin space — callers
// translate by their own
// base_index before storing or firing downstream events.
func Rebin(finer broadcast.LinkedBroadcaster, relativeBinSize, lastReadUbound, sStart, sEnd int, store func(i int, c pricing.Candle)) (minIndex, maxIndex, newLastReadUbound int) {
	s := sStart
	if lastReadUbound < s {
		s = lastReadUbound
	}
	minIndex = s / relativeBinSize
	maxIndex = ceilDiv(sEnd, relativeBinSize)
	for i := minIndex; i < maxIndex; i++ {
		base := i * relativeBinSize
		var folded pricing.Candle
		for j := base; j < base+relativeBinSize && j < finer.Len(); j++ {
			row := finer.CandleAt(j)
			if j == base {
				folded = row
			} else {
				folded = folded.MergeCandle(row)
			}
		}
		store(i, folded)
	}
	newLastReadUbound = lastReadUbound
	if sEnd > newLastReadUbound {
		newLastReadUbound = sEnd
	}
	return minIndex, maxIndex, newLastReadUbound
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Digest is a read-only coarser view over a finer Candle-typed source. It
// never fires on_refresh_indicators itself — only a Source's embedded
// LinkedSource behavior does that — but it does emit on_refresh_linked
// so further digests can chain off it.
type Digest struct {
	timelapse.Timelapse[pricing.Candle]
	finer           broadcast.LinkedBroadcaster
	relativeBinSize int
	lastReadUbound  int
	unsub           broadcast.Unsubscribe
	onRefreshLinked event.Event[broadcast.RefreshArgs]
}

// New builds a Digest over finer, validating that iv is a strict multiple of
// finer's interval. The digest's base timestamp is finer's base rounded down
// to iv; finer's base is not checked for alignment on iv, and bins are
// counted from finer's base.
func New(iv interval.Interval, finer broadcast.LinkedBroadcaster, chunkSize int, warn func(kind, msg string)) (*Digest, error) {
	if !iv.AllowedAsDigest(finer.Interval()) {
		return nil, fmt.Errorf("digest: interval %s is not a valid digest of %s: %w", iv, finer.Interval(), tserr.ErrAlignment)
	}
	tl, err := timelapse.New[pricing.Candle](iv, iv.Round(finer.BaseTimestamp()), chunkSize, 1, pricing.Candle{}, warn)
	if err != nil {
		return nil, err
	}
	d := &Digest{
		Timelapse:       *tl,
		finer:           finer,
		relativeBinSize: int(iv.Seconds() / finer.Interval().Seconds()),
	}
	d.unsub = finer.SubscribeLinked(d.onFinerUpdate)
	return d, nil
}

func (d *Digest) onFinerUpdate(args broadcast.RefreshArgs) {
	minIdx, maxIdx, newUbound := Rebin(d.finer, d.relativeBinSize, d.lastReadUbound, args.Start, args.End, func(i int, c pricing.Candle) {
		_ = d.Array.Set(i, tsarray.Row[pricing.Candle]{c})
	})
	d.lastReadUbound = newUbound
	if maxIdx > minIdx {
		d.onRefreshLinked.Trigger(broadcast.RefreshArgs{Start: minIdx, End: maxIdx})
	}
}

// SubscribeLinked lets a further, coarser digest chain off this one.
func (d *Digest) SubscribeLinked(cb func(broadcast.RefreshArgs)) broadcast.Unsubscribe {
	h := d.onRefreshLinked.Register(cb)
	return func() { d.onRefreshLinked.Unregister(h) }
}

// Detach unsubscribes from the finer source; the array remains readable but
// stops updating. Idempotent.
func (d *Digest) Detach() {
	if d.unsub != nil {
		d.unsub()
		d.unsub = nil
	}
	d.lastReadUbound = 0
	d.relativeBinSize = 0
}

// Interval and BaseTimestamp are wrappers: Timelapse exposes them as fields,
// but broadcast.LinkedBroadcaster requires methods of the same name.
func (d *Digest) Interval() interval.Interval { return d.Timelapse.Interval }
func (d *Digest) BaseTimestamp() time.Time    { return d.Timelapse.BaseTimestamp }

func (d *Digest) CandleAt(i int) pricing.Candle {
	row, err := d.Array.Get(i)
	if err != nil {
		return pricing.Candle{}
	}
	return row[0]
}
