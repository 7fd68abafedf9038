// Package timelapse pairs a chunked tsarray.GrowingArray with a calendar
// anchor: an interval and a base timestamp. Index 0 corresponds to
// base_timestamp; index i corresponds to base_timestamp + i*interval.
package timelapse

import (
	"fmt"
	"time"

	"candlegraph/internal/interval"
	"candlegraph/internal/tserr"
	"candlegraph/internal/tsarray"
)

// Timelapse is the common (array, interval, base_timestamp, zero_value)
// quadruple shared by sources, digests, and indicators.
type Timelapse[T any] struct {
	Array         *tsarray.GrowingArray[T]
	Interval      interval.Interval
	BaseTimestamp time.Time
}

// New builds a Timelapse backed by a fresh GrowingArray of the given chunk
// size and width, zero-valued with zero.
func New[T any](iv interval.Interval, baseTimestamp time.Time, chunkSize, width int, zero T, warn func(kind, msg string)) (*Timelapse[T], error) {
	arr, err := tsarray.New[T](chunkSize, width, zero, warn)
	if err != nil {
		return nil, err
	}
	return &Timelapse[T]{
		Array:         arr,
		Interval:      iv,
		BaseTimestamp: baseTimestamp,
	}, nil
}

// Len returns the current logical length.
func (t *Timelapse[T]) Len() int { return t.Array.Len() }

// IndexFor converts a wall-clock timestamp to an array index. The timestamp
// must land exactly on an interval boundary relative to base_timestamp;
// otherwise ErrAlignment is returned.
func (t *Timelapse[T]) IndexFor(ts time.Time) (int, error) {
	secs := t.Interval.Seconds()
	delta := ts.Unix() - t.BaseTimestamp.Unix()
	if delta < 0 || delta%secs != 0 {
		return 0, fmt.Errorf("timelapse: timestamp %s not aligned to interval %s from base %s: %w",
			ts, t.Interval, t.BaseTimestamp, tserr.ErrAlignment)
	}
	return int(delta / secs), nil
}

// TimestampAt is the inverse of IndexFor: the wall-clock time of index i.
func (t *Timelapse[T]) TimestampAt(i int) time.Time {
	return t.BaseTimestamp.Add(time.Duration(int64(i)*t.Interval.Seconds()) * time.Second)
}
