// Package tsarray implements the chunked, index-addressable, dynamically
// extended 2-D buffer that backs every timelapse in this module.
//
// A GrowingArray never shrinks: length is monotonically nondecreasing, and
// chunks are allocated on demand as writes extend past current capacity but
// are never freed. Reading past length fails; writing past length extends
// it and zero-fills any newly allocated chunks.
package tsarray

import (
	"fmt"

	"candlegraph/internal/tserr"
)

// Row is one element of the array: a fixed-width slice of a single dtype.
// Concrete dtypes (StandardizedPrice, pricing.Candle, float64) satisfy this
// via a width-1 (or width-N) []T, copied in and out on every access.
type Row[T any] []T

// GrowingArray is a chunked (length x width) buffer of element type T.
type GrowingArray[T any] struct {
	chunks    [][]Row[T]
	chunkSize int
	width     int
	length    int
	zero      T
}

// New creates a GrowingArray with the given chunk size and row width. The
// chunk size must be at least 4 (a smaller value still works but emits a
// SmallChunkSize warning via warn, grounded in §7); width must be at least 1.
func New[T any](chunkSize, width int, zero T, warn func(kind, msg string)) (*GrowingArray[T], error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("tsarray: chunk_size must be positive: %w", tserr.ErrInvalidArgument)
	}
	if width < 1 {
		return nil, fmt.Errorf("tsarray: width must be >= 1: %w", tserr.ErrInvalidArgument)
	}
	if chunkSize < 4 && warn != nil {
		warn("small_chunk_size", fmt.Sprintf("chunk_size=%d is smaller than the recommended minimum of 4", chunkSize))
	}
	return &GrowingArray[T]{
		chunkSize: chunkSize,
		width:     width,
		zero:      zero,
	}, nil
}

// Len returns the current logical length.
func (a *GrowingArray[T]) Len() int { return a.length }

// Width returns the fixed row width.
func (a *GrowingArray[T]) Width() int { return a.width }

// Get returns a copy of row i. Fails with ErrOutOfRange if i >= Len().
func (a *GrowingArray[T]) Get(i int) (Row[T], error) {
	if i < 0 || i >= a.length {
		return nil, fmt.Errorf("tsarray: get(%d) with length %d: %w", i, a.length, tserr.ErrOutOfRange)
	}
	chunkIdx, pos := i/a.chunkSize, i%a.chunkSize
	row := make(Row[T], a.width)
	copy(row, a.chunks[chunkIdx][pos])
	return row, nil
}

// GetSlice returns a newly allocated (stop-start) x width matrix copied out
// of the backing chunks.
func (a *GrowingArray[T]) GetSlice(start, stop int) ([]Row[T], error) {
	if start < 0 || stop < 0 || start > stop {
		return nil, fmt.Errorf("tsarray: get_slice(%d,%d): %w", start, stop, tserr.ErrInvalidSlice)
	}
	if stop > a.length {
		return nil, fmt.Errorf("tsarray: get_slice(%d,%d) with length %d: %w", start, stop, a.length, tserr.ErrOutOfRange)
	}
	out := make([]Row[T], stop-start)
	a.forEachChunkRange(start, stop, func(globalIdx int, row []Row[T], pos int) {
		dst := make(Row[T], a.width)
		copy(dst, row[pos])
		out[globalIdx-start] = dst
	})
	return out, nil
}

// Set writes row i, extending length and allocating chunks as needed.
func (a *GrowingArray[T]) Set(i int, row Row[T]) error {
	if i < 0 {
		return fmt.Errorf("tsarray: set(%d): %w", i, tserr.ErrInvalidSlice)
	}
	if len(row) != a.width {
		return fmt.Errorf("tsarray: set(%d) row width %d != %d: %w", i, len(row), a.width, tserr.ErrInvalidInput)
	}
	a.allocate(i + 1)
	chunkIdx, pos := i/a.chunkSize, i%a.chunkSize
	dst := make(Row[T], a.width)
	copy(dst, row)
	a.chunks[chunkIdx][pos] = dst
	return nil
}

// SetSlice writes rows [start, stop), extending length and allocating chunks
// as needed. Fails ErrInvalidInput if matrix shape != (stop-start, width).
func (a *GrowingArray[T]) SetSlice(start, stop int, matrix []Row[T]) error {
	if start < 0 || stop < start {
		return fmt.Errorf("tsarray: set_slice(%d,%d): %w", start, stop, tserr.ErrInvalidSlice)
	}
	if len(matrix) != stop-start {
		return fmt.Errorf("tsarray: set_slice(%d,%d) matrix rows %d: %w", start, stop, len(matrix), tserr.ErrInvalidInput)
	}
	for _, row := range matrix {
		if len(row) != a.width {
			return fmt.Errorf("tsarray: set_slice(%d,%d) row width %d != %d: %w", start, stop, len(row), a.width, tserr.ErrInvalidInput)
		}
	}
	a.allocate(stop)
	a.forEachChunkRange(start, stop, func(globalIdx int, row []Row[T], pos int) {
		dst := make(Row[T], a.width)
		copy(dst, matrix[globalIdx-start])
		row[pos] = dst
	})
	return nil
}

// allocate grows the chunk list so it can hold at least `stop` rows, and
// advances length to max(length, stop). Never deallocates.
func (a *GrowingArray[T]) allocate(stop int) {
	chunksCount := len(a.chunks)
	totalAllocated := chunksCount * a.chunkSize
	if stop > totalAllocated {
		newBins := (stop+a.chunkSize-1)/a.chunkSize - chunksCount
		for n := 0; n < newBins; n++ {
			chunk := make([]Row[T], a.chunkSize)
			for i := range chunk {
				row := make(Row[T], a.width)
				for w := range row {
					row[w] = a.zero
				}
				chunk[i] = row
			}
			a.chunks = append(a.chunks, chunk)
		}
	}
	if stop > a.length {
		a.length = stop
	}
}

// forEachChunkRange walks [start, stop) chunk by chunk, per the chunking
// algorithm in SPEC_FULL.md §4.1: locate first/last chunk, then the
// (chunk_start, chunk_stop) window within each, invoking fn once per row
// with its global index.
func (a *GrowingArray[T]) forEachChunkRange(start, stop int, fn func(globalIdx int, chunk []Row[T], pos int)) {
	if start >= stop {
		return
	}
	firstChunk := start / a.chunkSize
	lastChunk := (stop - 1) / a.chunkSize
	idx := start
	for c := firstChunk; c <= lastChunk; c++ {
		chunkStart := 0
		if c == firstChunk {
			chunkStart = start % a.chunkSize
		}
		chunkStop := a.chunkSize
		if c == lastChunk {
			chunkStop = (stop-1)%a.chunkSize + 1
		}
		chunk := a.chunks[c]
		for pos := chunkStart; pos < chunkStop; pos++ {
			fn(idx, chunk, pos)
			idx++
		}
	}
}
