package indicator

import (
	"fmt"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/tserr"
)

// MovingMean is a trailing arithmetic mean of tail_size samples over a
// single projected scalar column of its parent.
type MovingMean struct {
	Base

	parent         broadcast.Broadcaster
	tailSize       int
	component      broadcast.Component
	nanOnShortTail bool
}

// NewMovingMean constructs a MovingMean over parent, projecting component
// when parent is candle-typed. tailSize must be >= 2.
func NewMovingMean(parent broadcast.Broadcaster, tailSize int, component broadcast.Component, nanOnShortTail bool, chunkSize int, warn func(kind, msg string)) (*MovingMean, error) {
	if tailSize < 2 {
		return nil, fmt.Errorf("indicator: moving_mean tail_size must be >= 2, got %d: %w", tailSize, tserr.ErrInvalidArgument)
	}
	m := &MovingMean{parent: parent, tailSize: tailSize, component: component, nanOnShortTail: nanOnShortTail}
	if err := m.Base.init([]broadcast.Broadcaster{parent}, 1, chunkSize, warn, m.update); err != nil {
		return nil, err
	}
	return m, nil
}

// update recomputes [start, end). For i with a short tail, stores NaN when
// nan_on_short_tail is set; otherwise still divides by tail_size (not the
// clipped count), which biases the result for the earliest indices — this
// mirrors the original implementation literally and is preserved on
// purpose, see SPEC_FULL.md §9.
func (m *MovingMean) update(start, end int) {
	for i := start; i < end; i++ {
		tStart := i - m.tailSize + 1
		if tStart < 0 {
			if m.nanOnShortTail {
				m.set(i, 0, nan())
				continue
			}
			tStart = 0
		}
		var sum float64
		for j := tStart; j <= i; j++ {
			sum += m.parent.ProjectedAt(j, m.component)
		}
		m.set(i, 0, sum/float64(m.tailSize))
	}
}

// At returns the computed mean at i.
func (m *MovingMean) At(i int) float64 { return m.ColumnAt(i, 0) }
