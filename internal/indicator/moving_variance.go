package indicator

import (
	"fmt"
	"math"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/tserr"
)

// MovingVariance computes the trailing variance and/or standard error of the
// same window a MovingMean already averages, reusing that MovingMean as its
// sole dependency rather than recomputing the window sum independently.
type MovingVariance struct {
	Base

	mean       *MovingMean
	wantVar    bool
	wantStderr bool
	unbiased   bool

	varColumn    int
	stderrColumn int
}

// NewMovingVariance builds a MovingVariance over an existing MovingMean.
// Width is 2 if both var and stderr are requested, else 1; at least one must
// be true.
func NewMovingVariance(mean *MovingMean, wantVar, wantStderr, unbiased bool, chunkSize int, warn func(kind, msg string)) (*MovingVariance, error) {
	if !wantVar && !wantStderr {
		return nil, fmt.Errorf("indicator: moving_variance needs var or stderr enabled: %w", tserr.ErrInvalidArgument)
	}
	width := 1
	varColumn, stderrColumn := -1, -1
	if wantVar && wantStderr {
		width = 2
		varColumn, stderrColumn = 0, 1
	} else if wantVar {
		varColumn = 0
	} else {
		stderrColumn = 0
	}
	v := &MovingVariance{
		mean:         mean,
		wantVar:      wantVar,
		wantStderr:   wantStderr,
		unbiased:     unbiased,
		varColumn:    varColumn,
		stderrColumn: stderrColumn,
	}
	if err := v.Base.init([]broadcast.Broadcaster{mean}, width, chunkSize, warn, v.update); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *MovingVariance) update(start, end int) {
	tailSize := v.mean.tailSize
	n := tailSize
	if v.unbiased {
		n--
	}
	for i := start; i < end; i++ {
		mu := v.mean.At(i)
		lo := i - tailSize + 1
		if lo < 0 {
			lo = 0
		}
		var sumSq float64
		for j := lo; j <= i; j++ {
			d := v.mean.parent.ProjectedAt(j, v.mean.component) - mu
			sumSq += d * d
		}
		variance := sumSq / float64(n)
		if v.varColumn >= 0 {
			v.set(i, v.varColumn, variance)
		}
		if v.stderrColumn >= 0 {
			v.set(i, v.stderrColumn, math.Sqrt(variance))
		}
	}
}
