package indicator

import (
	"fmt"
	"math"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/tserr"
)

// Algorithm is the pluggable prediction model a Predictor wraps: given a
// tail_size window of past values it predicts step bars ahead, returning the
// prediction and a structural error estimate for that prediction.
type Algorithm interface {
	TailSize() int
	Step() int
	Predict(window []float64) (prediction, structuralError float64)
}

// Predictor column indices, in the fixed width-5 layout.
const (
	ColPrediction = iota
	ColStructuralErrorAtPredictionTime
	ColStructuralErrorAtPredictedTime
	ColPredictionDifference
	ColStandardError
)

// Side selects which quote side a Source-backed Predictor reads. Required
// whenever the input is a Source rather than an Indicator; only one side is
// currently modeled, but the selector exists so a second can be added
// without an API break.
type Side int

const (
	SideUnspecified Side = iota
	SideBid
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return "unspecified"
	}
}

// Predictor wraps an Algorithm over a width-1 broadcaster (a Source
// projected to one column, or another width-1 Indicator).
//
// The broadcaster is the original timelapse itself, not a side-projection
// wrapper: the projection (component / Source selection) is applied only
// when reading input values, never substituted as the dependency the base
// indicator subscribes to. See SPEC_FULL.md §9.
type Predictor struct {
	Base

	input                broadcast.Broadcaster
	component            broadcast.Component
	side                 Side
	algorithm            Algorithm
	movingStderrTailSize int
}

// NewPredictor builds a Predictor over input (a Source or width-1 Indicator,
// projected via component when candle-typed). side is required whenever
// input is Source-backed (Kind() != KindIndicator); it is ignored for
// Indicator-backed inputs.
func NewPredictor(input broadcast.Broadcaster, algorithm Algorithm, component broadcast.Component, side Side, movingStderrTailSize, chunkSize int, warn func(kind, msg string)) (*Predictor, error) {
	if movingStderrTailSize < 2 {
		return nil, fmt.Errorf("indicator: predictor moving_stderr_tail_size must be >= 2, got %d: %w", movingStderrTailSize, tserr.ErrInvalidArgument)
	}
	if input.Kind() != broadcast.KindIndicator && side == SideUnspecified {
		return nil, fmt.Errorf("indicator: predictor over a source requires an explicit side: %w", tserr.ErrInvalidArgument)
	}
	p := &Predictor{
		input:                input,
		component:            component,
		side:                 side,
		algorithm:            algorithm,
		movingStderrTailSize: movingStderrTailSize,
	}
	if err := p.Base.init([]broadcast.Broadcaster{input}, 5, chunkSize, warn, p.update); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Predictor) update(start, end int) {
	tailSize := p.algorithm.TailSize()
	step := p.algorithm.Step()

	for i := start; i < end; i++ {
		if i < tailSize {
			continue
		}
		window := make([]float64, tailSize)
		for j := 0; j < tailSize; j++ {
			window[j] = p.input.ProjectedAt(i+1-tailSize+j, p.component)
		}
		prediction, structuralErr := p.algorithm.Predict(window)

		p.set(i, ColPrediction, prediction)
		p.set(i, ColStructuralErrorAtPredictionTime, structuralErr)
		p.set(i+step, ColStructuralErrorAtPredictedTime, structuralErr)

		diff := prediction - p.input.ProjectedAt(i, p.component)
		p.set(i, ColPredictionDifference, diff)

		if i >= p.movingStderrTailSize {
			var sumSq float64
			for j := i - p.movingStderrTailSize + 1; j <= i; j++ {
				d := p.ColumnAt(j, ColPredictionDifference)
				sumSq += d * d
			}
			se := math.Sqrt(sumSq / float64(p.movingStderrTailSize-1))
			p.set(i, ColStandardError, se)
		}
	}
}
