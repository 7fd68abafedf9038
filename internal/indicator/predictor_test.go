package indicator

import (
	"testing"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/interval"
	"candlegraph/internal/pricing"
	"candlegraph/internal/source"
)

// lastValueAlgorithm is a minimal Algorithm double: it predicts the
// most recent value in its window with zero structural error.
type lastValueAlgorithm struct {
	tailSize int
	step     int
}

func (a lastValueAlgorithm) TailSize() int { return a.tailSize }
func (a lastValueAlgorithm) Step() int     { return a.step }
func (a lastValueAlgorithm) Predict(window []float64) (float64, float64) {
	return window[len(window)-1], 0
}

func mustPushedPriceSource(t *testing.T, prices ...pricing.StandardizedPrice) *source.PriceSource {
	t.Helper()
	s, err := source.NewPriceSource(interval.Minute, time.Unix(0, 0).UTC(), 4, nil, nil)
	if err != nil {
		t.Fatalf("NewPriceSource: %v", err)
	}
	if err := s.Push(prices, 0); err != nil {
		t.Fatalf("Push: %v", err)
	}
	return s
}

func TestNewPredictorRequiresSideOverSource(t *testing.T) {
	s := mustPushedPriceSource(t, 10, 20, 30, 40)
	algo := lastValueAlgorithm{tailSize: 2, step: 1}

	if _, err := NewPredictor(s, algo, broadcast.ComponentEnd, SideUnspecified, 2, 4, nil); err == nil {
		t.Fatal("expected error when side is unset over a Source input")
	}
	if _, err := NewPredictor(s, algo, broadcast.ComponentEnd, SideBid, 2, 4, nil); err != nil {
		t.Fatalf("NewPredictor with side set: %v", err)
	}
}

func TestNewPredictorOverIndicatorDoesNotRequireSide(t *testing.T) {
	s := mustPushedPriceSource(t, 10, 20, 30, 40, 50)
	m, err := NewMovingMean(s, 2, broadcast.ComponentEnd, true, 4, nil)
	if err != nil {
		t.Fatalf("NewMovingMean: %v", err)
	}
	algo := lastValueAlgorithm{tailSize: 2, step: 1}
	if _, err := NewPredictor(m, algo, broadcast.ComponentEnd, SideUnspecified, 2, 4, nil); err != nil {
		t.Fatalf("NewPredictor over Indicator without side: %v", err)
	}
}

func TestPredictorComputesPredictionAndDifference(t *testing.T) {
	s := mustPushedPriceSource(t, 10, 20, 30, 40)
	algo := lastValueAlgorithm{tailSize: 2, step: 1}
	p, err := NewPredictor(s, algo, broadcast.ComponentEnd, SideBid, 2, 4, nil)
	if err != nil {
		t.Fatalf("NewPredictor: %v", err)
	}
	if got := p.ColumnAt(2, ColPrediction); got != 30 {
		t.Fatalf("prediction at i=2 = %v, want 30", got)
	}
	if got := p.ColumnAt(2, ColPredictionDifference); got != 0 {
		t.Fatalf("prediction difference at i=2 = %v, want 0", got)
	}
}
