package indicator

import (
	"fmt"
	"reflect"
	"time"

	"candlegraph/internal/broadcast"
	"candlegraph/internal/metrics"
	"candlegraph/internal/topology"
)

// SpecKind selects which concrete indicator a Spec builds.
type SpecKind int

const (
	SpecMovingMean SpecKind = iota
	SpecMovingVariance
	SpecPredictor
)

// Spec declaratively describes one indicator to build for an instrument.
// Key identifies it within the instrument for diffing across Reload calls;
// ParentKey, when set, names another Spec in the same batch to depend on
// instead of the instrument's raw source (e.g. a MovingVariance's mean).
// Specs must be ordered so a ParentKey always names an earlier Spec.
type Spec struct {
	Key       string
	Kind      SpecKind
	ParentKey string

	// MovingMean
	TailSize       int
	Component      broadcast.Component
	NaNOnShortTail bool

	// MovingVariance
	WantVar    bool
	WantStderr bool
	Unbiased   bool

	// Predictor
	Algorithm            Algorithm
	Side                 Side
	MovingStderrTailSize int
}

// instrument holds one instrument's live indicator set plus the specs that
// produced it, so Reload can diff by Key.
type instrument struct {
	source     broadcast.Broadcaster
	indicators map[string]broadcast.Broadcaster
	disposable map[string]Disposable
	specs      map[string]Spec
}

// Registry generalizes the teacher's per-timeframe indicator engine to this
// graph's node types: it builds and reloads a set of indicators per
// instrument key from declarative Specs, preserving instances (and their
// accumulated buffers) across reconfiguration wherever the spec for a key is
// unchanged. There is no persistence: catching an indicator up after a
// reload is just replaying the already-buffered source/digest history
// through on_refresh_indicators, same as ordinary operation.
type Registry struct {
	chunkSize   int
	warn        func(kind, msg string)
	topo        *topology.Graph
	metrics     *metrics.Metrics
	instruments map[string]*instrument
}

// NewRegistry builds an empty Registry. topo and m may be nil to skip
// topology bookkeeping and Prometheus instrumentation respectively.
func NewRegistry(chunkSize int, warn func(kind, msg string), topo *topology.Graph, m *metrics.Metrics) *Registry {
	return &Registry{
		chunkSize:   chunkSize,
		warn:        warn,
		topo:        topo,
		metrics:     m,
		instruments: make(map[string]*instrument),
	}
}

// Build constructs a fresh indicator set for instrumentKey over src. It is
// an error to Build a key that already exists; use Reload instead.
func (r *Registry) Build(instrumentKey string, src broadcast.Broadcaster, specs []Spec) error {
	if _, exists := r.instruments[instrumentKey]; exists {
		return fmt.Errorf("indicator: instrument %q already built, use Reload", instrumentKey)
	}
	inst := &instrument{
		source:     src,
		indicators: make(map[string]broadcast.Broadcaster),
		disposable: make(map[string]Disposable),
		specs:      make(map[string]Spec),
	}
	if r.topo != nil {
		_ = r.topo.AddNode(instrumentKey + ":source")
	}
	for _, spec := range specs {
		bc, disp, err := r.build(instrumentKey, inst, spec)
		if err != nil {
			return fmt.Errorf("indicator: instrument %q spec %q: %w", instrumentKey, spec.Key, err)
		}
		inst.indicators[spec.Key] = bc
		inst.disposable[spec.Key] = disp
		inst.specs[spec.Key] = spec
	}
	r.instruments[instrumentKey] = inst
	return nil
}

// Reload diffs newSpecs against the instrument's current specs: unchanged
// keys (same Key and deep-equal fields) keep their existing indicator
// instance untouched; removed keys are disposed; new or changed keys are
// (re)built.
func (r *Registry) Reload(instrumentKey string, newSpecs []Spec) error {
	inst, ok := r.instruments[instrumentKey]
	if !ok {
		return fmt.Errorf("indicator: instrument %q not built", instrumentKey)
	}

	keep := make(map[string]bool, len(newSpecs))
	for _, spec := range newSpecs {
		keep[spec.Key] = true
	}
	for key, disp := range inst.disposable {
		if !keep[key] {
			disp.Dispose()
			if r.metrics != nil {
				r.metrics.DisposalsTotal.Inc()
			}
			delete(inst.disposable, key)
			delete(inst.indicators, key)
			delete(inst.specs, key)
			if r.warn != nil {
				r.warn("indicator_removed", fmt.Sprintf("instrument=%s key=%s", instrumentKey, key))
			}
		}
	}

	for _, spec := range newSpecs {
		if old, existed := inst.specs[spec.Key]; existed && reflect.DeepEqual(old, spec) {
			// An unchanged spec whose instance was disposed by a parent's
			// cascade is rebuilt rather than kept.
			if d, ok := inst.disposable[spec.Key].(interface{ Disposed() bool }); !ok || !d.Disposed() {
				continue
			}
		}
		if disp, existed := inst.disposable[spec.Key]; existed {
			disp.Dispose()
			if r.metrics != nil {
				r.metrics.DisposalsTotal.Inc()
			}
		}
		bc, disp, err := r.build(instrumentKey, inst, spec)
		if err != nil {
			return fmt.Errorf("indicator: instrument %q reload spec %q: %w", instrumentKey, spec.Key, err)
		}
		inst.indicators[spec.Key] = bc
		inst.disposable[spec.Key] = disp
		inst.specs[spec.Key] = spec
	}
	return nil
}

func (r *Registry) build(instrumentKey string, inst *instrument, spec Spec) (broadcast.Broadcaster, Disposable, error) {
	parent := inst.source
	if spec.ParentKey != "" {
		p, ok := inst.indicators[spec.ParentKey]
		if !ok {
			return nil, nil, fmt.Errorf("parent key %q not found", spec.ParentKey)
		}
		parent = p
	}

	var bc broadcast.Broadcaster
	var disp Disposable
	start := time.Now()
	switch spec.Kind {
	case SpecMovingMean:
		m, err := NewMovingMean(parent, spec.TailSize, spec.Component, spec.NaNOnShortTail, r.chunkSize, r.warn)
		if err != nil {
			return nil, nil, err
		}
		bc, disp = m, m
	case SpecMovingVariance:
		mean, ok := parent.(*MovingMean)
		if !ok {
			return nil, nil, fmt.Errorf("moving_variance spec %q parent must be a MovingMean", spec.Key)
		}
		v, err := NewMovingVariance(mean, spec.WantVar, spec.WantStderr, spec.Unbiased, r.chunkSize, r.warn)
		if err != nil {
			return nil, nil, err
		}
		bc, disp = v, v
	case SpecPredictor:
		p, err := NewPredictor(parent, spec.Algorithm, spec.Component, spec.Side, spec.MovingStderrTailSize, r.chunkSize, r.warn)
		if err != nil {
			return nil, nil, err
		}
		bc, disp = p, p
	default:
		return nil, nil, fmt.Errorf("unknown spec kind %d", spec.Kind)
	}
	if r.metrics != nil {
		r.metrics.IndicatorUpdatesTotal.WithLabelValues(kindLabel(spec.Kind)).Inc()
		r.metrics.IndicatorUpdateDuration.Observe(time.Since(start).Seconds())
	}

	if r.topo != nil {
		nodeID := instrumentKey + ":" + spec.Key
		_ = r.topo.AddNode(nodeID)
		producerID := instrumentKey + ":source"
		if spec.ParentKey != "" {
			producerID = instrumentKey + ":" + spec.ParentKey
		}
		if err := r.topo.AddEdge(producerID, nodeID); err != nil {
			return nil, nil, err
		}
	}
	return bc, disp, nil
}

// Indicator looks up a previously built indicator by instrument and spec key.
func (r *Registry) Indicator(instrumentKey, specKey string) (broadcast.Broadcaster, bool) {
	inst, ok := r.instruments[instrumentKey]
	if !ok {
		return nil, false
	}
	bc, ok := inst.indicators[specKey]
	return bc, ok
}

func kindLabel(k SpecKind) string {
	switch k {
	case SpecMovingMean:
		return "moving_mean"
	case SpecMovingVariance:
		return "moving_variance"
	case SpecPredictor:
		return "predictor"
	default:
		return "unknown"
	}
}
