// Command engine runs a small in-process demo of the candlegraph node graph:
// a synthetic tick generator produces prices, each folded into a one-tick
// candle and pushed into a candle Source, which is linked up into one-minute
// candles and digested further into five-minute candles (the default
// DIGEST_INTERVALS); the one-minute candles are summarized by a
// MovingMean/MovingVariance chain. Metrics are exported on METRICS_ADDR for
// scraping.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candlegraph/config"
	"candlegraph/internal/broadcast"
	"candlegraph/internal/digest"
	"candlegraph/internal/indicator"
	"candlegraph/internal/logger"
	"candlegraph/internal/metrics"
	"candlegraph/internal/pricing"
	"candlegraph/internal/source"
	"candlegraph/internal/topology"
)

func main() {
	log := logger.Init("candlegraph-engine", slog.LevelInfo)
	cfg := config.Load()

	prom := metrics.NewMetrics()
	prom.Register()

	health := &metrics.HealthStatus{StartedAt: time.Now()}
	srv := metrics.NewServer(cfg.MetricsAddr, health)
	srv.Start()

	warn := func(kind, msg string) {
		logger.Warn(kind, msg)
		prom.WarningsTotal.WithLabelValues(kind).Inc()
	}

	topo := topology.New()
	registry := indicator.NewRegistry(cfg.ChunkSize, warn, topo, prom)

	base := cfg.SourceInterval.Round(time.Now())

	engines := make([]*instrumentEngine, 0, len(cfg.InstrumentKeys))
	for _, key := range cfg.InstrumentKeys {
		eng, err := newInstrumentEngine(key, base, cfg, registry, topo, prom, warn)
		if err != nil {
			log.Error("failed to build instrument graph", "instrument", key, "error", err)
			os.Exit(1)
		}
		engines = append(engines, eng)
		health.InstrumentKeys = append(health.InstrumentKeys, key)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticks := make(chan tick, 256)
	go generateTicks(ctx, cfg, engines, ticks)

	log.Info("engine running", "instruments", cfg.InstrumentKeys, "metrics_addr", cfg.MetricsAddr)

runLoop:
	for {
		select {
		case <-sigCh:
			log.Info("shutdown signal received")
			break runLoop
		case t, ok := <-ticks:
			if !ok {
				break runLoop
			}
			eng := engines[t.engineIndex]
			if err := eng.onTick(t.price); err != nil {
				log.Error("tick processing failed", "instrument", eng.key, "error", err)
				continue
			}
			health.LastPushAt = time.Now()
			prom.PushesTotal.WithLabelValues("candle").Inc()
			if mean, stderr, ok := eng.latestStats(); ok {
				log.Debug("indicator update", "instrument", eng.key, "mean", mean, "stderr", stderr)
			}
		}
	}

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	srv.Stop(shutCtx)
	log.Info("engine stopped")
}

// tick is one synthetic price sample destined for a specific instrument.
type tick struct {
	engineIndex int
	price       pricing.StandardizedPrice
}

// generateTicks produces a random-walk price per instrument on cfg.TickInterval,
// feeding them all into one channel so the receiving goroutine (main) is the
// only one that ever touches the node graph.
func generateTicks(ctx context.Context, cfg *config.Config, engines []*instrumentEngine, out chan<- tick) {
	defer close(out)
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(1))
	prices := make([]int64, len(engines))
	for i := range prices {
		prices[i] = 10000
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := range engines {
				step := rng.Int63n(21) - 10
				prices[i] += step
				if prices[i] < 1 {
					prices[i] = 1
				}
				select {
				case out <- tick{engineIndex: i, price: pricing.StandardizedPrice(prices[i])}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// instrumentEngine owns one instrument's full node graph: tick candles,
// linked minute candles, a five-minute digest, and the indicator chain.
type instrumentEngine struct {
	key string

	ticks   *source.CandleSource
	linked  *source.CandleSource
	digests []*digest.Digest

	mean *indicator.MovingMean
	vari *indicator.MovingVariance

	prom      *metrics.Metrics
	nextIndex int
}

// newInstrumentEngine wires one instrument's graph from cfg.SourceInterval
// (the tick-level CandleSource) through cfg.DigestIntervals: the first
// digest interval becomes a LinkedSource rebinning the ticks directly;
// every subsequent interval chains a plain Digest off the previous level.
// The MovingMean/MovingVariance chain is built over the first (finest)
// digest level.
func newInstrumentEngine(key string, base time.Time, cfg *config.Config, registry *indicator.Registry, topo *topology.Graph, prom *metrics.Metrics, warn func(kind, msg string)) (*instrumentEngine, error) {
	if len(cfg.DigestIntervals) == 0 {
		return nil, fmt.Errorf("cmd/engine: config.DigestIntervals must name at least one interval")
	}

	ticks, err := source.NewCandleSource(cfg.SourceInterval, base, cfg.ChunkSize, nil, warn)
	if err != nil {
		return nil, err
	}
	linked, err := source.NewCandleSource(cfg.DigestIntervals[0], base, cfg.ChunkSize, nil, warn)
	if err != nil {
		return nil, err
	}
	if err := linked.Link(ticks); err != nil {
		return nil, err
	}

	ticksNode := key + ":ticks"
	prevNode := key + ":" + cfg.DigestIntervals[0].String()
	_ = topo.AddNode(ticksNode)
	_ = topo.AddNode(prevNode)
	if err := topo.AddEdge(ticksNode, prevNode); err != nil {
		return nil, err
	}

	var finer broadcast.LinkedBroadcaster = linked
	digests := make([]*digest.Digest, 0, len(cfg.DigestIntervals)-1)
	for _, iv := range cfg.DigestIntervals[1:] {
		d, err := digest.New(iv, finer, cfg.ChunkSize, warn)
		if err != nil {
			return nil, err
		}
		nodeID := key + ":" + iv.String()
		_ = topo.AddNode(nodeID)
		if err := topo.AddEdge(prevNode, nodeID); err != nil {
			return nil, err
		}
		digests = append(digests, d)
		finer = d
		prevNode = nodeID
	}

	if err := registry.Build(key, linked, []indicator.Spec{
		{Key: "mean", Kind: indicator.SpecMovingMean, TailSize: cfg.MovingMeanTailSize, Component: broadcast.ComponentEnd, NaNOnShortTail: true},
		{Key: "variance", Kind: indicator.SpecMovingVariance, ParentKey: "mean", WantVar: true, WantStderr: true, Unbiased: true},
	}); err != nil {
		return nil, err
	}
	meanBC, _ := registry.Indicator(key, "mean")
	varBC, _ := registry.Indicator(key, "variance")

	return &instrumentEngine{
		key:     key,
		ticks:   ticks,
		linked:  linked,
		digests: digests,
		mean:    meanBC.(*indicator.MovingMean),
		vari:    varBC.(*indicator.MovingVariance),
		prom:    prom,
	}, nil
}

// onTick folds one more price tick into a one-tick candle and pushes it.
// Only this goroutine ever calls Push, keeping every node-graph mutation on
// a single goroutine per §5. Rebinning counts are derived from before/after
// array lengths rather than threaded through digest.Rebin itself, keeping
// that package metrics-agnostic.
func (e *instrumentEngine) onTick(p pricing.StandardizedPrice) error {
	linkedBefore := e.linked.Len()
	digestsBefore := make([]int, len(e.digests))
	for i, d := range e.digests {
		digestsBefore[i] = d.Len()
	}

	if err := e.ticks.Push([]pricing.Candle{pricing.NewCandle(p)}, e.nextIndex); err != nil {
		return err
	}
	e.nextIndex++

	if e.linked.Len() > linkedBefore {
		e.prom.RebinningsTotal.WithLabelValues("linked").Inc()
	}
	for i, d := range e.digests {
		if d.Len() > digestsBefore[i] {
			e.prom.RebinningsTotal.WithLabelValues("digest").Inc()
		}
	}
	return nil
}

// latestStats returns the most recently computed mean/stderr pair, if any.
func (e *instrumentEngine) latestStats() (mean, stderr float64, ok bool) {
	n := e.mean.Len()
	if n == 0 {
		return 0, 0, false
	}
	return e.mean.At(n - 1), e.vari.ColumnAt(n-1, 1), true
}
