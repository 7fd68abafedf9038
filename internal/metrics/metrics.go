// Package metrics holds the Prometheus instrumentation for the node graph:
// pushes, interpolations, rebinnings, indicator updates, warnings, and
// disposals, plus a small HTTP server exposing /metrics and /healthz.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector this module registers.
type Metrics struct {
	PushesTotal                 *prometheus.CounterVec
	InterpolationsTotal         prometheus.Counter
	RebinningsTotal             *prometheus.CounterVec
	IndicatorUpdatesTotal       *prometheus.CounterVec
	IndicatorUpdateDuration     prometheus.Histogram
	WarningsTotal               *prometheus.CounterVec
	DisposalsTotal              prometheus.Counter
	GrowingArrayChunksAllocated prometheus.Counter
}

// NewMetrics registers and returns all collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		PushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candlegraph_pushes_total",
			Help: "Total Source.Push calls, labelled by dtype (price|candle)",
		}, []string{"dtype"}),
		InterpolationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlegraph_interpolations_total",
			Help: "Total back-fill interpolations performed on push",
		}),
		RebinningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candlegraph_rebinnings_total",
			Help: "Total rebinning passes that opened a new coarse bin, labelled by node kind (digest|linked)",
		}, []string{"kind"}),
		IndicatorUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candlegraph_indicator_updates_total",
			Help: "Total indicators built by the Registry, labelled by indicator kind; individual _update calls are not counted",
		}, []string{"indicator"}),
		IndicatorUpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candlegraph_indicator_update_duration_seconds",
			Help:    "Wall time the Registry spends building one indicator, including its initial seed pass; later _update calls are not timed",
			Buckets: prometheus.DefBuckets,
		}),
		WarningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candlegraph_warnings_total",
			Help: "Total non-fatal warnings, labelled by warning kind",
		}, []string{"kind"}),
		DisposalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlegraph_disposals_total",
			Help: "Total indicator disposals, including cascaded dependents",
		}),
		GrowingArrayChunksAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlegraph_growing_array_chunks_allocated_total",
			Help: "Total chunks allocated across all growing arrays",
		}),
	}
}

// Register registers every collector with the default Prometheus registry.
// Call once at process startup.
func (m *Metrics) Register() {
	prometheus.MustRegister(
		m.PushesTotal,
		m.InterpolationsTotal,
		m.RebinningsTotal,
		m.IndicatorUpdatesTotal,
		m.IndicatorUpdateDuration,
		m.WarningsTotal,
		m.DisposalsTotal,
		m.GrowingArrayChunksAllocated,
	)
}

// HealthStatus is served as JSON from /healthz.
type HealthStatus struct {
	StartedAt      time.Time
	InstrumentKeys []string
	LastPushAt     time.Time
}

func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Status         string   `json:"status"`
		Uptime         string   `json:"uptime"`
		InstrumentKeys []string `json:"instrument_keys"`
		LastPushAt     string   `json:"last_push_at"`
	}{
		Status:         "ok",
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		InstrumentKeys: h.InstrumentKeys,
		LastPushAt:     h.LastPushAt.Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}
