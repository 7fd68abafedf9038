// Package config holds env-driven configuration for the cmd/engine demo
// process: no broker credentials, no Redis/SQLite DSNs, since this module
// carries no persistence or transport layer.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"candlegraph/internal/interval"
)

// Config holds the demo engine's configuration.
type Config struct {
	// ChunkSize is the GrowingArray chunk size used by every Source, Digest,
	// and Indicator the demo constructs.
	ChunkSize int

	// SourceInterval is the sampling interval of the synthetic tick feed's
	// Source.
	SourceInterval interval.Interval

	// DigestIntervals are the coarser intervals the demo digests the source
	// candles into, e.g. 5m and 15m.
	DigestIntervals []interval.Interval

	// InstrumentKeys names the synthetic instruments the demo feeds.
	InstrumentKeys []string

	// MovingMeanTailSize is the tail size used for the demo's MovingMean.
	MovingMeanTailSize int

	// MetricsAddr is the listen address for the Prometheus /metrics and
	// /healthz endpoints.
	MetricsAddr string

	// TickInterval is the wall-clock pace of the synthetic tick generator.
	TickInterval time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults for running the demo locally.
func Load() *Config {
	return &Config{
		ChunkSize:          getEnvInt("CHUNK_SIZE", 64),
		SourceInterval:     getEnvInterval("SOURCE_INTERVAL", interval.Second),
		DigestIntervals:    getEnvIntervalList("DIGEST_INTERVALS", []interval.Interval{interval.Minute, interval.FiveMinutes}),
		InstrumentKeys:     parseList(getEnv("INSTRUMENT_KEYS", "DEMO")),
		MovingMeanTailSize: getEnvInt("MOVING_MEAN_TAIL_SIZE", 5),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),
		TickInterval:       time.Duration(getEnvInt("TICK_INTERVAL_MS", 200)) * time.Millisecond,
	}
}

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInterval(key string, fallback interval.Interval) interval.Interval {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	iv, ok := interval.Parse(v)
	if !ok {
		log.Printf("[config] ignoring invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return iv
}

func getEnvIntervalList(key string, fallback []interval.Interval) []interval.Interval {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	names := parseList(v)
	out := make([]interval.Interval, 0, len(names))
	for _, n := range names {
		iv, ok := interval.Parse(n)
		if !ok {
			log.Printf("[config] ignoring invalid interval %q in %s=%q, using default", n, key, v)
			return fallback
		}
		out = append(out, iv)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
