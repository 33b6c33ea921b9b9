package engine

import (
	"sync/atomic"
	"time"
)

// Metrics holds engine counters. All fields are updated atomically; the
// exposed endpoints are thin wrappers over a snapshot.
type Metrics struct {
	requests     atomic.Int64
	cacheHits    atomic.Int64
	errors       atomic.Int64
	latencyMicro atomic.Int64
}

func newMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) observe(d time.Duration, err error) {
	m.requests.Add(1)
	m.latencyMicro.Add(d.Microseconds())
	if err != nil {
		m.errors.Add(1)
	}
}

func (m *Metrics) cacheHit() { m.cacheHits.Add(1) }

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	Requests     int64   `json:"requests"`
	CacheHits    int64   `json:"cache_hits"`
	Errors       int64   `json:"errors"`
	HitRate      float64 `json:"hit_rate"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

func (m *Metrics) snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Requests:  m.requests.Load(),
		CacheHits: m.cacheHits.Load(),
		Errors:    m.errors.Load(),
	}
	if s.Requests > 0 {
		s.HitRate = float64(s.CacheHits) / float64(s.Requests)
		s.ErrorRate = float64(s.Errors) / float64(s.Requests)
		s.AvgLatencyMS = float64(m.latencyMicro.Load()) / float64(s.Requests) / 1000.0
	}
	return s
}
