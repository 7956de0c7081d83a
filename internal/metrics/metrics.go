// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheLookups counts snapshot lookups by cache key and outcome (hit/miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacedash_cache_lookups_total",
		Help: "Snapshot cache lookups by key and outcome.",
	}, []string{"cache", "result"})

	// UpstreamRequestDuration observes outbound request latency per upstream.
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spacedash_upstream_request_seconds",
		Help:    "Latency of outbound requests to upstream data providers.",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream"})

	// BreakerState tracks circuit breaker state (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spacedash_breaker_state",
		Help: "Circuit breaker state per upstream (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})
)

// CacheHit records a fresh-snapshot lookup for the named cache.
func CacheHit(cache string) {
	CacheLookups.WithLabelValues(cache, "hit").Inc()
}

// CacheMiss records a missing or stale snapshot for the named cache.
func CacheMiss(cache string) {
	CacheLookups.WithLabelValues(cache, "miss").Inc()
}

// ObserveUpstream records one outbound request's duration.
func ObserveUpstream(upstream string, d time.Duration) {
	UpstreamRequestDuration.WithLabelValues(upstream).Observe(d.Seconds())
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
