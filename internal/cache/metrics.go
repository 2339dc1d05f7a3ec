package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one Cache.
type Metrics struct {
	Hits     *prometheus.CounterVec
	Misses   *prometheus.CounterVec
	Shared   *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the cache collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Hits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "citenet_cache_hits_total",
			Help: "Lookups answered from cache, by operation and tier",
		}, []string{"op", "tier"}),
		Misses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "citenet_cache_misses_total",
			Help: "Lookups forwarded to the underlying accessor",
		}, []string{"op"}),
		Shared: f.NewCounterVec(prometheus.CounterOpts{
			Name: "citenet_cache_shared_total",
			Help: "Lookups that joined an in-flight call for the same key",
		}, []string{"op"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "citenet_cache_errors_total",
			Help: "Underlying lookups that failed, excluding not-found",
		}, []string{"op"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citenet_lookup_duration_seconds",
			Help:    "Latency of underlying accessor calls",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"op"}),
	}
}
