package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheOperationsTotal counts get/set/invalidate/clear operations
	CacheOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_cache_operations_total",
		Help: "The total number of image cache operations",
	}, []string{"type", "status"})

	// CacheHitsTotal counts cache hits
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_hits_total",
		Help: "The total number of image cache hits",
	})

	// CacheMissesTotal counts cache misses
	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_misses_total",
		Help: "The total number of image cache misses",
	})

	// CachePutsTotal counts accepted inserts
	CachePutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_puts_total",
		Help: "The total number of images accepted into the cache",
	})

	// CacheEvictionsTotal counts LRU evictions
	CacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_evictions_total",
		Help: "The total number of images evicted to stay within budget",
	})

	// CacheRejectedTotal counts inserts dropped for exceeding the whole budget
	CacheRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_rejected_total",
		Help: "The total number of images too large to cache",
	})

	// CacheResidentBytes tracks the byte total of resident images
	CacheResidentBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "image_cache_resident_bytes",
		Help: "Bytes currently held by the image cache",
	})

	// DecodeDurationSeconds measures decode latency
	DecodeDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "image_decode_duration_seconds",
		Help:    "The latency of image decodes",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	// ActionDeliveriesTotal counts terminal deliveries by outcome
	ActionDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_action_deliveries_total",
		Help: "Terminal action outcomes: completed, failed or suppressed",
	}, []string{"outcome"})

	// ActionReplaysTotal counts actions re-issued after a connectivity change
	ActionReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_action_replays_total",
		Help: "The total number of actions replayed after connectivity returned",
	})
)
