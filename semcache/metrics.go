package semcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	missReasonSimilarity = "similarity"
	missReasonEmbedding  = "embedding_unavailable"
	missReasonIndex      = "index_unavailable"
)

var (
	lookupHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicore",
		Subsystem: "semcache",
		Name:      "lookup_hits_total",
		Help:      "Semantic cache lookups answered from a prior computation.",
	}, []string{"task"})

	// Degraded lookups (embedding or index failures) are counted under
	// their own reason so they can be told apart from genuine similarity
	// misses.
	lookupMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicore",
		Subsystem: "semcache",
		Name:      "lookup_misses_total",
		Help:      "Semantic cache lookups that proceeded to the costed path, by reason.",
	}, []string{"task", "reason"})

	storeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicore",
		Subsystem: "semcache",
		Name:      "store_failures_total",
		Help:      "Best-effort cache writes that were dropped.",
	}, []string{"task"})
)
