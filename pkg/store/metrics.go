package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreHits counts archives served from Redis
	StoreHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wanikani_store_hits_total",
			Help: "Total number of archives served from the store",
		},
	)

	// StoreMisses counts lookups without a stored archive
	StoreMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wanikani_store_misses_total",
			Help: "Total number of archive store misses",
		},
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanikani_store_errors_total",
			Help: "Total number of archive store errors",
		},
		[]string{"operation"}, // "get", "save", "delete"
	)
)
