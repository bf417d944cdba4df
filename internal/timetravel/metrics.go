package timetravel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigscope_replay_cache_lookups_total",
		Help: "Replay cache lookups by result",
	}, []string{"result"})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sigscope_replay_cache_evictions_total",
		Help: "Replay cache entries evicted at capacity",
	})

	eventsApplied = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sigscope_replay_events_applied",
		Help:    "Events applied to rebuild one state on a cache miss",
		Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
	})
)
