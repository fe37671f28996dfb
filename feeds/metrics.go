package feeds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedreader_loads_requested_total",
		Help: "The total number of feed load requests",
	})

	loadsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedreader_loads_completed_total",
		Help: "Feed loads by result (ok, fetch_error, superseded)",
	}, []string{"result"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedreader_fetch_duration_seconds",
		Help:    "Duration of feed fetches, stale ones included",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms up to ~40s
	})

	favoritesChanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedreader_favorites_changed_total",
		Help: "Favorite transitions that changed state",
	}, []string{"action"})
)
