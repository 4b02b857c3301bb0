package reach

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reach_jobs_total",
		Help: "Jobs by terminal status (or submitted).",
	}, []string{"status"})

	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reach_jobs_running",
		Help: "Jobs currently executing.",
	})

	jobStoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reach_job_store_failures_total",
		Help: "Status transitions that could not be persisted.",
	})

	traversalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reach_traversal_duration_seconds",
		Help:    "Wall time of one job traversal.",
		Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400},
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reach_profile_cache_lookups_total",
		Help: "Profile cache lookups by outcome (hit, miss, expired, error).",
	}, []string{"outcome"})

	providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reach_provider_calls_total",
		Help: "Provider calls by operation and outcome.",
	}, []string{"op", "outcome"})
)

func providerOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
