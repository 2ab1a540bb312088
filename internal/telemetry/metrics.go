// Package telemetry exposes the engine's Prometheus collectors. Everything
// registers on the default registry, which the HTTP server serves at
// /metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResearchRuns counts finished runs by depth tier and outcome.
	ResearchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scout",
		Subsystem: "engine",
		Name:      "research_runs_total",
		Help:      "Completed research runs by depth and outcome.",
	}, []string{"depth", "outcome"})

	// RunDuration observes end-to-end pipeline latency per depth tier.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scout",
		Subsystem: "engine",
		Name:      "run_duration_seconds",
		Help:      "End-to-end research run latency.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
	}, []string{"depth"})

	// AdapterRequests counts fan-out legs by source and terminal status.
	AdapterRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scout",
		Subsystem: "sources",
		Name:      "adapter_requests_total",
		Help:      "Adapter fan-out legs by source and status.",
	}, []string{"source", "status"})

	// AdapterLatency observes per-adapter search latency.
	AdapterLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scout",
		Subsystem: "sources",
		Name:      "adapter_latency_seconds",
		Help:      "Per-adapter search latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	// ResultsKept observes how many canonical results survive per run.
	ResultsKept = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scout",
		Subsystem: "engine",
		Name:      "results_kept",
		Help:      "Canonical results per finished run.",
		Buckets:   prometheus.LinearBuckets(0, 5, 10),
	}, []string{"depth"})

	// DuplicatesMerged counts raw results folded into canonical groups.
	DuplicatesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Subsystem: "engine",
		Name:      "duplicates_merged_total",
		Help:      "Raw results merged away during deduplication.",
	})

	// ConflictsDetected counts detected conflicts by kind.
	ConflictsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scout",
		Subsystem: "engine",
		Name:      "conflicts_total",
		Help:      "Detected conflicts by kind.",
	}, []string{"kind"})

	// EstimatedCost accumulates the estimated spend across runs.
	EstimatedCost = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Subsystem: "engine",
		Name:      "estimated_cost_usd_total",
		Help:      "Accumulated estimated spend in USD.",
	})
)

// ObserveRun records the terminal metrics of one research run.
func ObserveRun(depth string, outcome string, elapsed time.Duration, results int, cost float64) {
	ResearchRuns.WithLabelValues(depth, outcome).Inc()
	RunDuration.WithLabelValues(depth).Observe(elapsed.Seconds())
	ResultsKept.WithLabelValues(depth).Observe(float64(results))
	if cost > 0 {
		EstimatedCost.Add(cost)
	}
}

// ObserveAdapter records one fan-out leg.
func ObserveAdapter(source string, status string, elapsed time.Duration) {
	AdapterRequests.WithLabelValues(source, status).Inc()
	AdapterLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}
