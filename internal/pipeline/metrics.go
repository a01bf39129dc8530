package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_pricing_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"stage", "scrap_type"},
	)

	stageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_pricing_stage_failures_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage", "scrap_type"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_pricing_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"scrap_type", "outcome"},
	)

	repairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_pricing_repairs_total",
			Help: "Total number of data repairs",
		},
		[]string{"scrap_type"},
	)
)

func init() {
	prometheus.MustRegister(stageDuration)
	prometheus.MustRegister(stageFailures)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(repairsTotal)
}
