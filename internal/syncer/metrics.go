package syncer

import "github.com/prometheus/client_golang/prometheus"

var (
	syncRowsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_pricing_sync_rows_fetched_total",
			Help: "Total number of rows fetched from upstream tables",
		},
		[]string{"table", "scrap_type"},
	)

	syncFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_pricing_sync_table_failures_total",
			Help: "Total number of per-table sync failures",
		},
		[]string{"table", "scrap_type", "step"},
	)

	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_pricing_sync_duration_seconds",
			Help:    "Raw sync duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"scrap_type"},
	)
)

func init() {
	prometheus.MustRegister(syncRowsFetched)
	prometheus.MustRegister(syncFailures)
	prometheus.MustRegister(syncDuration)
}
