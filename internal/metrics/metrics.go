// Package metrics exposes Prometheus instrumentation for the telemetry
// pipeline. Collectors are registered on the default registry and served
// through the HTTP API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsAccepted counts readings that passed validation and entered
	// the pipeline.
	ReadingsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoq_readings_accepted_total",
		Help: "Readings accepted after validation and quality scoring.",
	})

	// ReadingsRejected counts readings dropped by validation.
	ReadingsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoq_readings_rejected_total",
		Help: "Readings rejected by validation.",
	})

	// ReadingsQueued counts readings diverted to the offline queue.
	ReadingsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoq_readings_queued_total",
		Help: "Readings diverted to the offline queue.",
	})

	// QueueDepth tracks the current offline queue length.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ecoq_offline_queue_depth",
		Help: "Readings currently waiting in the offline queue.",
	})

	// SyncBatches counts committed offline sync batches.
	SyncBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoq_sync_batches_total",
		Help: "Offline queue batches committed to the store.",
	})

	// SyncedReadings counts readings persisted through queue flushes.
	SyncedReadings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoq_synced_readings_total",
		Help: "Readings persisted by offline queue flushes.",
	})

	// InsightsGenerated counts insights produced by analytics cycles.
	InsightsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecoq_insights_generated_total",
		Help: "Insights produced by analytics cycles.",
	})

	// AnalyticsCycleDuration observes how long a full recompute takes.
	AnalyticsCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecoq_analytics_cycle_duration_seconds",
		Help:    "Duration of full analytics recompute cycles.",
		Buckets: prometheus.DefBuckets,
	})
)
