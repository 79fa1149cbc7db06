package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	LinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soc_pipeline_lines_total",
			Help: "Complete log lines consumed, by classification",
		},
		[]string{"classification"},
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soc_pipeline_persist_errors_total",
			Help: "Suspicious events that could not be written to the document store",
		},
	)

	// Batching
	BatchesFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soc_pipeline_batches_flushed_total",
			Help: "Suspicious batches handed to enrichment, by trigger",
		},
		[]string{"trigger"},
	)

	BatchPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soc_pipeline_batch_pending",
			Help: "Suspicious events waiting in the current batch",
		},
	)

	// Enrichment
	EnrichmentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soc_pipeline_enrichment_events_total",
			Help: "Enriched events by resulting analysis status",
		},
		[]string{"status"},
	)

	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soc_pipeline_enrichment_duration_seconds",
			Help:    "Duration of one enrichment dispatch including retries",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	StaleRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soc_pipeline_stale_requeued_total",
			Help: "Incidents requeued by the failed-enrichment sweep",
		},
	)
)
