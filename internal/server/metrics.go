package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictRequests counts /predict calls by outcome.
	PredictRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_predict_requests_total",
			Help: "Total number of predict requests by status",
		},
		[]string{"status"},
	)

	// PredictLatency tracks end-to-end /predict latency.
	PredictLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "churn_predict_latency_seconds",
			Help:    "Latency of predict requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ScoredRecords counts records that received a probability.
	ScoredRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "churn_scored_records_total",
			Help: "Total number of records scored",
		},
	)

	// SchemaColumns reports the width of the active feature schema.
	SchemaColumns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "churn_schema_columns",
			Help: "Number of columns in the active feature schema",
		},
	)
)
