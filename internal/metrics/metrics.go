package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvpcast_predictions_total",
			Help: "Total predictions served, by selected model",
		},
		[]string{"model"},
	)

	FallbackActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvpcast_fallback_activations_total",
			Help: "Predictions where the primary regressor was invalid and the ratio fallback was used",
		},
	)

	PredictionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvpcast_prediction_errors_total",
			Help: "Rejected prediction requests, by error kind",
		},
		[]string{"kind"},
	)

	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rsvpcast_request_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	IngestAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvpcast_ingest_api_calls_total",
			Help: "Total upstream API calls made by the digest pipeline",
		},
		[]string{"source", "status"},
	)

	DigestEmailsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvpcast_digest_emails_sent_total",
			Help: "Total forecast digest emails sent",
		},
	)
)
