package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_replies_total",
			Help: "Replies produced per source (knowledge or generative)",
		},
		[]string{"source"},
	)

	GenerationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_generation_failures_total",
			Help: "Generative backend calls that failed",
		},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_generation_duration_seconds",
			Help:    "Latency of generative backend calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xray_classifications_total",
			Help: "Image classification attempts by outcome and label",
		},
		[]string{"outcome", "label"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_sessions_active",
			Help: "Sessions currently held in memory",
		},
	)
)
