package carcheck

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis outcomes.
const (
	OutcomeAnalyzed     = "analyzed"
	OutcomeAnnotated    = "annotated"
	OutcomeFallback     = "fallback"
	OutcomeUnconfigured = "unconfigured"
)

var (
	analysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carcheck_analysis_total",
			Help: "Upload analyses by classifier backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	analysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carcheck_analysis_duration_seconds",
			Help:    "Time spent waiting on the classifier during upload.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)
