// Package metrics provides Prometheus metrics for journal activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "journal"

var (
	// EntriesKept counts entries written through Create.
	EntriesKept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entries",
			Name:      "kept_total",
			Help:      "Total number of entries kept",
		},
	)

	// EntriesImported counts entries added by import or demo generation.
	EntriesImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entries",
			Name:      "imported_total",
			Help:      "Total number of entries merged in from imports and demo data",
		},
	)

	// ReflectionRequests counts reflection attempts.
	// Labels: outcome (fulfilled, failed, empty, locked, too_soon, in_flight)
	ReflectionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reflection",
			Name:      "requests_total",
			Help:      "Total number of reflection requests by outcome",
		},
		[]string{"outcome"},
	)

	// ReflectionDuration tracks how long the generator takes.
	ReflectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reflection",
			Name:      "generate_duration_seconds",
			Help:      "Duration of reflection generator calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)
)
