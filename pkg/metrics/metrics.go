// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MergesTotal tracks merge attempts by entity kind and outcome
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "merges_total",
			Help:      "Total number of merge attempts by outcome",
		},
		[]string{"entity_kind", "outcome"},
	)

	// MergeDuration tracks merge transaction duration in seconds
	MergeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merge transactions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"entity_kind"},
	)

	// ReferencesTransferred counts rows re-pointed to survivors
	ReferencesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "references_transferred_total",
			Help:      "Total number of referencing rows moved to a survivor",
		},
		[]string{"entity_kind", "manifest_entry"},
	)

	// ReferencesDropped counts conflict-prone rows deleted as duplicates
	ReferencesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "references_dropped_total",
			Help:      "Total number of duplicate links deleted during merges",
		},
		[]string{"entity_kind", "manifest_entry"},
	)

	// DetectionDuration tracks detection calls by mode
	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "duration_seconds",
			Help:      "Duration of duplicate detection calls in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"entity_kind", "mode"},
	)

	// ScanCacheLookups tracks batch-scan cache hits and misses
	ScanCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "scan_cache_lookups_total",
			Help:      "Batch-scan cache lookups by result",
		},
		[]string{"result"},
	)

	// ScanRecords tracks the size of scanned record sets
	ScanRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "scan_records",
			Help:      "Number of live records loaded by a batch scan",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		},
	)

	// PostCommitFailures tracks best-effort side effects that failed after a merge committed
	PostCommitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "post_commit_failures_total",
			Help:      "Failed post-commit side effects by target",
		},
		[]string{"target"},
	)
)
