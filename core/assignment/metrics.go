package assignment

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	batchesTotal    *prometheus.CounterVec
	callsTotal      *prometheus.CounterVec
	unassignedTotal *prometheus.CounterVec
	commitLatency   prometheus.Histogram
	batchDuration   prometheus.Histogram
	scoreHistogram  prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Histogram, prometheus.Histogram, prometheus.Histogram) {
	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_batches_total",
			Help: "Number of assignment batches processed",
		},
		[]string{"mode"},
	)
	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_calls_total",
			Help: "Number of calls processed by outcome",
		},
		[]string{"outcome"},
	)
	unassigned := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_unassigned_total",
			Help: "Number of unassigned calls by reason",
		},
		[]string{"reason"},
	)
	commit := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assignment_commit_latency_seconds",
			Help:    "Latency of a single assignment commit",
			Buckets: prometheus.DefBuckets,
		},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assignment_batch_duration_seconds",
			Help:    "Wall-clock duration of an assignment batch",
			Buckets: prometheus.DefBuckets,
		},
	)
	score := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assignment_score",
			Help:    "Total score of winning engineers",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	return batches, calls, unassigned, commit, duration, score
}

func init() {
	batchesTotal, callsTotal, unassignedTotal, commitLatency, batchDuration, scoreHistogram = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers assignment metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(batchesTotal, callsTotal, unassignedTotal, commitLatency, batchDuration, scoreHistogram)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	batchesTotal, callsTotal, unassignedTotal, commitLatency, batchDuration, scoreHistogram = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func batchMode(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "commit"
}
