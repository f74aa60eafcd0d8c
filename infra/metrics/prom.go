package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
)

// PromSink records assignment outcomes in Prometheus metrics.
type PromSink struct {
	assigned   *prometheus.CounterVec
	unassigned *prometheus.CounterVec
	score      *prometheus.HistogramVec
	distance   prometheus.Histogram
	latency    *prometheus.HistogramVec
	batches    *prometheus.CounterVec
	lastBatch  prometheus.Gauge
}

// NewPromSink registers assignment metrics on the default Prometheus registerer.
// The exporter should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		assigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldassign_assignments_total",
			Help: "Calls placed on an engineer",
		}, []string{"call_type", "priority", "dry_run", "committed"}),
		unassigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldassign_unassigned_total",
			Help: "Calls left unassigned by reason",
		}, []string{"reason"}),
		score: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldassign_assignment_score",
			Help:    "Composite score of chosen engineers",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}, []string{"call_type"}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldassign_assignment_distance_km",
			Help:    "Distance between chosen engineer and call",
			Buckets: []float64{1, 5, 10, 25, 50, 75, 100},
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldassign_commit_latency_seconds",
			Help:    "Time spent committing a single assignment",
			Buckets: prometheus.DefBuckets,
		}, []string{"committed"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldassign_batches_total",
			Help: "Assignment batches processed",
		}, []string{"dry_run"}),
		lastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldassign_last_batch_duration_seconds",
			Help: "Duration of the most recent batch",
		}),
	}
	var err error
	if s.assigned, err = register(reg, s.assigned); err != nil {
		return nil, err
	}
	if s.unassigned, err = register(reg, s.unassigned); err != nil {
		return nil, err
	}
	if s.score, err = register(reg, s.score); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, s.distance); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.batches, err = register(reg, s.batches); err != nil {
		return nil, err
	}
	if s.lastBatch, err = register(reg, s.lastBatch); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when one with the same
// descriptor exists so that several sinks can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAssignments increments counters and observes score and distance.
func (s *PromSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.assigned.WithLabelValues(r.CallType, r.Priority, strconv.FormatBool(r.DryRun), strconv.FormatBool(r.Committed)).Inc()
		s.score.WithLabelValues(r.CallType).Observe(r.Score)
		if r.DistanceKM != nil {
			s.distance.Observe(*r.DistanceKM)
		}
	}
	return nil
}

// RecordUnassigned counts unplaced calls by reason.
func (s *PromSink) RecordUnassigned(recs []coremetrics.UnassignedRecord) error {
	for _, r := range recs {
		s.unassigned.WithLabelValues(r.Reason).Inc()
	}
	return nil
}

// RecordBatch counts the batch and exposes its duration.
func (s *PromSink) RecordBatch(sum coremetrics.BatchSummary) error {
	s.batches.WithLabelValues(strconv.FormatBool(sum.DryRun)).Inc()
	s.lastBatch.Set(sum.Duration.Seconds())
	return nil
}

// RecordCommitLatency records the commit latency histogram.
func (s *PromSink) RecordCommitLatency(recs []coremetrics.CommitLatency) error {
	for _, r := range recs {
		s.latency.WithLabelValues(strconv.FormatBool(r.Committed)).Observe(r.Latency.Seconds())
	}
	return nil
}
