package metrics

// MultiSink fans records out to multiple sinks. Optional recorders are only
// forwarded to the sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignments forwards the records to all sinks, returning the first error encountered.
func (m *MultiSink) RecordAssignments(recs []AssignmentRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignments(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordUnassigned forwards unplaced calls.
func (m *MultiSink) RecordUnassigned(recs []UnassignedRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(UnassignedRecorder); ok {
			if err := r.RecordUnassigned(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBatch forwards batch summaries.
func (m *MultiSink) RecordBatch(sum BatchSummary) error {
	for _, s := range m.Sinks {
		if r, ok := s.(BatchRecorder); ok {
			if err := r.RecordBatch(sum); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCommitLatency forwards latency metrics when supported by the sink.
func (m *MultiSink) RecordCommitLatency(lat []CommitLatency) error {
	for _, s := range m.Sinks {
		if r, ok := s.(LatencyRecorder); ok {
			if err := r.RecordCommitLatency(lat); err != nil {
				return err
			}
		}
	}
	return nil
}
