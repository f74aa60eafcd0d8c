package metrics

import "time"

// AssignmentRecord represents one placed call to be recorded.
type AssignmentRecord struct {
	BatchID    string
	CallID     string
	CallType   string
	Priority   string
	BankID     string
	EngineerID string
	Score      float64
	DistanceKM *float64
	DryRun     bool
	Committed  bool
	Time       time.Time
}

// MetricsSink records assignment outcomes for observability purposes.
type MetricsSink interface {
	RecordAssignments(recs []AssignmentRecord) error
}

// UnassignedRecord captures a call that could not be placed.
type UnassignedRecord struct {
	BatchID string
	CallID  string
	BankID  string
	Reason  string
	Time    time.Time
}

// UnassignedRecorder is implemented by sinks able to record unplaced calls.
type UnassignedRecorder interface {
	RecordUnassigned(recs []UnassignedRecord) error
}

// BatchSummary aggregates one batch.
type BatchSummary struct {
	BatchID       string
	DryRun        bool
	TotalCalls    int
	Assigned      int
	Unassigned    int
	AverageScore  float64
	AverageKM     float64
	EngineersUsed int
	Duration      time.Duration
	Time          time.Time
}

// BatchRecorder is implemented by sinks able to record batch summaries.
type BatchRecorder interface {
	RecordBatch(sum BatchSummary) error
}

// CommitLatency is the time taken by one commit call.
type CommitLatency struct {
	CallID     string
	EngineerID string
	Committed  bool
	Latency    time.Duration
}

// LatencyRecorder is implemented by sinks able to record commit latency.
type LatencyRecorder interface {
	RecordCommitLatency(lat []CommitLatency) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignments([]AssignmentRecord) error { return nil }
func (NopSink) RecordUnassigned([]UnassignedRecord) error { return nil }
func (NopSink) RecordBatch(BatchSummary) error { return nil }
func (NopSink) RecordCommitLatency([]CommitLatency) error { return nil }
