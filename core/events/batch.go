package events

import "time"

// BatchPhase identifies the point in the batch lifecycle.
type BatchPhase string

const (
	BatchStarted  BatchPhase = "started"
	BatchFinished BatchPhase = "finished"
)

// BatchEvent is published when a batch starts and when it completes.
type BatchEvent struct {
	BatchID    string
	Phase      BatchPhase
	DryRun     bool
	Calls      int
	Assigned   int
	Unassigned int
	Duration   time.Duration
	Err        error
}
