package events

import "time"

// CommitEvent is published for each commit attempt.
type CommitEvent struct {
	BatchID    string
	CallID     string
	EngineerID string
	Committed  bool
	Err        error
	Latency    time.Duration
}
