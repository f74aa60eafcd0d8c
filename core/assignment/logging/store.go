// Package logging persists one record per assignment batch and answers
// queries over past batches.
package logging

import (
	"context"
	"time"
)

// LogRecord captures one batch: the request, every decision and the summary.
type LogRecord struct {
	BatchID       string             `json:"batch_id"`
	Timestamp     time.Time          `json:"timestamp"`
	ActorID       string             `json:"actor_id,omitempty"`
	DryRun        bool               `json:"dry_run"`
	ForceReassign bool               `json:"force_reassign"`
	CallIDs       []string           `json:"call_ids"`
	Weights       map[string]float64 `json:"weights"`
	Assignments   []AssignmentEntry  `json:"assignments"`
	Unassigned    []UnassignedEntry  `json:"unassigned"`
	Summary       Summary            `json:"summary"`
}

// AssignmentEntry is a placed call.
type AssignmentEntry struct {
	CallID     string   `json:"call_id"`
	EngineerID string   `json:"engineer_id"`
	Score      float64  `json:"score"`
	DistanceKM *float64 `json:"distance_km,omitempty"`
	Reason     string   `json:"reason"`
	Committed  bool     `json:"committed"`
}

// UnassignedEntry is a call that could not be placed.
type UnassignedEntry struct {
	CallID string `json:"call_id"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Summary mirrors the batch statistics.
type Summary struct {
	TotalCalls        int     `json:"total_calls"`
	Assigned          int     `json:"assigned"`
	Unassigned        int     `json:"unassigned"`
	AverageScore      float64 `json:"average_score"`
	AverageDistanceKM float64 `json:"average_distance_km"`
	DurationMS        int64   `json:"duration_ms"`
	EngineersUsed     int     `json:"engineers_used"`
}

// LogQuery defines filters for retrieving records. Zero values match everything.
type LogQuery struct {
	Start      time.Time
	End        time.Time
	BatchID    string
	EngineerID string
	CallID     string
	DryRun     *bool
}

// Matches reports whether r satisfies every filter of q.
func (r LogRecord) Matches(q LogQuery) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.BatchID != "" && r.BatchID != q.BatchID {
		return false
	}
	if q.DryRun != nil && r.DryRun != *q.DryRun {
		return false
	}
	if q.EngineerID != "" && !r.hasEngineer(q.EngineerID) {
		return false
	}
	if q.CallID != "" && !r.hasCall(q.CallID) {
		return false
	}
	return true
}

func (r LogRecord) hasEngineer(id string) bool {
	for _, a := range r.Assignments {
		if a.EngineerID == id {
			return true
		}
	}
	return false
}

func (r LogRecord) hasCall(id string) bool {
	for _, c := range r.CallIDs {
		if c == id {
			return true
		}
	}
	for _, a := range r.Assignments {
		if a.CallID == id {
			return true
		}
	}
	for _, u := range r.Unassigned {
		if u.CallID == id {
			return true
		}
	}
	return false
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
