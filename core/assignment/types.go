package assignment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/fieldassign/core/model"
)

// Request is one batch invocation.
type Request struct {
	CallIDs         []string         `json:"call_ids" validate:"required,min=1,dive,required"`
	WeightOverrides *WeightOverrides `json:"weight_overrides,omitempty"`
	DryRun          bool             `json:"dry_run"`
	ForceReassign   bool             `json:"force_reassign"`
	ActorID         string           `json:"actor_id,omitempty"`
	// BankIDs optionally names the banks involved up front, which lets the
	// engine read calls and engineers concurrently.
	BankIDs []string `json:"bank_ids,omitempty" validate:"omitempty,dive,required"`
}

// SubScores holds the four factor scores, each in [0,100].
type SubScores struct {
	Proximity float64 `json:"proximity"`
	Priority  float64 `json:"priority"`
	Workload  float64 `json:"workload"`
	Stock     float64 `json:"stock"`
}

// Total returns the weighted sum of the sub-scores.
func (s SubScores) Total(w Weights) float64 {
	return s.Proximity*w.Proximity + s.Priority*w.Priority + s.Workload*w.Workload + s.Stock*w.Stock
}

func (s SubScores) rounded() SubScores {
	return SubScores{
		Proximity: roundScore(s.Proximity),
		Priority:  roundScore(s.Priority),
		Workload:  roundScore(s.Workload),
		Stock:     roundScore(s.Stock),
	}
}

// ScoredEngineer is one candidate for a call. Workload, Stock and
// LastAssignedAt are the simulated values at the time the call was scored.
type ScoredEngineer struct {
	Engineer       model.Engineer `json:"engineer"`
	Scores         SubScores      `json:"scores"`
	Total          float64        `json:"total"`
	DistanceKM     *float64       `json:"distance_km"`
	Workload       int            `json:"workload"`
	Stock          int            `json:"stock"`
	LastAssignedAt *time.Time     `json:"last_assigned_at,omitempty"`
}

// MarshalJSON rounds scores and distance to two decimals.
func (s ScoredEngineer) MarshalJSON() ([]byte, error) {
	type plain ScoredEngineer
	out := plain(s)
	out.Total = roundScore(s.Total)
	out.Scores = s.Scores.rounded()
	out.DistanceKM = roundPtr(s.DistanceKM)
	return json.Marshal(out)
}

// Assignment is a call placed on an engineer.
type Assignment struct {
	Call           model.Call     `json:"call"`
	Engineer       ScoredEngineer `json:"engineer"`
	Reason         string         `json:"reason"`
	DistanceKM     *float64       `json:"distance_km"`
	RemainingStock int            `json:"remaining_stock"`
	AssignedAt     time.Time      `json:"assigned_at"`
	Committed      bool           `json:"committed"`
}

// MarshalJSON rounds the distance to two decimals.
func (a Assignment) MarshalJSON() ([]byte, error) {
	type plain Assignment
	out := plain(a)
	out.DistanceKM = roundPtr(a.DistanceKM)
	return json.Marshal(out)
}

// ReasonCode classifies why a call was not placed.
type ReasonCode string

const (
	ReasonNoEngineersInBank   ReasonCode = "no_engineers_in_bank"
	ReasonNoStock             ReasonCode = "no_stock"
	ReasonNoEligibleEngineers ReasonCode = "no_eligible_engineers"
	ReasonValidationFailed    ReasonCode = "validation_failed"
)

// UnassignedCall is a call left without an engineer.
type UnassignedCall struct {
	Call       model.Call `json:"call"`
	Reason     ReasonCode `json:"reason"`
	Detail     string     `json:"detail"`
	Considered int        `json:"engineers_considered"`
	Eligible   int        `json:"engineers_eligible"`
}

// Statistics aggregates a batch.
type Statistics struct {
	TotalCalls         int                `json:"total_calls"`
	Assigned           int                `json:"assigned"`
	Unassigned         int                `json:"unassigned"`
	AverageScore       float64            `json:"average_score"`
	AverageDistanceKM  float64            `json:"average_distance_km"`
	DurationMS         int64              `json:"duration_ms"`
	EngineersUsed      int                `json:"engineers_used"`
	UnassignedByReason map[ReasonCode]int `json:"unassigned_by_reason"`
}

// BatchResult is the response of AssignCalls.
type BatchResult struct {
	BatchID     string           `json:"batch_id"`
	Success     bool             `json:"success"`
	DryRun      bool             `json:"dry_run"`
	Assignments []Assignment     `json:"assignments"`
	Unassigned  []UnassignedCall `json:"unassigned"`
	Statistics  Statistics       `json:"statistics"`
}

// CallDirectory reads calls.
type CallDirectory interface {
	FetchByIDsAndStatus(ctx context.Context, ids []string, statuses []model.CallStatus) ([]model.Call, error)
}

// EngineerDirectory reads the engineer pool of the given banks, including
// their current workload and stock.
type EngineerDirectory interface {
	FetchEligiblePool(ctx context.Context, bankIDs []string) ([]model.Engineer, error)
}

// EngineerEnricher overlays data the directory does not hold, such as a
// newer live position or last assignment time, before scoring.
type EngineerEnricher interface {
	Enrich(e *model.Engineer)
}

func roundScore(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := roundScore(*v)
	return &r
}
