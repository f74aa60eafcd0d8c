package assignment

import (
	"sort"
	"time"

	"github.com/kilianp07/fieldassign/core/model"
)

// Decision is the allocator outcome for one call. Exactly one of Assignment
// and Unassigned is set.
type Decision struct {
	Call       model.Call
	Candidates []ScoredEngineer
	Assignment *Assignment
	Unassigned *UnassignedCall
}

// Plan is the ordered list of decisions for a batch together with the state
// left after the last one.
type Plan struct {
	Decisions []Decision
	State     *SimulatedState
}

// Allocator assigns calls greedily in priority order.
type Allocator struct {
	Scorer                Scorer
	Filter                EligibilityFilter
	TieBreaker            TieBreaker
	StrongFactorThreshold float64
}

// NewAllocator builds an allocator from the configuration.
func NewAllocator(cfg Config) Allocator {
	return Allocator{
		Scorer: NewScorer(cfg),
		Filter: EligibilityFilter{
			EnforceWorkloadCap:  cfg.EnforceWorkloadCap,
			MaxCallsPerEngineer: cfg.MaxCallsPerEngineer,
		},
		TieBreaker:            NewTieBreaker(cfg.TieEpsilon),
		StrongFactorThreshold: cfg.StrongFactorThreshold,
	}
}

// SortByPriority orders calls by descending priority, keeping the input
// order among equal priorities. The input slice is not modified.
func SortByPriority(calls []model.Call) []model.Call {
	out := append([]model.Call(nil), calls...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Weight() > out[j].Priority.Weight()
	})
	return out
}

// Allocate walks the calls in priority order against a copy of seed. The
// seed itself is left untouched.
func (a Allocator) Allocate(calls []model.Call, engineers []model.Engineer, w Weights, seed *SimulatedState, now time.Time) Plan {
	st := seed.Clone()
	plan := Plan{Decisions: make([]Decision, 0, len(calls))}
	for _, call := range SortByPriority(calls) {
		var d Decision
		d, st = a.Step(call, engineers, w, st, now)
		plan.Decisions = append(plan.Decisions, d)
	}
	plan.State = st
	return plan
}

// Step decides a single call and returns the state after the decision.
func (a Allocator) Step(call model.Call, engineers []model.Engineer, w Weights, st *SimulatedState, now time.Time) (Decision, *SimulatedState) {
	d := Decision{Call: call}
	eligible := a.Filter.Filter(call, engineers, st)
	if len(eligible) == 0 {
		code, detail := classifyUnassigned(call, engineers, st)
		d.Unassigned = &UnassignedCall{
			Call:       call,
			Reason:     code,
			Detail:     detail,
			Considered: len(engineers),
		}
		return d, st
	}

	cands := make([]ScoredEngineer, 0, len(eligible))
	for _, e := range eligible {
		cands = append(cands, a.Scorer.Score(call, e, st, w, now))
	}
	a.TieBreaker.Rank(cands)
	d.Candidates = cands

	winner := cands[0]
	remaining := st.Apply(call, winner.Engineer.ID, now)
	d.Assignment = &Assignment{
		Call:           call,
		Engineer:       winner,
		Reason:         assignmentReason(winner.Scores, a.StrongFactorThreshold),
		DistanceKM:     winner.DistanceKM,
		RemainingStock: remaining,
		AssignedAt:     now,
	}
	return d, st
}
