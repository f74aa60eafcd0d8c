package assignment

import (
	"fmt"
	"strings"

	"github.com/kilianp07/fieldassign/core/model"
)

const (
	factorProximity = "proximity"
	factorPriority  = "priority"
	factorWorkload  = "workload"
	factorStock     = "stock"
)

// bestAvailable is the reason given when no factor is strong.
const bestAvailable = "best available match"

// reasonInput is what the unassigned-call rules look at.
type reasonInput struct {
	call  model.Call
	pool  []model.Engineer
	state *SimulatedState
}

func (in reasonInput) activeInBank() int {
	n := 0
	for _, e := range in.pool {
		if e.BankID == in.call.BankID && e.IsActive() {
			n++
		}
	}
	return n
}

// unassignedRule classifies a call for which no engineer is eligible.
type unassignedRule struct {
	Code    ReasonCode
	Applies func(in reasonInput) bool
	Detail  func(in reasonInput) string
}

// unassignedRules are evaluated top to bottom; the first match wins.
var unassignedRules = []unassignedRule{
	{
		Code:    ReasonNoEngineersInBank,
		Applies: func(in reasonInput) bool { return in.activeInBank() == 0 },
		Detail: func(in reasonInput) string {
			return fmt.Sprintf("no active engineer in bank %s", in.call.BankID)
		},
	},
	{
		Code: ReasonNoStock,
		Applies: func(in reasonInput) bool {
			return in.call.Type.RequiresDevice() && in.state.BankStock(in.pool, in.call.BankID) == 0
		},
		Detail: func(in reasonInput) string {
			return fmt.Sprintf("no %s device stock left in bank %s", in.call.Type, in.call.BankID)
		},
	},
	{
		Code:    ReasonNoEligibleEngineers,
		Applies: func(reasonInput) bool { return true },
		Detail: func(in reasonInput) string {
			return fmt.Sprintf("%d active engineers in bank %s, none eligible", in.activeInBank(), in.call.BankID)
		},
	},
}

// classifyUnassigned derives the reason a call has no eligible engineer.
func classifyUnassigned(call model.Call, pool []model.Engineer, st *SimulatedState) (ReasonCode, string) {
	in := reasonInput{call: call, pool: pool, state: st}
	for _, r := range unassignedRules {
		if r.Applies(in) {
			return r.Code, r.Detail(in)
		}
	}
	return ReasonNoEligibleEngineers, ""
}

// strongFactor names a sub-score and how to read it.
type strongFactor struct {
	name  string
	value func(SubScores) float64
}

var strongFactors = []strongFactor{
	{factorProximity, func(s SubScores) float64 { return s.Proximity }},
	{factorPriority, func(s SubScores) float64 { return s.Priority }},
	{factorWorkload, func(s SubScores) float64 { return s.Workload }},
	{factorStock, func(s SubScores) float64 { return s.Stock }},
}

// assignmentReason lists the factors scoring above threshold.
func assignmentReason(s SubScores, threshold float64) string {
	var names []string
	for _, f := range strongFactors {
		if f.value(s) > threshold {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return bestAvailable
	}
	return "strong " + strings.Join(names, ", ")
}
