package assignment

import "github.com/kilianp07/fieldassign/core/model"

// EligibilityFilter reduces the pool to engineers who may take a call.
type EligibilityFilter struct {
	EnforceWorkloadCap  bool
	MaxCallsPerEngineer int
}

// Eligible reports whether e may be assigned call given the simulated state.
func (f EligibilityFilter) Eligible(call model.Call, e model.Engineer, st *SimulatedState) bool {
	if e.BankID != call.BankID || !e.IsActive() {
		return false
	}
	if call.Type.RequiresDevice() && st.Stock(e.ID, call.BankID) <= 0 {
		return false
	}
	if f.EnforceWorkloadCap && f.MaxCallsPerEngineer > 0 && st.Workload(e.ID) >= f.MaxCallsPerEngineer {
		return false
	}
	return true
}

// Filter returns the eligible engineers in pool order.
func (f EligibilityFilter) Filter(call model.Call, pool []model.Engineer, st *SimulatedState) []model.Engineer {
	out := make([]model.Engineer, 0, len(pool))
	for _, e := range pool {
		if f.Eligible(call, e, st) {
			out = append(out, e)
		}
	}
	return out
}
