package assignment

import (
	"time"

	"github.com/kilianp07/fieldassign/core/model"
)

// SimulatedState tracks workload and stock as decisions are taken inside a
// batch. It is seeded from the directory snapshot and never persisted.
type SimulatedState struct {
	workload     map[string]int
	stock        map[string]map[string]int
	lastAssigned map[string]time.Time
}

// NewSimulatedState seeds a state from the engineers' current counters.
func NewSimulatedState(engineers []model.Engineer) *SimulatedState {
	s := &SimulatedState{
		workload:     make(map[string]int, len(engineers)),
		stock:        make(map[string]map[string]int, len(engineers)),
		lastAssigned: make(map[string]time.Time),
	}
	for _, e := range engineers {
		s.workload[e.ID] = e.ActiveCalls
		banks := make(map[string]int, len(e.Stock))
		for b, n := range e.Stock {
			banks[b] = n
		}
		s.stock[e.ID] = banks
		if e.LastAssignedAt != nil {
			s.lastAssigned[e.ID] = *e.LastAssignedAt
		}
	}
	return s
}

// Clone returns an independent copy.
func (s *SimulatedState) Clone() *SimulatedState {
	c := &SimulatedState{
		workload:     make(map[string]int, len(s.workload)),
		stock:        make(map[string]map[string]int, len(s.stock)),
		lastAssigned: make(map[string]time.Time, len(s.lastAssigned)),
	}
	for k, v := range s.workload {
		c.workload[k] = v
	}
	for k, banks := range s.stock {
		m := make(map[string]int, len(banks))
		for b, n := range banks {
			m[b] = n
		}
		c.stock[k] = m
	}
	for k, v := range s.lastAssigned {
		c.lastAssigned[k] = v
	}
	return c
}

// Workload returns the simulated active-call count.
func (s *SimulatedState) Workload(engineerID string) int {
	return s.workload[engineerID]
}

// Stock returns the simulated devices held by the engineer for bankID.
func (s *SimulatedState) Stock(engineerID, bankID string) int {
	return s.stock[engineerID][bankID]
}

// LastAssigned returns the most recent assignment time known for the engineer.
func (s *SimulatedState) LastAssigned(engineerID string) (time.Time, bool) {
	t, ok := s.lastAssigned[engineerID]
	return t, ok
}

// BankStock sums the simulated stock of bankID across the given engineers.
func (s *SimulatedState) BankStock(engineers []model.Engineer, bankID string) int {
	total := 0
	for _, e := range engineers {
		if e.BankID == bankID {
			total += s.Stock(e.ID, bankID)
		}
	}
	return total
}

// Apply records call as assigned to engineerID at the given time and returns
// the engineer's remaining stock for the call's bank.
func (s *SimulatedState) Apply(call model.Call, engineerID string, at time.Time) int {
	s.workload[engineerID]++
	s.lastAssigned[engineerID] = at
	banks := s.stock[engineerID]
	if banks == nil {
		banks = map[string]int{}
		s.stock[engineerID] = banks
	}
	if call.Type.RequiresDevice() && banks[call.BankID] > 0 {
		banks[call.BankID]--
	}
	return banks[call.BankID]
}
