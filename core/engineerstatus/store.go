// Package engineerstatus keeps the latest known assignment activity per engineer.
package engineerstatus

import (
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/fieldassign/core/model"
)

// LastAssignment summarises the most recent committed assignment.
type LastAssignment struct {
	CallID    string    `json:"call_id"`
	BatchID   string    `json:"batch_id"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Status captures what the engine has done for one engineer.
type Status struct {
	EngineerID     string         `json:"engineer_id"`
	BankID         string         `json:"bank_id,omitempty"`
	Region         string         `json:"region,omitempty"`
	AssignedCount  int            `json:"assigned_count"`
	LastAssignment LastAssignment `json:"last_assignment"`
}

type Filter struct {
	BankID string
	Region string
}

type Store interface {
	Set(Status)
	Get(id string) (Status, bool)
	List(Filter) []Status
	RecordAssignment(e model.Engineer, a LastAssignment)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[st.EngineerID] = st
	s.mu.Unlock()
}

func (s *MemoryStore) Get(id string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[id]
	return st, ok
}

// RecordAssignment increments the engineer's count and keeps the newest
// assignment. An older timestamp does not replace a newer one.
func (s *MemoryStore) RecordAssignment(e model.Engineer, a LastAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.data[e.ID]
	st.EngineerID = e.ID
	if e.BankID != "" {
		st.BankID = e.BankID
	}
	if e.Region != "" {
		st.Region = e.Region
	}
	st.AssignedCount++
	if a.Timestamp.After(st.LastAssignment.Timestamp) {
		st.LastAssignment = a
	}
	s.data[e.ID] = st
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.BankID != "" && st.BankID != f.BankID {
			continue
		}
		if f.Region != "" && st.Region != f.Region {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EngineerID < res[j].EngineerID })
	return res
}

// Enrich sets LastAssignedAt on the engineer when the store knows of a more
// recent assignment than the directory reported.
func (s *MemoryStore) Enrich(e *model.Engineer) {
	st, ok := s.Get(e.ID)
	if !ok || st.LastAssignment.Timestamp.IsZero() {
		return
	}
	ts := st.LastAssignment.Timestamp
	if e.LastAssignedAt == nil || ts.After(*e.LastAssignedAt) {
		e.LastAssignedAt = &ts
	}
}
