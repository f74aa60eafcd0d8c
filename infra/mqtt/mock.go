package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/fieldassign/core/commit"
)

// MockCommitter is a simple committer used in tests.
type MockCommitter struct {
	Requests []commit.Request
	// FailCalls maps call ids to the error returned for them.
	FailCalls map[string]error
	// Rejected engineers refuse every assignment.
	Rejected map[string]bool
	mu       sync.Mutex
}

// NewMockCommitter creates a new MockCommitter.
func NewMockCommitter() *MockCommitter {
	return &MockCommitter{
		FailCalls: make(map[string]error),
		Rejected:  make(map[string]bool),
	}
}

// Commit records the request or returns the configured failure.
func (m *MockCommitter) Commit(_ context.Context, req commit.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if err, ok := m.FailCalls[req.CallID]; ok {
		return err
	}
	if m.Rejected[req.EngineerID] {
		return fmt.Errorf("%w: engineer %s", commit.ErrRejected, req.EngineerID)
	}
	return nil
}

// Committed returns the call ids that were accepted, in commit order.
func (m *MockCommitter) Committed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.Requests {
		if _, failed := m.FailCalls[r.CallID]; failed || m.Rejected[r.EngineerID] {
			continue
		}
		out = append(out, r.CallID)
	}
	return out
}
