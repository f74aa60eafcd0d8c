// Package commit defines the outbound write used to persist an assignment
// decision.
package commit

import (
	"context"
	"errors"
)

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// ErrRejected is returned when the receiving side refuses the assignment.
var ErrRejected = errors.New("assignment rejected")

// Request carries one assignment decision to the external store.
type Request struct {
	CallID     string `json:"call_id"`
	EngineerID string `json:"engineer_id"`
	ActorID    string `json:"actor_id"`
	Reason     string `json:"reason"`
}

// Committer persists assignment decisions. Commit is an at-most-once write:
// callers must not retry on error. A nil error means the assignment was
// accepted.
type Committer interface {
	Commit(ctx context.Context, req Request) error
}

// Func adapts a plain function to the Committer interface.
type Func func(ctx context.Context, req Request) error

// Commit implements Committer.
func (f Func) Commit(ctx context.Context, req Request) error { return f(ctx, req) }
