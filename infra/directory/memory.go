package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/fieldassign/core/commit"
	"github.com/kilianp07/fieldassign/core/model"
)

var (
	// ErrUnknownCall is returned when committing a call the directory does not hold.
	ErrUnknownCall = errors.New("unknown call")
	// ErrUnknownEngineer is returned when committing to an engineer the directory does not hold.
	ErrUnknownEngineer = errors.New("unknown engineer")
)

// MemoryDirectory serves calls and engineers from an in-memory snapshot.
// It also implements commit.Committer so a batch can run without an
// external system: a commit marks the call assigned, bumps the engineer's
// workload and consumes one device of stock when the call needs one.
type MemoryDirectory struct {
	mu          sync.RWMutex
	calls       map[string]model.Call
	engineers   map[string]model.Engineer
	order       []string
	assignments map[string]string // call id -> engineer id
}

// NewMemoryDirectory builds a directory from snap. The snapshot is copied.
func NewMemoryDirectory(snap Snapshot) *MemoryDirectory {
	d := &MemoryDirectory{
		calls:       make(map[string]model.Call, len(snap.Calls)),
		engineers:   make(map[string]model.Engineer, len(snap.Engineers)),
		assignments: make(map[string]string),
	}
	for _, c := range snap.Calls {
		d.calls[c.ID] = c
	}
	for _, e := range snap.Engineers {
		d.engineers[e.ID] = copyEngineer(e)
		d.order = append(d.order, e.ID)
	}
	return d
}

// FetchByIDsAndStatus returns the calls among ids whose status is in
// statuses, in the order of ids. Unknown ids are skipped.
func (d *MemoryDirectory) FetchByIDsAndStatus(ctx context.Context, ids []string, statuses []model.CallStatus) ([]model.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allowed := make(map[model.CallStatus]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[s] = struct{}{}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Call, 0, len(ids))
	for _, id := range ids {
		c, ok := d.calls[id]
		if !ok {
			continue
		}
		if _, ok := allowed[c.Status]; !ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// FetchEligiblePool returns every engineer of the given banks with the
// current workload and stock.
func (d *MemoryDirectory) FetchEligiblePool(ctx context.Context, bankIDs []string) ([]model.Engineer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	banks := make(map[string]struct{}, len(bankIDs))
	for _, b := range bankIDs {
		banks[b] = struct{}{}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Engineer, 0)
	for _, id := range d.order {
		e := d.engineers[id]
		if _, ok := banks[e.BankID]; ok {
			out = append(out, copyEngineer(e))
		}
	}
	return out, nil
}

// Commit records the assignment. Reassigning a call releases the workload
// it held on its previous engineer; consumed stock is not returned.
func (d *MemoryDirectory) Commit(ctx context.Context, req commit.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.calls[req.CallID]
	if !ok {
		return fmt.Errorf("%w: %w %s", commit.ErrRejected, ErrUnknownCall, req.CallID)
	}
	e, ok := d.engineers[req.EngineerID]
	if !ok {
		return fmt.Errorf("%w: %w %s", commit.ErrRejected, ErrUnknownEngineer, req.EngineerID)
	}
	if prev, ok := d.assignments[c.ID]; ok {
		if prev == e.ID {
			return nil
		}
		if p, ok := d.engineers[prev]; ok && p.ActiveCalls > 0 {
			p.ActiveCalls--
			d.engineers[prev] = p
		}
	}
	c.Status = model.CallAssigned
	d.calls[c.ID] = c
	e.ActiveCalls++
	if c.Type.RequiresDevice() && e.Stock[c.BankID] > 0 {
		e.Stock[c.BankID]--
	}
	d.engineers[e.ID] = e
	d.assignments[c.ID] = e.ID
	return nil
}

// AssignedTo returns the engineer a call was committed to.
func (d *MemoryDirectory) AssignedTo(callID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.assignments[callID]
	return id, ok
}

// Snapshot returns a copy of the current directory contents, calls sorted by id.
func (d *MemoryDirectory) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := Snapshot{
		Calls:     make([]model.Call, 0, len(d.calls)),
		Engineers: make([]model.Engineer, 0, len(d.engineers)),
	}
	for _, c := range d.calls {
		snap.Calls = append(snap.Calls, c)
	}
	sort.Slice(snap.Calls, func(i, j int) bool { return snap.Calls[i].ID < snap.Calls[j].ID })
	for _, id := range d.order {
		snap.Engineers = append(snap.Engineers, copyEngineer(d.engineers[id]))
	}
	return snap
}

// PendingCallIDs lists the ids of pending calls, sorted.
func (d *MemoryDirectory) PendingCallIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for id, c := range d.calls {
		if c.Status == model.CallPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func copyEngineer(e model.Engineer) model.Engineer {
	stock := make(map[string]int, len(e.Stock))
	for b, n := range e.Stock {
		stock[b] = n
	}
	e.Stock = stock
	return e
}
