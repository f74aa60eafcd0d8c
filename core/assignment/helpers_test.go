package assignment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kilianp07/fieldassign/core/commit"
	"github.com/kilianp07/fieldassign/core/model"
)

var testNow = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

type fakeCalls struct {
	calls    []model.Call
	err      error
	statuses []model.CallStatus
	fetched  int
}

func (f *fakeCalls) FetchByIDsAndStatus(_ context.Context, ids []string, statuses []model.CallStatus) ([]model.Call, error) {
	f.fetched++
	f.statuses = statuses
	if f.err != nil {
		return nil, f.err
	}
	allowed := map[model.CallStatus]bool{}
	for _, s := range statuses {
		allowed[s] = true
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Call
	for _, c := range f.calls {
		if want[c.ID] && allowed[c.Status] {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeEngineers struct {
	engineers []model.Engineer
	err       error
	banks     []string
	fetched   int
}

func (f *fakeEngineers) FetchEligiblePool(_ context.Context, banks []string) ([]model.Engineer, error) {
	f.fetched++
	f.banks = banks
	if f.err != nil {
		return nil, f.err
	}
	want := map[string]bool{}
	for _, b := range banks {
		want[b] = true
	}
	var out []model.Engineer
	for _, e := range f.engineers {
		if want[e.BankID] {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingCommitter struct {
	mu      sync.Mutex
	reqs    []commit.Request
	failFor map[string]error
}

func (r *recordingCommitter) Commit(_ context.Context, req commit.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if err, ok := r.failFor[req.CallID]; ok {
		return err
	}
	return nil
}

func (r *recordingCommitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

var errCommit = errors.New("store refused")

func pendingCall(id, bank string, t model.CallType, p model.Priority) model.Call {
	return model.Call{ID: id, Number: "N-" + id, Type: t, Priority: p, Status: model.CallPending, BankID: bank}
}

func activeEngineer(id, bank string, active int, stock int) model.Engineer {
	return model.Engineer{
		ID:          id,
		Name:        "Engineer " + id,
		BankID:      bank,
		Status:      model.EngineerActive,
		ActiveCalls: active,
		Stock:       map[string]int{bank: stock},
	}
}

func ptr[T any](v T) *T { return &v }

func defaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}
