package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/fieldassign/core/model"
)

func TestEligibilityFilter(t *testing.T) {
	other := activeEngineer("other-bank", "b2", 0, 5)
	inactive := activeEngineer("inactive", "b1", 0, 5)
	inactive.Status = model.EngineerInactive
	empty := activeEngineer("empty", "b1", 0, 0)
	ok := activeEngineer("ok", "b1", 0, 2)
	busy := activeEngineer("busy", "b1", 10, 2)
	pool := []model.Engineer{other, inactive, empty, ok, busy}
	st := NewSimulatedState(pool)

	f := EligibilityFilter{MaxCallsPerEngineer: 10}

	install := pendingCall("c1", "b1", model.CallInstall, model.PriorityHigh)
	got := ids(f.Filter(install, pool, st))
	assert.Equal(t, []string{"ok", "busy"}, got)

	visit := pendingCall("c2", "b1", model.CallOther, model.PriorityHigh)
	assert.Equal(t, []string{"empty", "ok", "busy"}, ids(f.Filter(visit, pool, st)))

	f.EnforceWorkloadCap = true
	assert.Equal(t, []string{"empty", "ok"}, ids(f.Filter(visit, pool, st)))
}

func TestEligibilityFilter_UsesSimulatedStock(t *testing.T) {
	e := activeEngineer("e1", "b1", 0, 1)
	st := NewSimulatedState([]model.Engineer{e})
	call := pendingCall("c1", "b1", model.CallSwap, model.PriorityLow)
	f := EligibilityFilter{}

	assert.True(t, f.Eligible(call, e, st))
	st.Apply(call, "e1", testNow)
	assert.False(t, f.Eligible(call, e, st))
}

func ids(es []model.Engineer) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}
