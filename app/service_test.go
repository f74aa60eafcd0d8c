package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/config"
	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/core/assignment/logging"
	"github.com/kilianp07/fieldassign/core/factory"
	"github.com/kilianp07/fieldassign/core/model"
)

const snapshot = `
calls:
  - id: c1
    type: install
    priority: urgent
    bank_id: b1
  - id: c2
    type: other
    priority: low
    bank_id: b1
engineers:
  - id: e1
    name: Asha
    bank_id: b1
    stock:
      b1: 1
  - id: e2
    name: Ravi
    bank_id: b1
    active_calls: 3
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	snap := filepath.Join(dir, "snap.yaml")
	require.NoError(t, os.WriteFile(snap, []byte(snapshot), 0o644))
	cfg := &config.Config{
		Directory: config.DirectoryConfig{SnapshotPath: snap},
		Logging:   config.LoggingConfig{Backend: "jsonl", Path: filepath.Join(dir, "assign.log")},
		API:       config.APIConfig{Token: "tok"},
	}
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "nop"}}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNew_RequiresSnapshot(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestService_AssignOverHTTP(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	req := httptest.NewRequest(http.MethodPost, "/api/assignments/", strings.NewReader(`{"call_ids":["c1","c2"],"actor_id":"ops"}`))
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	svc.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res struct {
		BatchID     string `json:"batch_id"`
		Assignments []struct {
			Call      model.Call `json:"call"`
			Committed bool       `json:"committed"`
		} `json:"assignments"`
		Statistics assignment.Statistics `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Len(t, res.Assignments, 2)
	assert.True(t, res.Assignments[0].Committed)
	assert.Equal(t, 2, res.Statistics.Assigned)

	// committed into the snapshot directory
	id, ok := svc.Directory.AssignedTo("c1")
	require.True(t, ok)
	assert.Equal(t, "e1", id)
	assert.Empty(t, svc.Directory.PendingCallIDs())

	// a second batch sees the calls as assigned
	again, err := svc.Engine.AssignCalls(context.Background(), assignment.Request{CallIDs: []string{"c1"}})
	require.NoError(t, err)
	assert.Zero(t, again.Statistics.TotalCalls)

	store, err := logging.NewJSONLStore(cfg.Logging.Path)
	require.NoError(t, err)
	recs, err := store.Query(context.Background(), logging.LogQuery{BatchID: res.BatchID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ops", recs[0].ActorID)
}

func TestService_SchedulerSweepsPendingCalls(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Address = "127.0.0.1:0"
	cfg.Scheduler.Enabled = true
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()
	require.NotNil(t, svc.sched)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(svc.Directory.PendingCallIDs()) == 0
	}, 2*time.Second, 20*time.Millisecond)
	id, ok := svc.Directory.AssignedTo("c2")
	assert.True(t, ok)
	assert.NotEmpty(t, id)

	cancel()
	assert.NoError(t, <-done)
}

func TestService_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Address = "127.0.0.1:0"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
