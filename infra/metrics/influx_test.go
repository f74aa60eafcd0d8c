package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestInfluxSink_RecordAssignments(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer func() { _ = sink.Close() }()
	now := time.Now()
	km := 12.34567
	err := sink.RecordAssignments([]coremetrics.AssignmentRecord{{
		BatchID:    "b1",
		CallID:     "c1",
		CallType:   "install",
		Priority:   "high",
		BankID:     "bank-a",
		EngineerID: "e1",
		Score:      81.23456,
		DistanceKM: &km,
		Committed:  true,
		Time:       now,
	}})
	require.NoError(t, err)

	p := write.NewPointWithMeasurement("assignment").
		AddTag("batch_id", "b1").
		AddTag("engineer_id", "e1").
		AddTag("call_type", "install").
		AddTag("priority", "high").
		AddTag("dry_run", "false").
		AddField("call_id", "c1").
		AddField("score", 81.235).
		AddField("committed", true).
		SetTime(now).
		AddTag("bank_id", "bank-a").
		AddField("distance_km", 12.346)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	require.Len(t, rec.bodies, 1)
	assert.Equal(t, expected, rec.bodies[0])
}

func TestInfluxSink_RecordBatch(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer func() { _ = sink.Close() }()
	require.NoError(t, sink.RecordBatch(coremetrics.BatchSummary{
		BatchID: "b1", TotalCalls: 3, Assigned: 2, Unassigned: 1, Time: time.Now(),
	}))
	require.Len(t, rec.bodies, 1)
	assert.Contains(t, rec.bodies[0], "assignment_batch,batch_id=b1,dry_run=false")
	assert.Contains(t, rec.bodies[0], "assigned=2i")
}

func TestInfluxSink_RecordUnassigned(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer func() { _ = sink.Close() }()
	require.NoError(t, sink.RecordUnassigned([]coremetrics.UnassignedRecord{
		{BatchID: "b1", CallID: "c1", Reason: "no_eligible_engineers", Time: time.Now()},
		{BatchID: "b1", CallID: "c2", Reason: "call_not_pending", Time: time.Now()},
	}))
	require.Len(t, rec.bodies, 2)
	assert.Contains(t, rec.bodies[1], "reason=call_not_pending")
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
