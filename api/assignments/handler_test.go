package assignments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/core/assignment/logging"
	"github.com/kilianp07/fieldassign/core/engineerstatus"
	"github.com/kilianp07/fieldassign/infra/logger"
)

type stubAssigner struct {
	got assignment.Request
	res assignment.BatchResult
	err error
	ctx context.Context
}

func (s *stubAssigner) AssignCalls(ctx context.Context, req assignment.Request) (assignment.BatchResult, error) {
	s.got = req
	s.ctx = ctx
	return s.res, s.err
}

func post(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/assignments/", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAssignHandler_Success(t *testing.T) {
	stub := &stubAssigner{res: assignment.BatchResult{BatchID: "b-1", Success: true, Assignments: []assignment.Assignment{}, Unassigned: []assignment.UnassignedCall{}}}
	h := NewRouter(stub, nil, Options{Timeout: time.Minute}, logger.NopLogger{})

	rr := post(t, h, `{"call_ids":["c1","c2"],"dry_run":true,"weight_overrides":{"proximity":0.4,"stock":0.15}}`, map[string]string{"X-Actor-ID": "ops"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"c1", "c2"}, stub.got.CallIDs)
	assert.True(t, stub.got.DryRun)
	assert.Equal(t, "ops", stub.got.ActorID)
	require.NotNil(t, stub.got.WeightOverrides)
	assert.Equal(t, 0.4, *stub.got.WeightOverrides.Proximity)
	assert.Nil(t, stub.got.WeightOverrides.Priority)
	_, hasDeadline := stub.ctx.Deadline()
	assert.True(t, hasDeadline)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "b-1", out["batch_id"])
	assert.Equal(t, true, out["success"])
}

func TestAssignHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		field  string
	}{
		{"bad json", `{"call_ids":`, nil, http.StatusBadRequest, ""},
		{"unknown field", `{"calls":["c1"]}`, nil, http.StatusBadRequest, ""},
		{"validation", `{"call_ids":[]}`, &assignment.ValidationError{Field: "call_ids", Err: assignment.ErrEmptyCallIDs}, http.StatusBadRequest, "call_ids"},
		{"directory", `{"call_ids":["c1"]}`, fmt.Errorf("%w: calls: boom", assignment.ErrDirectory), http.StatusBadGateway, ""},
		{"timeout", `{"call_ids":["c1"]}`, context.DeadlineExceeded, http.StatusGatewayTimeout, ""},
		{"other", `{"call_ids":["c1"]}`, fmt.Errorf("unexpected"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&stubAssigner{err: tt.err}, nil, Options{}, logger.NopLogger{})
			rr := post(t, h, tt.body, nil)
			assert.Equal(t, tt.status, rr.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.field, body.Field)
		})
	}
}

func TestRouter_Auth(t *testing.T) {
	h := NewRouter(&stubAssigner{}, nil, Options{Token: "tok"}, logger.NopLogger{})
	rr := post(t, h, `{"call_ids":["c1"]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(t, h, `{"call_ids":["c1"]}`, map[string]string{"Authorization": "Bearer tok"})
	assert.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLogHandler_Filters(t *testing.T) {
	store, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "log.jsonl"))
	require.NoError(t, err)
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(context.Background(), logging.LogRecord{
		BatchID:     "b1",
		Timestamp:   now,
		DryRun:      true,
		Assignments: []logging.AssignmentEntry{{CallID: "c1", EngineerID: "e1"}},
	}))
	require.NoError(t, store.Append(context.Background(), logging.LogRecord{
		BatchID:     "b2",
		Timestamp:   now.Add(time.Hour),
		Assignments: []logging.AssignmentEntry{{CallID: "c2", EngineerID: "e2"}},
	}))
	h := NewRouter(&stubAssigner{}, store, Options{Token: "tok"}, logger.NopLogger{})

	get := func(url string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.Header.Set("Authorization", "Bearer tok")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := get("/api/assignments/logs?engineer_id=e2")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []logging.LogRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "b2", out[0].BatchID)

	rr = get("/api/assignments/logs?dry_run=true")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "b1", out[0].BatchID)

	rr = get("/api/assignments/logs?start=" + now.Add(30*time.Minute).Format(time.RFC3339))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Len(t, out, 1)

	rr = get("/api/assignments/logs?call_id=nope")
	assert.Equal(t, "[]\n", rr.Body.String())

	assert.Equal(t, http.StatusBadRequest, get("/api/assignments/logs?start=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/assignments/logs?dry_run=maybe").Code)
}

func TestRouter_NoStoreNoLogs(t *testing.T) {
	h := NewRouter(&stubAssigner{}, nil, Options{}, logger.NopLogger{})
	req := httptest.NewRequest(http.MethodGet, "/api/assignments/logs", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotEqual(t, http.StatusOK, rr.Code)
}

func TestStatusHandler(t *testing.T) {
	status := engineerstatus.NewMemoryStore()
	status.Set(engineerstatus.Status{EngineerID: "e1", BankID: "b1", Region: "north", AssignedCount: 2})
	status.Set(engineerstatus.Status{EngineerID: "e2", BankID: "b2", Region: "south"})
	h := NewRouter(&stubAssigner{}, nil, Options{Token: "tok", Status: status}, logger.NopLogger{})

	get := func(url string, auth bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		if auth {
			req.Header.Set("Authorization", "Bearer tok")
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/engineers/status", false).Code)

	rr := get("/api/engineers/status?bank_id=b1", true)
	require.Equal(t, http.StatusOK, rr.Code)
	var out []engineerstatus.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "e1", out[0].EngineerID)
	assert.Equal(t, 2, out[0].AssignedCount)

	rr = get("/api/engineers/status?region=south", true)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "e2", out[0].EngineerID)
}
