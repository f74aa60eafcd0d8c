// Package assignments exposes the assignment engine and its decision log over HTTP.
package assignments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/core/assignment/logging"
	"github.com/kilianp07/fieldassign/core/engineerstatus"
	"github.com/kilianp07/fieldassign/core/logger"
)

const maxBodyBytes = 1 << 20

// Assigner runs one assignment batch.
type Assigner interface {
	AssignCalls(ctx context.Context, req assignment.Request) (assignment.BatchResult, error)
}

// Options configures the router.
type Options struct {
	// Token enables "Authorization: Bearer <token>" checks when non-empty.
	Token string
	// Timeout bounds a whole batch. Zero means no limit beyond the client's.
	Timeout time.Duration
	// ActorHeader names the header an actor id is read from when the body has none.
	ActorHeader string
	// Status enables GET /api/engineers/status when not nil.
	Status engineerstatus.Store
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// NewRouter mounts POST /api/assignments and, when store is not nil,
// GET /api/assignments/logs. opts.Status adds GET /api/engineers/status.
func NewRouter(engine Assigner, store logging.LogStore, opts Options, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/assignments", func(r chi.Router) {
		r.Use(bearer(opts.Token))
		r.Post("/", NewAssignHandler(engine, opts, log))
		if store != nil {
			r.Get("/logs", NewLogHandler(store))
		}
	})
	if opts.Status != nil {
		r.With(bearer(opts.Token)).Get("/api/engineers/status", NewStatusHandler(opts.Status))
	}
	return r
}

// NewStatusHandler lists what the engine has assigned per engineer,
// optionally filtered by bank_id and region.
func NewStatusHandler(store engineerstatus.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := store.List(engineerstatus.Filter{
			BankID: r.URL.Query().Get("bank_id"),
			Region: r.URL.Query().Get("region"),
		})
		writeJSON(w, http.StatusOK, entries)
	}
}

func bearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewAssignHandler decodes an assignment.Request and answers with the
// BatchResult.
func NewAssignHandler(engine Assigner, opts Options, log logger.Logger) http.HandlerFunc {
	actorHeader := opts.ActorHeader
	if actorHeader == "" {
		actorHeader = "X-Actor-ID"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req assignment.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
			return
		}
		if req.ActorID == "" {
			req.ActorID = r.Header.Get(actorHeader)
		}

		ctx := r.Context()
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		res, err := engine.AssignCalls(ctx, req)
		if err != nil {
			status, body := classify(err)
			if status >= http.StatusInternalServerError {
				log.Errorf("assign calls: %v", err)
			}
			writeJSON(w, status, body)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// classify maps engine errors onto HTTP statuses.
func classify(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}
	var verr *assignment.ValidationError
	switch {
	case errors.As(err, &verr):
		body.Field = verr.Field
		return http.StatusBadRequest, body
	case errors.Is(err, assignment.ErrEmptyCallIDs),
		errors.Is(err, assignment.ErrInvalidWeights),
		errors.Is(err, assignment.ErrInvalidRequest):
		return http.StatusBadRequest, body
	case errors.Is(err, assignment.ErrDirectory):
		return http.StatusBadGateway, body
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	case errors.Is(err, context.Canceled):
		// client went away
		return 499, body
	}
	return http.StatusInternalServerError, body
}

// NewLogHandler returns past batch records filtered by the query string:
// start, end (RFC3339), batch_id, engineer_id, call_id and dry_run.
func NewLogHandler(store logging.LogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseLogQuery(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func parseLogQuery(r *http.Request) (logging.LogQuery, error) {
	v := r.URL.Query()
	q := logging.LogQuery{
		BatchID:    v.Get("batch_id"),
		EngineerID: v.Get("engineer_id"),
		CallID:     v.Get("call_id"),
	}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errors.New("start: " + err.Error())
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errors.New("end: " + err.Error())
		}
		q.End = t
	}
	if s := v.Get("dry_run"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, errors.New("dry_run: " + err.Error())
		}
		q.DryRun = &b
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
