package assignment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fieldassign/core/assignment/logging"
	"github.com/kilianp07/fieldassign/core/commit"
	"github.com/kilianp07/fieldassign/core/engineerstatus"
	"github.com/kilianp07/fieldassign/core/events"
	"github.com/kilianp07/fieldassign/core/logger"
	"github.com/kilianp07/fieldassign/core/metrics"
	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/monitoring"
	"github.com/kilianp07/fieldassign/internal/eventbus"
)

// DefaultActor is attributed to commits when the request names no actor.
const DefaultActor = "system"

// Engine validates batch requests, runs the allocator and commits the
// resulting decisions.
type Engine struct {
	cfg          Config
	calls        CallDirectory
	engineers    EngineerDirectory
	committer    commit.Committer
	allocator    Allocator
	validate     *validator.Validate
	logger       logger.Logger
	metrics      metrics.MetricsSink
	bus          eventbus.EventBus
	store        logging.LogStore
	statusStore  engineerstatus.Store
	enrichers    []EngineerEnricher
	defaultActor string
	now          func() time.Time
	mu           sync.Mutex
}

// NewEngine creates an engine. cfg is copied and completed with defaults.
// sink and bus may be nil.
func NewEngine(cfg Config, calls CallDirectory, engineers EngineerDirectory, committer commit.Committer, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Engine, error) {
	if calls == nil || engineers == nil || committer == nil || log == nil {
		return nil, fmt.Errorf("assignment: %w provided to NewEngine", ErrNilDependency)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("assignment config: %w", err)
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{
		cfg:          cfg,
		calls:        calls,
		engineers:    engineers,
		committer:    committer,
		allocator:    NewAllocator(cfg),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       log,
		metrics:      sink,
		bus:          bus,
		defaultActor: DefaultActor,
		now:          time.Now,
	}, nil
}

// SetLogStore configures the store used to persist batch logs.
func (e *Engine) SetLogStore(store logging.LogStore) {
	e.mu.Lock()
	e.store = store
	e.mu.Unlock()
}

// SetStatusStore configures the store recording committed assignments per
// engineer. A store that is also an EngineerEnricher feeds last assignment
// times back into scoring.
func (e *Engine) SetStatusStore(store engineerstatus.Store) {
	e.mu.Lock()
	e.statusStore = store
	e.mu.Unlock()
	if en, ok := store.(EngineerEnricher); ok {
		e.AddEnricher(en)
	}
}

// AddEnricher registers an enricher applied to every fetched engineer.
func (e *Engine) AddEnricher(en EngineerEnricher) {
	if en == nil {
		return
	}
	e.mu.Lock()
	e.enrichers = append(e.enrichers, en)
	e.mu.Unlock()
}

// SetDefaultActor sets the actor used when a request has none.
func (e *Engine) SetDefaultActor(actor string) {
	if actor == "" {
		return
	}
	e.mu.Lock()
	e.defaultActor = actor
	e.mu.Unlock()
}

// SetClock overrides the time source.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Close releases the log store and the event bus.
func (e *Engine) Close() error {
	e.mu.Lock()
	store := e.store
	e.store = nil
	e.mu.Unlock()
	if e.bus != nil {
		e.bus.Close()
	}
	if store != nil {
		return store.Close()
	}
	return nil
}

// AssignCalls runs one batch. A returned error means the request was
// rejected or a directory read failed and nothing was committed; per-call
// failures are reported in BatchResult.Unassigned instead.
//
// If ctx ends before the commit phase the batch is discarded and ctx's error
// returned. If it ends during the commit phase, the calls not yet committed
// are reported as validation_failed.
func (e *Engine) AssignCalls(ctx context.Context, req Request) (BatchResult, error) {
	e.mu.Lock()
	now, actorDefault := e.now, e.defaultActor
	enrichers := append([]EngineerEnricher(nil), e.enrichers...)
	e.mu.Unlock()

	start := now()
	weights, err := e.validateRequest(req)
	if err != nil {
		e.logger.Warnf("rejected assignment request: %v", err)
		return BatchResult{}, err
	}
	batchID := uuid.NewString()
	callIDs := dedupe(req.CallIDs)
	e.logger.Infow("assignment batch started", map[string]any{
		"batch_id": batchID,
		"calls":    len(callIDs),
		"dry_run":  req.DryRun,
	})
	e.publish(events.BatchEvent{BatchID: batchID, Phase: events.BatchStarted, DryRun: req.DryRun, Calls: len(callIDs)})

	calls, engineers, err := e.fetch(ctx, req, callIDs)
	if err != nil {
		e.logger.Errorf("batch %s: %v", batchID, err)
		monitoring.CaptureException(err, map[string]string{"component": "assignment", "batch_id": batchID})
		e.publish(events.BatchEvent{BatchID: batchID, Phase: events.BatchFinished, DryRun: req.DryRun, Err: err})
		return BatchResult{}, err
	}
	if missing := len(callIDs) - len(calls); missing > 0 {
		e.logger.Warnf("batch %s: %d of %d calls not found or not in an assignable status", batchID, missing, len(callIDs))
	}
	for i := range engineers {
		for _, en := range enrichers {
			en.Enrich(&engineers[i])
		}
	}
	e.logger.Debugf("batch %s: fetched %d calls and %d engineers", batchID, len(calls), len(engineers))

	var plan Plan
	if len(engineers) == 0 {
		plan = noEngineersPlan(calls)
	} else {
		plan = e.allocator.Allocate(calls, engineers, weights, NewSimulatedState(engineers), start)
	}

	if err := ctx.Err(); err != nil {
		e.logger.Warnf("batch %s discarded before commit: %v", batchID, err)
		e.publish(events.BatchEvent{BatchID: batchID, Phase: events.BatchFinished, DryRun: req.DryRun, Err: err})
		return BatchResult{}, err
	}

	actor := req.ActorID
	if actor == "" {
		actor = actorDefault
	}
	res := BatchResult{
		BatchID:     batchID,
		DryRun:      req.DryRun,
		Assignments: []Assignment{},
		Unassigned:  []UnassignedCall{},
	}
	for _, d := range plan.Decisions {
		e.publishDecision(batchID, d)
		if d.Unassigned != nil {
			res.Unassigned = append(res.Unassigned, *d.Unassigned)
			continue
		}
		a := *d.Assignment
		if req.DryRun {
			res.Assignments = append(res.Assignments, a)
			continue
		}
		if err := e.commitOne(ctx, batchID, actor, &a); err != nil {
			res.Unassigned = append(res.Unassigned, UnassignedCall{
				Call:       a.Call,
				Reason:     ReasonValidationFailed,
				Detail:     err.Error(),
				Considered: len(engineers),
				Eligible:   len(d.Candidates),
			})
			continue
		}
		res.Assignments = append(res.Assignments, a)
	}

	res.Success = true
	res.Statistics = buildStatistics(len(calls), res.Assignments, res.Unassigned, now().Sub(start))
	for _, u := range res.Unassigned {
		e.logger.Warnf("call %s unassigned: %s (%s)", u.Call.ID, u.Reason, u.Detail)
	}
	e.logger.Infow("assignment batch finished", map[string]any{
		"batch_id":    batchID,
		"assigned":    res.Statistics.Assigned,
		"unassigned":  res.Statistics.Unassigned,
		"duration_ms": res.Statistics.DurationMS,
	})
	e.record(req, weights, res, start)
	e.publish(events.BatchEvent{
		BatchID:    batchID,
		Phase:      events.BatchFinished,
		DryRun:     req.DryRun,
		Calls:      res.Statistics.TotalCalls,
		Assigned:   res.Statistics.Assigned,
		Unassigned: res.Statistics.Unassigned,
		Duration:   now().Sub(start),
	})
	return res, nil
}

// validateRequest checks the request shape and returns the effective weights.
func (e *Engine) validateRequest(req Request) (Weights, error) {
	if len(req.CallIDs) == 0 {
		return Weights{}, &ValidationError{Field: "call_ids", Err: ErrEmptyCallIDs}
	}
	if err := e.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Weights{}, &ValidationError{Field: verrs[0].Namespace(), Err: fmt.Errorf("%w: failed %q", ErrInvalidRequest, verrs[0].Tag())}
		}
		return Weights{}, &ValidationError{Field: "request", Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}
	w := e.cfg.Weights().Merge(req.WeightOverrides)
	if err := w.Validate(e.cfg.WeightTolerance); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// fetch reads the calls and the engineer pool of the banks involved. When
// the request names its banks both reads run concurrently.
func (e *Engine) fetch(ctx context.Context, req Request, ids []string) ([]model.Call, []model.Engineer, error) {
	statuses := []model.CallStatus{model.CallPending}
	if req.ForceReassign {
		statuses = append(statuses, model.CallAssigned)
	}

	if len(req.BankIDs) > 0 {
		var (
			calls     []model.Call
			engineers []model.Engineer
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			calls, err = e.calls.FetchByIDsAndStatus(gctx, ids, statuses)
			if err != nil {
				return fmt.Errorf("%w: calls: %v", ErrDirectory, err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			engineers, err = e.engineers.FetchEligiblePool(gctx, dedupe(req.BankIDs))
			if err != nil {
				return fmt.Errorf("%w: engineers: %v", ErrDirectory, err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		// bank_ids is a hint; banks it missed are read after the fact
		if missing := missingBanks(bankIDs(calls), req.BankIDs); len(missing) > 0 {
			more, err := e.engineers.FetchEligiblePool(ctx, missing)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: engineers: %v", ErrDirectory, err)
			}
			engineers = append(engineers, more...)
		}
		return calls, engineers, nil
	}

	calls, err := e.calls.FetchByIDsAndStatus(ctx, ids, statuses)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: calls: %v", ErrDirectory, err)
	}
	banks := bankIDs(calls)
	if len(banks) == 0 {
		return calls, nil, nil
	}
	engineers, err := e.engineers.FetchEligiblePool(ctx, banks)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: engineers: %v", ErrDirectory, err)
	}
	return calls, engineers, nil
}

// missingBanks returns the banks in want that are not in have.
func missingBanks(want, have []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, b := range have {
		seen[b] = struct{}{}
	}
	var out []string
	for _, b := range want {
		if _, ok := seen[b]; !ok {
			out = append(out, b)
		}
	}
	return out
}

// commitOne issues the external write for a. It never retries.
func (e *Engine) commitOne(ctx context.Context, batchID, actor string, a *Assignment) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("not committed: %w", err)
	}
	start := time.Now()
	err := e.committer.Commit(ctx, commit.Request{
		CallID:     a.Call.ID,
		EngineerID: a.Engineer.Engineer.ID,
		ActorID:    actor,
		Reason:     a.Reason,
	})
	lat := time.Since(start)
	commitLatency.Observe(lat.Seconds())
	e.publish(events.CommitEvent{
		BatchID:    batchID,
		CallID:     a.Call.ID,
		EngineerID: a.Engineer.Engineer.ID,
		Committed:  err == nil,
		Err:        err,
		Latency:    lat,
	})
	if err != nil {
		e.logger.Errorf("commit of call %s to engineer %s failed: %v", a.Call.ID, a.Engineer.Engineer.ID, err)
		monitoring.CaptureException(err, map[string]string{
			"component":   "commit",
			"batch_id":    batchID,
			"call_id":     a.Call.ID,
			"engineer_id": a.Engineer.Engineer.ID,
		})
		return err
	}
	a.Committed = true
	a.AssignedAt = e.clock()
	e.mu.Lock()
	status := e.statusStore
	e.mu.Unlock()
	if status != nil {
		status.RecordAssignment(a.Engineer.Engineer, engineerstatus.LastAssignment{
			CallID:    a.Call.ID,
			BatchID:   batchID,
			Score:     roundScore(a.Engineer.Total),
			Timestamp: a.AssignedAt,
		})
	}
	return nil
}

func (e *Engine) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now()
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) publishDecision(batchID string, d Decision) {
	if d.Assignment != nil {
		for _, c := range d.Candidates {
			e.logger.Debugw("candidate scored", map[string]any{
				"call_id":     d.Call.ID,
				"engineer_id": c.Engineer.ID,
				"total":       roundScore(c.Total),
				"proximity":   roundScore(c.Scores.Proximity),
				"priority":    roundScore(c.Scores.Priority),
				"workload":    roundScore(c.Scores.Workload),
				"stock":       roundScore(c.Scores.Stock),
			})
		}
	}
	if e.bus == nil {
		return
	}
	ev := events.DecisionEvent{BatchID: batchID, CallID: d.Call.ID}
	if d.Assignment != nil {
		ev.EngineerID = d.Assignment.Engineer.Engineer.ID
		ev.Score = d.Assignment.Engineer.Total
		ev.Reason = d.Assignment.Reason
	} else {
		ev.Reason = string(d.Unassigned.Reason)
	}
	e.bus.Publish(ev)
}

// record updates collectors, the metrics sink and the log store.
func (e *Engine) record(req Request, w Weights, res BatchResult, at time.Time) {
	stats := res.Statistics
	batchesTotal.WithLabelValues(batchMode(req.DryRun)).Inc()
	batchDuration.Observe(float64(stats.DurationMS) / 1000)
	callsTotal.WithLabelValues("assigned").Add(float64(stats.Assigned))
	callsTotal.WithLabelValues("unassigned").Add(float64(stats.Unassigned))
	for reason, n := range stats.UnassignedByReason {
		unassignedTotal.WithLabelValues(string(reason)).Add(float64(n))
	}

	recs := make([]metrics.AssignmentRecord, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		scoreHistogram.Observe(a.Engineer.Total)
		recs = append(recs, metrics.AssignmentRecord{
			BatchID:    res.BatchID,
			CallID:     a.Call.ID,
			CallType:   a.Call.Type.String(),
			Priority:   a.Call.Priority.String(),
			BankID:     a.Call.BankID,
			EngineerID: a.Engineer.Engineer.ID,
			Score:      a.Engineer.Total,
			DistanceKM: a.DistanceKM,
			DryRun:     req.DryRun,
			Committed:  a.Committed,
			Time:       a.AssignedAt,
		})
	}
	if err := e.metrics.RecordAssignments(recs); err != nil {
		e.logger.Errorf("metrics error: %v", err)
	}
	if ur, ok := e.metrics.(metrics.UnassignedRecorder); ok && len(res.Unassigned) > 0 {
		urecs := make([]metrics.UnassignedRecord, 0, len(res.Unassigned))
		for _, u := range res.Unassigned {
			urecs = append(urecs, metrics.UnassignedRecord{
				BatchID: res.BatchID,
				CallID:  u.Call.ID,
				BankID:  u.Call.BankID,
				Reason:  string(u.Reason),
				Time:    at,
			})
		}
		if err := ur.RecordUnassigned(urecs); err != nil {
			e.logger.Errorf("unassigned metrics error: %v", err)
		}
	}
	if br, ok := e.metrics.(metrics.BatchRecorder); ok {
		if err := br.RecordBatch(metrics.BatchSummary{
			BatchID:       res.BatchID,
			DryRun:        req.DryRun,
			TotalCalls:    stats.TotalCalls,
			Assigned:      stats.Assigned,
			Unassigned:    stats.Unassigned,
			AverageScore:  stats.AverageScore,
			AverageKM:     stats.AverageDistanceKM,
			EngineersUsed: stats.EngineersUsed,
			Duration:      time.Duration(stats.DurationMS) * time.Millisecond,
			Time:          at,
		}); err != nil {
			e.logger.Errorf("batch metrics error: %v", err)
		}
	}

	e.mu.Lock()
	store := e.store
	e.mu.Unlock()
	if store != nil {
		if err := store.Append(context.Background(), logRecord(req, w, res, at)); err != nil {
			e.logger.Errorf("log store error: %v", err)
		}
	}
}

func logRecord(req Request, w Weights, res BatchResult, at time.Time) logging.LogRecord {
	rec := logging.LogRecord{
		BatchID:       res.BatchID,
		Timestamp:     at,
		ActorID:       req.ActorID,
		DryRun:        req.DryRun,
		ForceReassign: req.ForceReassign,
		CallIDs:       append([]string(nil), req.CallIDs...),
		Weights:       w.Map(),
		Assignments:   make([]logging.AssignmentEntry, 0, len(res.Assignments)),
		Unassigned:    make([]logging.UnassignedEntry, 0, len(res.Unassigned)),
		Summary: logging.Summary{
			TotalCalls:        res.Statistics.TotalCalls,
			Assigned:          res.Statistics.Assigned,
			Unassigned:        res.Statistics.Unassigned,
			AverageScore:      res.Statistics.AverageScore,
			AverageDistanceKM: res.Statistics.AverageDistanceKM,
			DurationMS:        res.Statistics.DurationMS,
			EngineersUsed:     res.Statistics.EngineersUsed,
		},
	}
	for _, a := range res.Assignments {
		rec.Assignments = append(rec.Assignments, logging.AssignmentEntry{
			CallID:     a.Call.ID,
			EngineerID: a.Engineer.Engineer.ID,
			Score:      roundScore(a.Engineer.Total),
			DistanceKM: roundPtr(a.DistanceKM),
			Reason:     a.Reason,
			Committed:  a.Committed,
		})
	}
	for _, u := range res.Unassigned {
		rec.Unassigned = append(rec.Unassigned, logging.UnassignedEntry{
			CallID: u.Call.ID,
			Reason: string(u.Reason),
			Detail: u.Detail,
		})
	}
	return rec
}

// noEngineersPlan marks every call no_engineers_in_bank without scoring.
func noEngineersPlan(calls []model.Call) Plan {
	plan := Plan{Decisions: make([]Decision, 0, len(calls))}
	for _, c := range SortByPriority(calls) {
		plan.Decisions = append(plan.Decisions, Decision{
			Call: c,
			Unassigned: &UnassignedCall{
				Call:   c,
				Reason: ReasonNoEngineersInBank,
				Detail: fmt.Sprintf("no engineers returned for bank %s", c.BankID),
			},
		})
	}
	return plan
}

// buildStatistics aggregates the batch outcome. Averages are 0 without
// assignments; the distance average only covers assignments with a known
// distance.
func buildStatistics(total int, as []Assignment, us []UnassignedCall, elapsed time.Duration) Statistics {
	st := Statistics{
		TotalCalls:         total,
		Assigned:           len(as),
		Unassigned:         len(us),
		DurationMS:         elapsed.Milliseconds(),
		UnassignedByReason: make(map[ReasonCode]int),
	}
	scores := make([]float64, 0, len(as))
	dists := make([]float64, 0, len(as))
	used := make(map[string]struct{})
	for _, a := range as {
		scores = append(scores, a.Engineer.Total)
		if a.DistanceKM != nil {
			dists = append(dists, *a.DistanceKM)
		}
		used[a.Engineer.Engineer.ID] = struct{}{}
	}
	if len(scores) > 0 {
		st.AverageScore = roundScore(stat.Mean(scores, nil))
	}
	if len(dists) > 0 {
		st.AverageDistanceKM = roundScore(stat.Mean(dists, nil))
	}
	st.EngineersUsed = len(used)
	for _, u := range us {
		st.UnassignedByReason[u.Reason]++
	}
	return st
}

// bankIDs returns the distinct banks of calls in sorted order.
func bankIDs(calls []model.Call) []string {
	seen := make(map[string]struct{}, len(calls))
	var out []string
	for _, c := range calls {
		if c.BankID == "" {
			continue
		}
		if _, ok := seen[c.BankID]; ok {
			continue
		}
		seen[c.BankID] = struct{}{}
		out = append(out, c.BankID)
	}
	sort.Strings(out)
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
