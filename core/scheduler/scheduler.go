package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/core/logger"
)

// Sweep outcomes used as metric labels.
const (
	OutcomeAssigned = "assigned"
	OutcomeIdle     = "idle"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Assigner runs one assignment batch.
type Assigner interface {
	AssignCalls(ctx context.Context, req assignment.Request) (assignment.BatchResult, error)
}

// PendingLister reports the calls still waiting for an engineer.
type PendingLister interface {
	PendingCallIDs() []string
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// newTicker is replaced in tests.
var newTicker = func(d time.Duration) ticker { return realTicker{time.NewTicker(d)} }

// Scheduler sweeps pending calls into assignment batches.
type Scheduler struct {
	cfg     Config
	engine  Assigner
	pending PendingLister
	lock    Lock
	log     logger.Logger

	sweeps *prometheus.CounterVec
}

// New builds a Scheduler. A nil lock selects a MemoryLock and a nil
// registerer leaves the sweep counter unregistered.
func New(cfg Config, engine Assigner, pending PendingLister, lock Lock, reg prometheus.Registerer, log logger.Logger) (*Scheduler, error) {
	if engine == nil || pending == nil || log == nil {
		return nil, fmt.Errorf("scheduler: %w", assignment.ErrNilDependency)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if lock == nil {
		lock = NewMemoryLock(cfg.LockTTL())
	}
	s := &Scheduler{
		cfg:     cfg,
		engine:  engine,
		pending: pending,
		lock:    lock,
		log:     log,
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_sweeps_total",
			Help: "Number of scheduled sweeps by outcome",
		}, []string{"outcome"}),
	}
	if reg != nil {
		if err := reg.Register(s.sweeps); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, fmt.Errorf("register sweep metrics: %w", err)
			}
			s.sweeps = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return s, nil
}

// Run sweeps once immediately and then on every tick until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Errorf("scheduled sweep failed: %v", err)
	}
	ticker := newTicker(s.cfg.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infof("scheduler stopped")
			return nil
		case <-ticker.C():
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Errorf("scheduled sweep failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single sweep and reports its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.sweeps.WithLabelValues(OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.log.Infof("another sweep holds the lock; skipping")
		s.sweeps.WithLabelValues(OutcomeSkipped).Inc()
		return OutcomeSkipped, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Errorf("release sweep lock: %v", err)
		}
	}()

	ids := s.pending.PendingCallIDs()
	if len(ids) == 0 {
		s.sweeps.WithLabelValues(OutcomeIdle).Inc()
		return OutcomeIdle, nil
	}
	res, err := s.engine.AssignCalls(ctx, assignment.Request{
		CallIDs: ids,
		DryRun:  s.cfg.DryRun,
		ActorID: s.cfg.Actor,
	})
	if err != nil {
		s.sweeps.WithLabelValues(OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("sweep of %d calls: %w", len(ids), err)
	}
	s.log.Infof("sweep %s: %d assigned, %d unassigned", res.BatchID, res.Statistics.Assigned, res.Statistics.Unassigned)
	s.sweeps.WithLabelValues(OutcomeAssigned).Inc()
	return OutcomeAssigned, nil
}
