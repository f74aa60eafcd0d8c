package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/infra/logger"
)

type stubAssigner struct {
	mu   sync.Mutex
	reqs []assignment.Request
	err  error
}

func (s *stubAssigner) AssignCalls(_ context.Context, req assignment.Request) (assignment.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return assignment.BatchResult{}, s.err
	}
	return assignment.BatchResult{BatchID: "b", Success: true, Statistics: assignment.Statistics{Assigned: len(req.CallIDs)}}, nil
}

func (s *stubAssigner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

type stubPending []string

func (p stubPending) PendingCallIDs() []string { return p }

type stubLock struct {
	ok       bool
	err      error
	released int
}

func (l *stubLock) Acquire(context.Context) (bool, error) { return l.ok, l.err }
func (l *stubLock) Release(context.Context) error         { l.released++; return nil }

type mockLock struct{ mock.Mock }

func (m *mockLock) Acquire(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockLock) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type manualTicker struct{ ch chan time.Time }

func (t manualTicker) C() <-chan time.Time { return t.ch }
func (t manualTicker) Stop()               {}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, stubPending{}, nil, nil, logger.NopLogger{})
	assert.ErrorIs(t, err, assignment.ErrNilDependency)

	_, err = New(Config{Lock: "etcd"}, &stubAssigner{}, stubPending{}, nil, nil, logger.NopLogger{})
	assert.Error(t, err)
}

func TestRunOnce_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		pending  stubPending
		lock     *stubLock
		engErr   error
		want     string
		wantErr  bool
		wantReqs int
	}{
		{name: "assigned", pending: stubPending{"c1", "c2"}, lock: &stubLock{ok: true}, want: OutcomeAssigned, wantReqs: 1},
		{name: "idle", pending: nil, lock: &stubLock{ok: true}, want: OutcomeIdle},
		{name: "locked elsewhere", pending: stubPending{"c1"}, lock: &stubLock{}, want: OutcomeSkipped},
		{name: "lock error", pending: stubPending{"c1"}, lock: &stubLock{err: errors.New("down")}, want: OutcomeFailed, wantErr: true},
		{name: "engine error", pending: stubPending{"c1"}, lock: &stubLock{ok: true}, engErr: assignment.ErrDirectory, want: OutcomeFailed, wantErr: true, wantReqs: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &stubAssigner{err: tt.engErr}
			reg := prometheus.NewRegistry()
			s, err := New(Config{DryRun: true}, eng, tt.pending, tt.lock, reg, logger.NopLogger{})
			require.NoError(t, err)

			got, err := s.RunOnce(context.Background())
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantReqs, eng.count())
			assert.Equal(t, 1.0, testutil.ToFloat64(s.sweeps.WithLabelValues(tt.want)))
			if tt.lock.ok {
				assert.Equal(t, 1, tt.lock.released)
			} else {
				assert.Zero(t, tt.lock.released)
			}
		})
	}
}

func TestRunOnce_RequestUsesConfig(t *testing.T) {
	eng := &stubAssigner{}
	s, err := New(Config{DryRun: true, Actor: "night-shift"}, eng, stubPending{"c1"}, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, eng.reqs, 1)
	assert.True(t, eng.reqs[0].DryRun)
	assert.Equal(t, "night-shift", eng.reqs[0].ActorID)
	assert.Equal(t, []string{"c1"}, eng.reqs[0].CallIDs)
}

func TestRun_SweepsOnTickUntilCanceled(t *testing.T) {
	tick := manualTicker{ch: make(chan time.Time)}
	orig := newTicker
	newTicker = func(time.Duration) ticker { return tick }
	t.Cleanup(func() { newTicker = orig })

	eng := &stubAssigner{}
	s, err := New(Config{}, eng, stubPending{"c1"}, nil, nil, logger.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	tick.ch <- time.Now()
	tick.ch <- time.Now()
	cancel()
	require.NoError(t, <-done)
	// the initial sweep plus one per tick
	assert.Equal(t, 3, eng.count())
}

func TestMemoryLock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLock(time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := l.Acquire(ctx)
	assert.True(t, ok)
	ok, _ = l.Acquire(ctx)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = l.Acquire(ctx)
	assert.True(t, ok, "expired lock is taken over")

	require.NoError(t, l.Release(ctx))
	ok, _ = l.Acquire(ctx)
	assert.True(t, ok)
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, time.Minute, c.Interval())
	assert.Equal(t, 5*time.Minute, c.LockTTL())
	assert.Equal(t, LockMemory, c.Lock)
}

func TestRunOnce_ReleasesAfterCanceledSweep(t *testing.T) {
	lock := &mockLock{}
	lock.On("Acquire", mock.Anything).Return(true, nil).Once()
	lock.On("Release", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })).
		Return(errors.New("gone")).Once()

	eng := &stubAssigner{err: context.Canceled}
	s, err := New(Config{}, eng, stubPending{"c1"}, lock, nil, logger.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := s.RunOnce(ctx)
	assert.Equal(t, OutcomeFailed, got)
	assert.ErrorIs(t, err, context.Canceled)
	lock.AssertExpectations(t)
}
