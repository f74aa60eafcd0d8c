package test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/core/scheduler"
	"github.com/kilianp07/fieldassign/infra/logger"
	"github.com/kilianp07/fieldassign/infra/redis"
	"github.com/kilianp07/fieldassign/test/util"
)

type countingAssigner struct{ calls int }

func (c *countingAssigner) AssignCalls(context.Context, assignment.Request) (assignment.BatchResult, error) {
	c.calls++
	return assignment.BatchResult{Success: true}, nil
}

type fixedPending []string

func (p fixedPending) PendingCallIDs() []string { return p }

func TestRedisLock_SerialisesSchedulers(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()
	addr, cleanup, err := util.StartRedis(ctx)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer cleanup()

	client, err := redis.New(ctx, redis.Config{Address: addr})
	require.NoError(t, err)
	defer client.Close()

	lockA, err := redis.NewLock(client, "fieldassign:test-sweep", time.Minute)
	require.NoError(t, err)
	lockB, err := redis.NewLock(client, "fieldassign:test-sweep", time.Minute)
	require.NoError(t, err)

	// instance A holds the lock while B tries to sweep
	ok, err := lockA.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	eng := &countingAssigner{}
	b, err := scheduler.New(scheduler.Config{}, eng, fixedPending{"c1"}, lockB, nil, logger.NopLogger{})
	require.NoError(t, err)

	outcome, err := b.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, scheduler.OutcomeSkipped, outcome)
	assert.Zero(t, eng.calls)

	require.NoError(t, lockA.Release(ctx))
	outcome, err = b.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, scheduler.OutcomeAssigned, outcome)
	assert.Equal(t, 1, eng.calls)

	// B released after its sweep
	ok, err = lockA.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
