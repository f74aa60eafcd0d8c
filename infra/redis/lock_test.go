package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/scheduler"
)

var _ scheduler.Lock = (*Lock)(nil)

type mockCmdable struct {
	data   map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if m.setErr != nil {
		return redis.NewBoolResult(false, m.setErr)
	}
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestLock_ExclusiveAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	a, err := NewLock(client, "sweep", time.Minute)
	require.NoError(t, err)
	b, err := NewLock(client, "sweep", time.Minute)
	require.NoError(t, err)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mock.ttls["sweep"])

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b never owned the lock and must not delete a's key
	require.NoError(t, b.Release(ctx))
	assert.Contains(t, mock.data, "sweep")

	require.NoError(t, a.Release(ctx))
	assert.NotContains(t, mock.data, "sweep")

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ReleaseAfterTakeover(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	l, err := NewLock(&Client{store: mock}, "sweep", time.Minute)
	require.NoError(t, err)

	ok, _ := l.Acquire(ctx)
	require.True(t, ok)
	// the key expired and another instance took it
	mock.data["sweep"] = "someone-else"

	require.NoError(t, l.Release(ctx))
	assert.Equal(t, "someone-else", mock.data["sweep"])
}

func TestLock_Errors(t *testing.T) {
	_, err := NewLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewLock(&Client{store: newMockCmdable()}, "", time.Minute)
	assert.Error(t, err)
	_, err = NewLock(&Client{store: newMockCmdable()}, "k", 0)
	assert.Error(t, err)

	mock := newMockCmdable()
	mock.setErr = errors.New("conn refused")
	l, err := NewLock(&Client{store: mock}, "k", time.Minute)
	require.NoError(t, err)
	ok, err := l.Acquire(context.Background())
	assert.False(t, ok)
	assert.ErrorContains(t, err, "conn refused")
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(Config{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(Config{Address: "localhost:6379", DB: 2, PoolSize: 4, DialTimeoutMS: 250})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, 250*time.Millisecond, opts.DialTimeout)

	opts, err = optionsFromConfig(Config{URL: "redis://:secret@cache:6380/3", Address: "ignored:1"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = optionsFromConfig(Config{URL: "://bad"})
	assert.Error(t, err)
}
