package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/fieldassign/core/events"
	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
	"github.com/kilianp07/fieldassign/internal/eventbus"
)

type latencySink struct {
	coremetrics.NopSink
	mu   sync.Mutex
	recs []coremetrics.CommitLatency
}

func (l *latencySink) RecordCommitLatency(recs []coremetrics.CommitLatency) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, recs...)
	return nil
}

func (l *latencySink) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recs)
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &latencySink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartEventCollector(ctx, bus, sink)
	// Subscribe happens synchronously, so publishing right away is safe.
	bus.Publish(events.BatchEvent{BatchID: "b1"})
	bus.Publish(events.CommitEvent{CallID: "c1", EngineerID: "e1", Committed: true, Latency: 20 * time.Millisecond})

	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "c1", sink.recs[0].CallID)
}
