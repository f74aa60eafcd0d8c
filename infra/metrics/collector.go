package metrics

import (
	"context"

	"github.com/kilianp07/fieldassign/core/events"
	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
	"github.com/kilianp07/fieldassign/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records commit latency
// for every CommitEvent. It stops when the context is canceled or the bus closes.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.LatencyRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.CommitEvent); ok {
					_ = rec.RecordCommitLatency([]coremetrics.CommitLatency{{
						CallID:     e.CallID,
						EngineerID: e.EngineerID,
						Committed:  e.Committed,
						Latency:    e.Latency,
					}})
				}
			}
		}
	}()
}
