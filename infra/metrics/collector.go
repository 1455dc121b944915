package metrics

import (
	"context"
	"time"

	coremetrics "github.com/kilianp07/heatsim/core/metrics"
	"github.com/kilianp07/heatsim/core/simulation"
	"github.com/kilianp07/heatsim/internal/eventbus"
)

// StartEventCollector subscribes to the batch event bus and records progress
// events. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[simulation.RunEvent], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.ProgressRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				errStr := ""
				if ev.Err != nil {
					errStr = ev.Err.Error()
				}
				_ = rec.RecordProgress(coremetrics.ProgressEvent{
					RunID:    ev.RunID,
					Scenario: ev.Scenario,
					Phase:    ev.Phase.String(),
					Steps:    ev.Steps,
					Err:      errStr,
					Time:     time.Now(),
				})
			}
		}
	}()
	return done
}
