package metrics

import (
	"context"
	"time"

	coremetrics "github.com/aidline/aidline/core/metrics"
	"github.com/aidline/aidline/core/router"
	"github.com/aidline/aidline/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// case events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
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
				switch ev.Name {
				case router.EventCaseCreated:
					if r, ok := sink.(coremetrics.CaseCreatedRecorder); ok {
						_ = r.RecordCaseCreated(coremetrics.CaseCreatedEvent{
							CaseID:   ev.CaseID,
							Severity: ev.Severity,
							Time:     time.Now(),
						})
					}
				case router.EventStatusChanged:
					if r, ok := sink.(coremetrics.TransitionRecorder); ok {
						_ = r.RecordTransition(coremetrics.TransitionEvent{
							CaseID:   ev.CaseID,
							From:     ev.PrevStatus,
							To:       ev.Status,
							Severity: ev.Severity,
							Time:     time.Now(),
						})
					}
				}
			}
		}
	}()
}
