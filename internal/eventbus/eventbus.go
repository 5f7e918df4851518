// Package eventbus provides the in-process fan-out channel between the
// event router and observers such as the metrics collector. Delivery is
// non-blocking: a slow subscriber drops events rather than stalling a
// broadcast.
package eventbus

import (
	"sync"

	"github.com/aidline/aidline/core/model"
)

// CaseEvent mirrors a domain event emitted for a case: creation or one
// committed status transition.
type CaseEvent struct {
	Name       string
	CaseID     string
	Status     model.CaseStatus
	PrevStatus model.CaseStatus
	Severity   int
	AssignedTo string
}

// EventBus is the publish/subscribe contract for case events.
type EventBus interface {
	Publish(CaseEvent)
	Subscribe() <-chan CaseEvent
	Unsubscribe(<-chan CaseEvent)
	Close()
}

// Bus is the default EventBus implementation using fan-out channels.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan CaseEvent
	closed bool
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }

// Publish sends the event to all subscribers. Delivery is non-blocking.
func (b *Bus) Publish(e CaseEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan CaseEvent {
	ch := make(chan CaseEvent, 8)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan CaseEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
