package events

import (
	"sync"

	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
)

var log = logging.L("events")

// Bus is a single-process publish/subscribe bus over the three snapshot
// topics. Subscribers receive on buffered channels; Publish never blocks —
// a full subscriber channel drops the event with a warning rather than
// stalling the publisher (the storage worker, not the bus, owns backlog
// behavior).
type Bus struct {
	mu        sync.RWMutex
	captured  []chan Captured
	stored    []chan Stored
	failed    []chan Failed
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// subscriberBuffer bounds how many un-consumed events a subscriber channel
// holds before Publish starts dropping for that subscriber.
const subscriberBuffer = 64

// SubscribeCaptured registers a new captured-event subscriber.
func (b *Bus) SubscribeCaptured() <-chan Captured {
	ch := make(chan Captured, subscriberBuffer)
	b.mu.Lock()
	b.captured = append(b.captured, ch)
	b.mu.Unlock()
	return ch
}

// SubscribeStored registers a new stored-event subscriber.
func (b *Bus) SubscribeStored() <-chan Stored {
	ch := make(chan Stored, subscriberBuffer)
	b.mu.Lock()
	b.stored = append(b.stored, ch)
	b.mu.Unlock()
	return ch
}

// SubscribeFailed registers a new failed-event subscriber.
func (b *Bus) SubscribeFailed() <-chan Failed {
	ch := make(chan Failed, subscriberBuffer)
	b.mu.Lock()
	b.failed = append(b.failed, ch)
	b.mu.Unlock()
	return ch
}

// PublishCaptured fans a Captured event out to all subscribers, non-blocking.
func (b *Bus) PublishCaptured(e Captured) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.captured {
		select {
		case ch <- e:
		default:
			log.Warn("captured subscriber channel full, dropping event", "sessionId", e.SessionID)
		}
	}
}

// PublishStored fans a Stored event out to all subscribers, non-blocking.
func (b *Bus) PublishStored(e Stored) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.stored {
		select {
		case ch <- e:
		default:
			log.Warn("stored subscriber channel full, dropping event", "sessionId", e.SessionID)
		}
	}
}

// PublishFailed fans a Failed event out to all subscribers, non-blocking.
func (b *Bus) PublishFailed(e Failed) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.failed {
		select {
		case ch <- e:
		default:
			log.Warn("failed subscriber channel full, dropping event", "sessionId", e.SessionID, "stage", e.Stage)
		}
	}
}
