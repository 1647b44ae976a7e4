package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const defaultBuffer = 16

// EventHub fans controller events out to subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type EventHub struct {
	buffer  int
	dropped atomic.Uint64

	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewEventHub() *EventHub { return NewEventHubWithBuffer(defaultBuffer) }

// NewEventHubWithBuffer sets how many events a subscriber may fall behind.
func NewEventHubWithBuffer(n int) *EventHub {
	if n <= 0 {
		n = defaultBuffer
	}
	return &EventHub{buffer: n, subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of future events. After Close it returns an
// already closed channel.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe closes ch. It is safe to call more than once.
func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Close ends every subscription.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped is the number of deliveries skipped because a subscriber was
// full.
func (h *EventHub) Dropped() uint64 {
	return h.dropped.Load()
}

// Publish marshals payload and offers it to every subscriber. A nil hub is
// a no-op.
func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event", name).Error("failed to marshal event")
		return
	}
	msg := Event{Name: name, Data: b}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.dropped.Add(1)
			logrus.WithField("event", name).Debug("subscriber is slow, dropping event")
		}
	}
}
