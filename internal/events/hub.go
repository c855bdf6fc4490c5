// Package events fans view changes out to server-sent event subscribers.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is a single view change pushed to browsers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Marshal encodes the event payload for the SSE data line.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Hub delivers each published event to every subscriber. A subscriber whose
// buffer is full misses the event rather than blocking the publisher.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	buffer  int
	closed  bool
	onCount func(n int)
}

// NewHub returns a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// OnSubscriberCount registers a callback invoked with the subscriber count
// whenever it changes.
func (h *Hub) OnSubscriberCount(fn func(n int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCount = fn
}

// Subscribe returns a channel of events and a function that ends the
// subscription. The channel is closed when the subscription ends.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.notifyLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
				h.notifyLocked()
			}
		})
	}
}

// Publish sends e to all subscribers without blocking.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("Dropping event for slow subscriber", "type", e.Type)
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
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
	h.notifyLocked()
}

func (h *Hub) notifyLocked() {
	if h.onCount != nil {
		h.onCount(len(h.subs))
	}
}
