package events

import (
	"log"
	"sync"
)

// Hub fans events out to live subscribers over buffered channels. A
// subscriber that falls behind has events dropped rather than stalling the
// settlement path.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

const subscriberBuffer = 64

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Emit delivers the event to every subscriber without blocking.
func (h *Hub) Emit(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			log.Printf("WARNING: Dropping %s event for slow event feed subscriber", event.Type)
		}
	}
}
