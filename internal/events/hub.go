// Package events fans matcher events out to live subscribers (websocket
// clients). Slow subscribers lose events instead of stalling the publisher.
package events

import (
	"sync"
	"time"
)

// Event types published by the server.
const (
	TypeDonationMatched = "donation.matched"
	TypeSessionCreated  = "session.created"
	TypeSessionCleared  = "session.cleared"
)

// Event is one message on the live stream.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// New returns an Event of type typ stamped with the current time in ms.
func New(typ string, data any) Event {
	return Event{Type: typ, Data: data, Timestamp: time.Now().UnixMilli()}
}

// Hub is a broadcast fan-out. The zero value is not usable; use NewHub.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewHub returns a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[chan Event]struct{}{}, buffer: buffer}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer and
// returns how many received it.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for ch := range h.subs {
		select {
		case ch <- ev:
			n++
		default:
		}
	}
	return n
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
