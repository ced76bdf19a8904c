package notify

import (
	"context"
	"sync"

	"servex_backend/pkg/utils"
)

const defaultSubscriberCapacity = 64

// HubOption customizes Hub construction.
type HubOption func(*Hub)

// HubWithSubscriberCapacity overrides the buffered channel size per subscriber.
func HubWithSubscriberCapacity(capacity int) HubOption {
	return func(h *Hub) {
		if capacity > 0 {
			h.capacity = capacity
		}
	}
}

// Hub is an in-process broadcaster. Every subscriber gets its own bounded buffer; when a
// subscriber falls behind the incoming event is dropped for it and a warning is logged,
// so a slow viewer never blocks a write. Viewers recover by re-reading state over HTTP.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	capacity    int
}

// Subscription represents an active hub subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription and closes Events.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewHub constructs a hub with default buffering.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscribers: map[*subscriber]struct{}{},
		capacity:    defaultSubscriberCapacity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscribe registers a new listener.
func (h *Hub) Subscribe() Subscription {
	sub := &subscriber{ch: make(chan Event, h.capacity)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return Subscription{
		Events: sub.ch,
		cancel: func() { h.remove(sub) },
	}
}

// Publish never fails; full subscribers simply miss the event.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.deliver(event) {
			utils.LogWarn("Dropped event for slow subscriber", map[string]interface{}{
				"event_type": event.Type,
				"entity_id":  event.EntityID,
			})
		}
	}
	return nil
}

// SubscriberCount reports the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
	sub.close()
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// deliver reports false when the buffer was full.
func (s *subscriber) deliver(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
