package feed

import (
	"context"
	"sync"
)

// Hub is an in-process feed. It backs the memory store and tests; production
// wiring uses the Redis feed.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]*Filter
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]*Filter)}
}

// Subscribe registers a subscription on table
func (h *Hub) Subscribe(ctx context.Context, table string, filter *Filter) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sub *Subscription
	sub = NewSubscription(func() { h.remove(table, sub) })

	h.mu.Lock()
	if h.subs[table] == nil {
		h.subs[table] = make(map[*Subscription]*Filter)
	}
	h.subs[table][sub] = filter
	h.mu.Unlock()

	return sub, nil
}

// Publish delivers event to every matching subscription on its table
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub, filter := range h.subs[event.Table] {
		if filter.Matches(event) {
			sub.Deliver(event)
		}
	}
	return nil
}

// SubscriberCount returns the number of open subscriptions on table
func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

func (h *Hub) remove(table string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[table], sub)
	if len(h.subs[table]) == 0 {
		delete(h.subs, table)
	}
}
