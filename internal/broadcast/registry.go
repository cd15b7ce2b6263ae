package broadcast

import (
	"log/slog"

	"leap-relay-go/internal/metrics"
)

// Subscriber is one connected endpoint. Send must not block; a subscriber that
// cannot accept msg right now returns an error and misses it.
type Subscriber interface {
	ID() string
	Send(msg []byte) error
}

// Registry is the set of connected subscribers in registration order. It is
// not safe for concurrent use and is owned by the Broadcaster goroutine.
type Registry struct {
	subscribers []Subscriber
	logger      *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Add appends sub. A subscriber with the same ID is replaced in place.
func (r *Registry) Add(sub Subscriber) {
	for i, existing := range r.subscribers {
		if existing.ID() == sub.ID() {
			r.subscribers[i] = sub
			return
		}
	}
	r.subscribers = append(r.subscribers, sub)
}

// Remove drops the subscriber with id and returns it.
func (r *Registry) Remove(id string) (Subscriber, bool) {
	for i, sub := range r.subscribers {
		if sub.ID() == id {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			return sub, true
		}
	}
	return nil, false
}

func (r *Registry) Len() int {
	return len(r.subscribers)
}

func (r *Registry) IDs() []string {
	ids := make([]string, len(r.subscribers))
	for i, sub := range r.subscribers {
		ids[i] = sub.ID()
	}
	return ids
}

// Broadcast sends msg to every subscriber. A failed send is logged and counted
// and the remaining subscribers still get the message.
func (r *Registry) Broadcast(msg []byte) (delivered, failed int) {
	for _, sub := range r.subscribers {
		if err := sub.Send(msg); err != nil {
			failed++
			metrics.BroadcasterDeliveryFailuresTotal.Inc()
			r.logger.Warn("Delivery to subscriber failed", "subscriber_id", sub.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered, failed
}

func (r *Registry) each(fn func(Subscriber)) {
	for _, sub := range r.subscribers {
		fn(sub)
	}
}
