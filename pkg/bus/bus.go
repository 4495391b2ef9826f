// Package bus delivers admitted readings to subscribers. Subscriber
// failures are contained: an error or panic in one callback is logged
// and never reaches the poll cycle or other subscribers.
package bus

import (
	"log/slog"
	"sync"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Publication is one admitted reading delivered to subscribers.
type Publication struct {
	SourceID string
	Reading  metrics.Reading
}

// Subscriber consumes publications. Returning an error does not stop
// delivery; it is logged and the next subscriber still runs.
type Subscriber func(Publication) error

// Bus fans publications out to registered subscribers in registration
// order. It is safe for concurrent use, though publications for a given
// source arrive in poll order because the coordinator is the only
// publisher.
type Bus struct {
	log *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id   int
	name string
	fn   Subscriber
}

// New creates an empty bus. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log}
}

// Subscribe registers fn under a name used in failure logs. The
// returned func removes the subscription; calling it twice is harmless.
func (b *Bus) Subscribe(name string, fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, name: name, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers p to every subscriber. Errors and panics are caught
// and logged per subscriber.
func (b *Bus) Publish(p Publication) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, p)
	}
}

func (b *Bus) deliver(s subscription, p Publication) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked",
				"subscriber", s.name,
				"source", p.SourceID,
				"panic", r)
		}
	}()
	if err := s.fn(p); err != nil {
		b.log.Warn("subscriber failed",
			"subscriber", s.name,
			"source", p.SourceID,
			"error", err)
	}
}

// Channel subscribes a buffered channel of the given size and returns
// it with an unsubscribe func. When the buffer is full the publication
// is dropped rather than blocking the poll cycle; drops are logged.
func (b *Bus) Channel(name string, size int) (<-chan Publication, func()) {
	ch := make(chan Publication, size)
	unsub := b.Subscribe(name, func(p Publication) error {
		select {
		case ch <- p:
		default:
			b.log.Warn("dropping publication, channel full",
				"subscriber", name,
				"source", p.SourceID)
		}
		return nil
	})
	return ch, unsub
}
