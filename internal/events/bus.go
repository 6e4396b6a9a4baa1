package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(event *Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers by type
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]subscription
	nextID uint64
	log    zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]subscription),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers handler for the given event types (all types when none
// are given) and returns a function that removes the subscription.
func (b *Bus) Subscribe(handler Handler, types ...EventType) (unsubscribe func()) {
	if len(types) == 0 {
		types = AllEventTypes
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range types {
		b.subs[t] = append(b.subs[t], subscription{id: id, handler: handler})
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, t := range types {
				list := b.subs[t]
				for i, s := range list {
					if s.id == id {
						b.subs[t] = append(list[:i:i], list[i+1:]...)
						break
					}
				}
			}
		})
	}
}

// Publish delivers data to every subscriber of its event type.
// A panicking handler is logged and does not affect other subscribers.
func (b *Bus) Publish(module string, data EventData) {
	if b == nil || data == nil {
		return
	}

	event := &Event{
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Type]))
	for _, s := range b.subs[event.Type] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, event)
	}

	b.log.Debug().
		Str("type", string(event.Type)).
		Str("module", module).
		Int("subscribers", len(handlers)).
		Msg("Event published")
}

func (b *Bus) deliver(h Handler, event *Event) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error().
				Interface("panic", p).
				Str("type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	h(event)
}

// SubscriberCount returns the number of handlers subscribed to t
func (b *Bus) SubscriberCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}
