package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"todoflow/pkg/metrics"
)

// Bus is the in-process backend: Publish records the event and invokes
// every handler registered for its type, in subscription order, before
// returning. Delivery is at-most-once: a handler that fails simply loses
// its event; there is no retry and no effect on the other handlers.
type Bus struct {
	log zerolog.Logger

	mu       sync.Mutex
	handlers map[Type][]Handler
	buffer   []Event
	watchers map[chan Event]struct{}
}

// NewBus creates a Bus with the declared event types registered up front.
func NewBus(logger zerolog.Logger) *Bus {
	handlers := make(map[Type][]Handler, len(Types))
	for _, t := range Types {
		handlers[t] = nil
	}
	return &Bus{
		log:      logger,
		handlers: handlers,
		watchers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a handler for one event type, creating the type's
// handler set if it has not been seen before.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()
	b.log.Debug().Str("type", string(t)).Msg("handler subscribed")
}

// Publish appends the event to the bus's buffer and dispatches it
// synchronously. Handler errors and panics are caught and logged per
// handler; Publish never fails because a handler did.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.Lock()
	b.buffer = append(b.buffer, e)
	handlers := append([]Handler(nil), b.handlers[e.Type]...)
	b.mu.Unlock()

	b.log.Info().Str("type", string(e.Type)).Str("event_id", e.ID).Msg("event published")
	metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()

	for _, h := range handlers {
		if err := dispatch(ctx, h, e.clone()); err != nil {
			b.log.Error().Err(err).Str("type", string(e.Type)).Str("event_id", e.ID).Msg("handler error")
			metrics.HandlerFailures.WithLabelValues(string(e.Type)).Inc()
		}
	}

	b.mu.Lock()
	for ch := range b.watchers {
		select {
		case ch <- e.clone():
		default:
			// watcher is behind; drop to avoid blocking Publish
		}
	}
	b.mu.Unlock()
}

// dispatch invokes a handler with panic containment. A panicking handler
// loses its event, nothing more.
func dispatch(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, e)
}

// Events returns a snapshot of buffered events, filtered by type when t
// is non-empty. Ordering follows publish order.
func (b *Bus) Events(t Type) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, len(b.buffer))
	for _, e := range b.buffer {
		if t != "" && e.Type != t {
			continue
		}
		out = append(out, e.clone())
	}
	return out
}

// Watch returns a buffered channel receiving every subsequently published
// event, regardless of type. Used by the live event stream.
func (b *Bus) Watch() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unwatch removes a watcher and closes its channel.
func (b *Bus) Unwatch(ch chan Event) {
	b.mu.Lock()
	delete(b.watchers, ch)
	b.mu.Unlock()
	close(ch)
}

// Close implements Publisher. The in-process bus holds no resources.
func (b *Bus) Close() error { return nil }
