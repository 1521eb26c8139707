// Package bus is the topic-based publish/subscribe fabric that decouples
// the dispatch engine from its observers. Delivery is asynchronous with a
// configurable jitter window modelling network propagation latency, so
// consumers must treat envelopes as eventually consistent snapshots rather
// than an ordered log.
package bus

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/Maaady/RidePulse/internal/observability"
)

// Envelope wraps a payload with its topic and the wall-clock publish time,
// letting consumers discard deliveries that arrive out of order.
type Envelope struct {
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives envelopes for a subscribed topic. Handlers run
// independently; a panic in one never prevents delivery to the others.
type Handler func(Envelope)

// Bus fans published envelopes out to per-topic subscribers.
type Bus struct {
	jitterMin time.Duration
	jitterMax time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	closed bool
}

// New builds a bus delivering after a uniform random delay in
// [jitterMin, jitterMax]. Pass zero for both to get a deterministic
// zero-latency bus for tests.
func New(logger *slog.Logger, jitterMin, jitterMax time.Duration) *Bus {
	if jitterMax < jitterMin {
		jitterMax = jitterMin
	}
	return &Bus{
		jitterMin: jitterMin,
		jitterMax: jitterMax,
		logger:    logger,
		subs:      make(map[string]map[uint64]Handler),
	}
}

// Subscribe registers a handler for a topic and returns the capability to
// deregister it. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if hs, ok := b.subs[topic]; ok {
			delete(hs, id)
			if len(hs) == 0 {
				delete(b.subs, topic)
			}
		}
	}
}

// Publish schedules delivery of payload to every current subscriber of
// topic. Publishing on a shut-down bus is a no-op.
func (b *Bus) Publish(topic string, payload any) {
	env := Envelope{Topic: topic, Payload: payload, Timestamp: time.Now()}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	observability.BusPublishedTotal.WithLabelValues(topic).Inc()

	for _, h := range handlers {
		go b.deliver(topic, h, env)
	}
}

func (b *Bus) deliver(topic string, h Handler, env Envelope) {
	if d := b.jitter(); d > 0 {
		time.Sleep(d)
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("bus handler panic", "topic", topic, "error", rec)
		}
	}()
	h(env)
	observability.BusDeliveredTotal.WithLabelValues(topic).Inc()
}

func (b *Bus) jitter() time.Duration {
	if b.jitterMax <= 0 {
		return 0
	}
	if b.jitterMax == b.jitterMin {
		return b.jitterMin
	}
	return b.jitterMin + time.Duration(rand.Int63n(int64(b.jitterMax-b.jitterMin)))
}

// Shutdown releases all subscriptions and turns later publishes into
// no-ops. Safe to call more than once.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string]map[uint64]Handler)
}
