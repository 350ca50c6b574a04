package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
)

// Hub publishes bare topic notifications. It satisfies the store's
// Notifier and the live session's Transport.
type Hub struct {
	hub    *pubsub.SimpleHub
	logger *slog.Logger

	mu      sync.Mutex
	counts  map[string]int
	subs    map[string]int
	pending int
	idle    chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger used for publish and subscribe events.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	idle := make(chan struct{})
	close(idle)
	h := &Hub{
		hub:    pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{}),
		logger: slog.Default(),
		counts: make(map[string]int),
		subs:   make(map[string]int),
		idle:   idle,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Notify publishes topic. Writers call it after every committed change.
func (h *Hub) Notify(topic string) {
	h.Publish(topic)
}

// Publish delivers topic to every current subscriber of it. Delivery is
// asynchronous; Settle waits for it.
func (h *Hub) Publish(topic string) {
	h.mu.Lock()
	h.counts[topic]++
	h.begin(h.subs[topic])
	h.mu.Unlock()

	h.logger.Debug("topic published", "topic", topic)
	_ = h.hub.Publish(topic, nil)
}

// Subscribe calls deliver with the topic for every publish of it until the
// returned unsubscribe function is called.
func (h *Hub) Subscribe(topic string, deliver func(topic string)) (func(), error) {
	if topic == "" {
		return nil, errors.NotValidf("empty topic")
	}
	if deliver == nil {
		return nil, errors.NotValidf("nil deliver func for topic %q", topic)
	}

	h.mu.Lock()
	h.subs[topic]++
	h.mu.Unlock()

	unsub := h.hub.Subscribe(topic, func(t string, _ interface{}) {
		defer h.done()
		deliver(t)
	})
	h.logger.Debug("topic subscribed", "topic", topic)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			h.mu.Lock()
			h.subs[topic]--
			h.mu.Unlock()
		})
	}, nil
}

// Published returns how many times topic has been published.
func (h *Hub) Published(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[topic]
}

// Settle blocks until every delivery started by Publish has returned.
// Deliveries to a subscriber that unsubscribes mid-flight may never
// complete, so callers bound the wait with ctx.
func (h *Hub) Settle(ctx context.Context) error {
	h.mu.Lock()
	idle := h.idle
	h.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin records n deliveries in flight. Caller holds mu.
func (h *Hub) begin(n int) {
	if n <= 0 {
		return
	}
	if h.pending == 0 {
		h.idle = make(chan struct{})
	}
	h.pending += n
}

func (h *Hub) done() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == 0 {
		return
	}
	h.pending--
	if h.pending == 0 {
		close(h.idle)
	}
}
