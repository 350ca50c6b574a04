package live

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/multierr"
)

// Session owns the live assignments of one client.
//
// Thread-safety model:
//   - Read, Keys, Entry, Enqueue, Pending: safe from any goroutine
//   - KeepLive, HandleLive, ChangePage, Connect, Drain: must not run
//     concurrently with each other or with Run. Interactive callers go
//     through Do, which runs them on the loop.
type Session struct {
	id        string
	clock     clock.Clock
	transport Transport
	scheduler Scheduler
	logger    *slog.Logger
	gens      generations
	connected atomic.Bool
	inbox     *mailbox

	mu        sync.RWMutex
	assigns   map[string]Result
	registry  map[string]*Entry
	deferred  map[string]registration
	topics    map[string]func()
	intervals map[string]func()
}

// registration is a KeepLive call held back until the session connects.
type registration struct {
	callback Callback
	options  Options
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	clock       clock.Clock
	transport   Transport
	scheduler   Scheduler
	logger      *slog.Logger
	interactive bool
	ids         IDGenerator
}

// WithClock sets the time source. Defaults to clock.WallClock.
func WithClock(c clock.Clock) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.clock = c
	}
}

// WithTransport sets the pub/sub transport used while connected.
func WithTransport(t Transport) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.transport = t
	}
}

// WithScheduler replaces the default ClockScheduler.
func WithScheduler(s Scheduler) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.scheduler = s
	}
}

// WithLogger sets the parent logger. The session adds its id.
func WithLogger(l *slog.Logger) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.logger = l
	}
}

// Interactive starts the session connected.
func Interactive() SessionOption {
	return func(cfg *sessionConfig) {
		cfg.interactive = true
	}
}

// WithIDGenerator sets the session id generator. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.ids = g
	}
}

// NewSession creates a session with an empty registry.
func NewSession(opts ...SessionOption) *Session {
	cfg := sessionConfig{
		clock:  clock.WallClock,
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		id:        cfg.ids.Generate(),
		clock:     cfg.clock,
		transport: cfg.transport,
		inbox:     newMailbox(),
		assigns:   make(map[string]Result),
		registry:  make(map[string]*Entry),
		deferred:  make(map[string]registration),
		topics:    make(map[string]func()),
		intervals: make(map[string]func()),
	}
	s.logger = cfg.logger.With("session", s.id)
	s.scheduler = cfg.scheduler
	if s.scheduler == nil {
		s.scheduler = NewClockScheduler(cfg.clock, func(m Message) { s.Enqueue(m) })
	}
	s.connected.Store(cfg.interactive)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Connected reports whether the session is interactively connected.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Now returns the session clock's current time.
func (s *Session) Now() time.Time {
	return s.clock.Now()
}

// Assign sets the value displayed under key without touching the registry.
func (s *Session) Assign(key string, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigns[key] = r
}

// Read returns the value displayed under key.
func (s *Session) Read(key string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.assigns[key]
	return r, ok
}

// Keys returns the registered assignment keys, sorted.
func (s *Session) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.registry))
	for k := range s.registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Topics returns the topics the session is subscribed to, sorted.
func (s *Session) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Subscribed reports whether the session receives topic.
func (s *Session) Subscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[topic]
	return ok
}

// Enqueue adds msg to the session mailbox.
// Returns false once the session is closed.
func (s *Session) Enqueue(msg Message) bool {
	return s.inbox.Put(msg)
}

// Pending returns the number of queued messages.
func (s *Session) Pending() int {
	return s.inbox.Len()
}

// Connect marks the session interactive. Topics subscribed in-process are
// moved onto the transport, and deferred registrations run now.
func (s *Session) Connect(ctx context.Context) error {
	if s.connected.Swap(true) {
		return nil
	}
	s.logger.Info("session connected")

	var errs error
	for _, topic := range s.Topics() {
		errs = multierr.Append(errs, s.attach(topic))
	}

	s.mu.Lock()
	pending := make(map[string]registration, len(s.deferred))
	for k, r := range s.deferred {
		pending[k] = r
	}
	s.mu.Unlock()

	keys := make([]string, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		r := pending[k]
		errs = multierr.Append(errs, s.KeepLive(ctx, k, r.callback, r.options))
	}
	return errs
}

// Deliver handles a topic received in-process. Topics the session is
// not subscribed to are ignored.
func (s *Session) Deliver(ctx context.Context, topic string) error {
	if !s.Subscribed(topic) {
		return nil
	}
	return s.HandleLive(ctx, Topic(topic), s.Keys(), nil)
}

// Run processes mailbox messages until ctx is cancelled or the session is
// closed. Must be called from exactly one goroutine.
//
// A failing message is logged and the loop continues; the registry keeps
// its last good state for the failed key.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session loop starting")

	for {
		if msg, ok := s.inbox.TryTake(); ok {
			if err := s.process(ctx, msg); err != nil && msg.reply == nil {
				s.logger.Error("live message failed",
					"signal", msg.Signal.String(),
					"keys", msg.Keys,
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("session loop stopping: context cancelled")
			return ctx.Err()
		case <-s.inbox.Wait():
			if s.inbox.Closed() && s.inbox.Len() == 0 {
				s.logger.Info("session loop stopping: closed")
				return nil
			}
		}
	}
}

// Drain processes every queued message on the calling goroutine and
// returns their combined errors. For sessions without a Run loop.
func (s *Session) Drain(ctx context.Context) error {
	var errs error
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		msg, ok := s.inbox.TryTake()
		if !ok {
			return errs
		}
		errs = multierr.Append(errs, s.process(ctx, msg))
	}
}

// Do runs fn on the session loop and waits for its result.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	reply := make(chan error, 1)
	if !s.Enqueue(Message{call: fn, reply: reply}) {
		return errors.New("session closed")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) process(ctx context.Context, msg Message) error {
	if msg.call != nil {
		err := msg.call(ctx)
		if msg.reply != nil {
			msg.reply <- err
		}
		return err
	}
	keys := msg.Keys
	if keys == nil {
		keys = s.Keys()
	}
	return s.HandleLive(ctx, msg.Signal, keys, msg.Meta)
}

// Close stops interval timers, drops topic subscriptions and closes the
// mailbox. Run returns once the mailbox is empty.
func (s *Session) Close() {
	s.mu.Lock()
	for k, stop := range s.intervals {
		stop()
		delete(s.intervals, k)
	}
	for t, unsub := range s.topics {
		unsub()
		delete(s.topics, t)
	}
	s.mu.Unlock()

	s.inbox.Close()
	s.logger.Info("session closed")
}

// subscribe adds topics to the session's subscription set. While
// connected they are subscribed through the transport.
func (s *Session) subscribe(topics []string) error {
	for _, t := range topics {
		if s.Subscribed(t) {
			continue
		}
		s.mu.Lock()
		s.topics[t] = func() {}
		s.mu.Unlock()

		if s.Connected() {
			if err := s.attach(t); err != nil {
				s.mu.Lock()
				delete(s.topics, t)
				s.mu.Unlock()
				return err
			}
		}
	}
	return nil
}

// attach subscribes an in-process topic through the transport.
func (s *Session) attach(topic string) error {
	if s.transport == nil {
		return nil
	}
	unsub, err := s.transport.Subscribe(topic, func(t string) {
		s.Enqueue(Message{Signal: Topic(t)})
	})
	if err != nil {
		return errors.Annotatef(err, "subscribe %q", topic)
	}

	s.mu.Lock()
	s.topics[topic] = unsub
	s.mu.Unlock()
	s.logger.Debug("topic attached", "topic", topic)
	return nil
}
