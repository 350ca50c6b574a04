package live

import "sync"

// mailbox is a thread-safe FIFO of session messages.
//
// The mailbox is unbounded so hub deliveries and timer fires never block
// on a slow refetch. The signal channel (buffered, size 1) lets the Run
// loop wait with a context.
type mailbox struct {
	mu     sync.Mutex
	msgs   []Message
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		msgs:   make([]Message, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Put adds a message to the back of the mailbox.
// Returns false if the mailbox is closed.
func (m *mailbox) Put(msg Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.msgs = append(m.msgs, msg)

	// Non-blocking: the buffer of 1 coalesces wakeups.
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// TryTake removes the front message without blocking.
func (m *mailbox) TryTake() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.msgs) == 0 {
		return Message{}, false
	}
	msg := m.msgs[0]
	// Release the slot so closures held by the message can be collected.
	m.msgs[0] = Message{}
	if len(m.msgs) == 1 {
		m.msgs = m.msgs[:0]
	} else {
		m.msgs = m.msgs[1:]
	}
	return msg, true
}

// Wait returns a channel that signals when messages may be available.
// It is closed when the mailbox closes.
func (m *mailbox) Wait() <-chan struct{} {
	return m.signal
}

// Len returns the number of queued messages.
func (m *mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// Close stops accepting messages and wakes any waiter.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.signal)
}

// Closed reports whether Close was called.
func (m *mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
