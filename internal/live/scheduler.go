package live

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// Scheduler delivers messages to the session later.
type Scheduler interface {
	// SendAfter delivers msg once, after d.
	SendAfter(d time.Duration, msg Message)
	// SendInterval delivers msg every d until stop is called.
	SendInterval(d time.Duration, msg Message) (stop func())
}

// Transport subscribes a session to published topics.
type Transport interface {
	Subscribe(topic string, deliver func(topic string)) (unsubscribe func(), err error)
}

// ClockScheduler is a Scheduler on a juju clock. Fired messages are passed
// to deliver from the clock's timer goroutine.
type ClockScheduler struct {
	clock   clock.Clock
	deliver func(Message)
}

// NewClockScheduler creates a scheduler that hands fired messages to deliver.
func NewClockScheduler(clk clock.Clock, deliver func(Message)) *ClockScheduler {
	return &ClockScheduler{clock: clk, deliver: deliver}
}

// SendAfter implements Scheduler.
func (c *ClockScheduler) SendAfter(d time.Duration, msg Message) {
	c.clock.AfterFunc(d, func() {
		c.deliver(msg)
	})
}

// SendInterval implements Scheduler. The next tick is armed only after
// the previous one has been delivered.
func (c *ClockScheduler) SendInterval(d time.Duration, msg Message) func() {
	var (
		mu      sync.Mutex
		stopped bool
		timer   clock.Timer
	)

	var tick func()
	tick = func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		c.deliver(msg)
		timer = c.clock.AfterFunc(d, tick)
	}

	mu.Lock()
	timer = c.clock.AfterFunc(d, tick)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		stopped = true
		timer.Stop()
	}
}
