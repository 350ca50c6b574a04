package harness

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock/testclock"
	"go.uber.org/multierr"

	"github.com/roach88/livequery/internal/live"
)

// timeline is a live.Scheduler over virtual time. Nothing fires until
// Advance, which delivers due messages in due order, moving the clock to
// each due instant first.
type timeline struct {
	clock   *testclock.Clock
	deliver func(live.Message) bool

	mu     sync.Mutex
	seq    int
	timers []*timer
}

type timer struct {
	due     time.Time
	every   time.Duration
	msg     live.Message
	seq     int
	stopped bool
}

func newTimeline(clk *testclock.Clock) *timeline {
	return &timeline{clock: clk}
}

// SendAfter delivers msg once, d from now.
func (tl *timeline) SendAfter(d time.Duration, msg live.Message) {
	tl.add(d, 0, msg)
}

// SendInterval delivers msg every d until stopped.
func (tl *timeline) SendInterval(d time.Duration, msg live.Message) func() {
	t := tl.add(d, d, msg)
	return func() {
		tl.mu.Lock()
		defer tl.mu.Unlock()
		t.stopped = true
	}
}

// Pending returns the number of armed timers.
func (tl *timeline) Pending() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	n := 0
	for _, t := range tl.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (tl *timeline) add(d, every time.Duration, msg live.Message) *timer {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.seq++
	t := &timer{due: tl.clock.Now().Add(d), every: every, msg: msg, seq: tl.seq}
	tl.timers = append(tl.timers, t)
	return t
}

// Advance moves time forward by d. After each delivery drain runs so the
// session handles the message at the instant it fired.
func (tl *timeline) Advance(ctx context.Context, d time.Duration, drain func(context.Context) error) error {
	target := tl.clock.Now().Add(d)

	var errs error
	for {
		due, msg, ok := tl.next(target)
		if !ok {
			break
		}
		tl.moveTo(due)
		tl.deliver(msg)
		errs = multierr.Append(errs, drain(ctx))
	}
	tl.moveTo(target)
	return errs
}

// next pops the earliest timer due at or before target. Interval timers
// are re-armed one period later.
func (tl *timeline) next(target time.Time) (time.Time, live.Message, bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	var best *timer
	armed := tl.timers[:0]
	for _, t := range tl.timers {
		if t.stopped {
			continue
		}
		armed = append(armed, t)
		if t.due.After(target) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	tl.timers = armed
	if best == nil {
		return time.Time{}, live.Message{}, false
	}

	due, msg := best.due, best.msg
	if best.every > 0 {
		tl.seq++
		best.due = best.due.Add(best.every)
		best.seq = tl.seq
	} else {
		best.stopped = true
	}
	return due, msg, true
}

func (tl *timeline) moveTo(at time.Time) {
	if now := tl.clock.Now(); at.After(now) {
		tl.clock.Advance(at.Sub(now))
	}
}
