package testutil

import (
	"sync"
	"time"

	"github.com/roach88/livequery/internal/live"
)

// Scheduled is one recorded scheduler call.
type Scheduled struct {
	Delay    time.Duration
	Message  live.Message
	Interval bool
	Stopped  bool
}

// RecordingScheduler records messages instead of timing them. Tests
// deliver them explicitly.
type RecordingScheduler struct {
	mu    sync.Mutex
	calls []*Scheduled
}

// SendAfter implements live.Scheduler.
func (r *RecordingScheduler) SendAfter(d time.Duration, msg live.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, &Scheduled{Delay: d, Message: msg})
}

// SendInterval implements live.Scheduler.
func (r *RecordingScheduler) SendInterval(d time.Duration, msg live.Message) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := &Scheduled{Delay: d, Message: msg, Interval: true}
	r.calls = append(r.calls, call)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		call.Stopped = true
	}
}

// Calls returns copies of the recorded calls in order.
func (r *RecordingScheduler) Calls() []Scheduled {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Scheduled, len(r.calls))
	for i, c := range r.calls {
		out[i] = *c
	}
	return out
}

// Take removes and returns the recorded one-shot messages.
// Interval registrations stay recorded.
func (r *RecordingScheduler) Take() []live.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msgs []live.Message
	kept := r.calls[:0]
	for _, c := range r.calls {
		if c.Interval {
			kept = append(kept, c)
			continue
		}
		msgs = append(msgs, c.Message)
	}
	r.calls = kept
	return msgs
}
