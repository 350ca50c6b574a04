package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/live"
	"github.com/roach88/livequery/internal/testutil"
)

type delivery struct {
	keys []string
	at   time.Duration
}

func recordingTimeline() (*timeline, *[]delivery) {
	clk := testutil.NewClock()
	tl := newTimeline(clk)
	var got []delivery
	tl.deliver = func(m live.Message) bool {
		got = append(got, delivery{keys: m.Keys, at: clk.Now().Sub(testutil.Epoch)})
		return true
	}
	return tl, &got
}

func noDrain(context.Context) error { return nil }

func TestTimeline_DeliversInDueOrder(t *testing.T) {
	tl, got := recordingTimeline()
	tl.SendAfter(30*time.Millisecond, live.Message{Keys: []string{"b"}})
	tl.SendAfter(10*time.Millisecond, live.Message{Keys: []string{"a"}})
	tl.SendAfter(30*time.Millisecond, live.Message{Keys: []string{"c"}})

	require.NoError(t, tl.Advance(context.Background(), 20*time.Millisecond, noDrain))
	assert.Equal(t, []delivery{{keys: []string{"a"}, at: 10 * time.Millisecond}}, *got)
	assert.Equal(t, 20*time.Millisecond, tl.clock.Now().Sub(testutil.Epoch))

	require.NoError(t, tl.Advance(context.Background(), 20*time.Millisecond, noDrain))
	assert.Equal(t, []delivery{
		{keys: []string{"a"}, at: 10 * time.Millisecond},
		{keys: []string{"b"}, at: 30 * time.Millisecond},
		{keys: []string{"c"}, at: 30 * time.Millisecond},
	}, *got)
	assert.Equal(t, 0, tl.Pending())
}

func TestTimeline_IntervalRearmsUntilStopped(t *testing.T) {
	tl, got := recordingTimeline()
	stop := tl.SendInterval(100*time.Millisecond, live.Message{Keys: []string{"tick"}})

	require.NoError(t, tl.Advance(context.Background(), 250*time.Millisecond, noDrain))
	require.Len(t, *got, 2)
	assert.Equal(t, 100*time.Millisecond, (*got)[0].at)
	assert.Equal(t, 200*time.Millisecond, (*got)[1].at)
	assert.Equal(t, 1, tl.Pending())

	stop()
	assert.Equal(t, 0, tl.Pending())
	require.NoError(t, tl.Advance(context.Background(), time.Second, noDrain))
	assert.Len(t, *got, 2)
}

func TestTimeline_TimersArmedDuringDeliveryFireInSameAdvance(t *testing.T) {
	clk := testutil.NewClock()
	tl := newTimeline(clk)
	var at []time.Duration
	tl.deliver = func(m live.Message) bool {
		at = append(at, clk.Now().Sub(testutil.Epoch))
		if len(at) == 1 {
			tl.SendAfter(5*time.Millisecond, m)
		}
		return true
	}
	tl.SendAfter(10*time.Millisecond, live.Message{})

	require.NoError(t, tl.Advance(context.Background(), 20*time.Millisecond, noDrain))
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, at)
}

func TestTimeline_DrainErrorsCombined(t *testing.T) {
	tl, _ := recordingTimeline()
	tl.SendAfter(time.Millisecond, live.Message{})
	tl.SendAfter(2*time.Millisecond, live.Message{})

	calls := 0
	err := tl.Advance(context.Background(), 5*time.Millisecond, func(context.Context) error {
		calls++
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 5*time.Millisecond, tl.clock.Now().Sub(testutil.Epoch))
}
