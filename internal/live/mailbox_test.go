package live

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_FIFO(t *testing.T) {
	m := newMailbox()
	for _, k := range []string{"a", "b", "c"} {
		require.True(t, m.Put(Message{Signal: Refetch, Keys: []string{k}}))
	}
	assert.Equal(t, 3, m.Len())

	for _, want := range []string{"a", "b", "c"} {
		msg, ok := m.TryTake()
		require.True(t, ok)
		assert.Equal(t, []string{want}, msg.Keys)
	}
	_, ok := m.TryTake()
	assert.False(t, ok)
}

func TestMailbox_CloseRejectsPut(t *testing.T) {
	m := newMailbox()
	m.Close()
	m.Close()

	assert.False(t, m.Put(Message{}))
	assert.True(t, m.Closed())

	select {
	case <-m.Wait():
	default:
		t.Fatal("Wait channel should be closed")
	}
}

func TestMailbox_SignalsCoalesce(t *testing.T) {
	m := newMailbox()
	m.Put(Message{})
	m.Put(Message{})

	select {
	case <-m.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected wakeup")
	}
	select {
	case <-m.Wait():
		t.Fatal("second wakeup should have been coalesced")
	default:
	}
	assert.Equal(t, 2, m.Len())
}

func TestMailbox_ConcurrentPut(t *testing.T) {
	m := newMailbox()
	const producers, each = 10, 100

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				m.Put(Message{Signal: Refetch})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, producers*each, m.Len())
}
