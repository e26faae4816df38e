package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	_, ok := q.TryDequeue()
	assert.False(t, ok)

	for _, tok := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(event{kind: eventSnapshot, token: tok}))
	}
	assert.Equal(t, 3, q.Len())

	for _, tok := range []string{"a", "b", "c"} {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, tok, e.token)
	}
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	require.True(t, q.Enqueue(event{token: "a"}))
	q.Close()
	q.Close()
	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(event{token: "b"}), "rejected after close")

	<-q.Wait() // closed signal never blocks
	e, ok := q.TryDequeue()
	require.True(t, ok, "queued events survive close")
	assert.Equal(t, "a", e.token)
}

func TestEventQueue_ConcurrentProducers(t *testing.T) {
	q := newEventQueue()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(event{kind: eventSnapshot})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())

	select {
	case <-q.Wait():
	default:
		t.Fatal("signal expected")
	}
}
