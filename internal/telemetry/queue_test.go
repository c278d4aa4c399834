package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQueue_FIFO(t *testing.T) {
	q := newFrameQueue()

	for _, s := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue([]byte(s)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, string(got))
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestFrameQueue_Dequeue_BlocksUntilAvailable(t *testing.T) {
	q := newFrameQueue()

	got := make(chan string, 1)
	go func() {
		frame, ok := q.Dequeue()
		if ok {
			got <- string(frame)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue([]byte("late"))

	select {
	case s := <-got:
		assert.Equal(t, "late", s)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock")
	}
}

func TestFrameQueue_Close_DrainsThenStops(t *testing.T) {
	q := newFrameQueue()
	q.Enqueue([]byte("last"))
	q.Close()

	frame, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "last", string(frame))

	_, ok = q.Dequeue()
	assert.False(t, ok)
	assert.False(t, q.Enqueue([]byte("after")), "enqueue after close should fail")

	q.Close()
}

func TestFrameQueue_ThreadSafe(t *testing.T) {
	q := newFrameQueue()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue([]byte("x"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
}

func TestClock_Sequence(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(41)
	assert.Equal(t, int64(42), resumed.Next())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, dup := seen.LoadOrStore(c.Next(), true)
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), c.Current())
}
