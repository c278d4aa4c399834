package telemetry

import "sync"

// frameQueue is an unbounded FIFO of encoded frames feeding one
// connection's writer goroutine.
//
// Senders never block on a slow observer; the writer drains at its own
// pace. The signal channel (size 1) coalesces wakeups.
type frameQueue struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	signal chan struct{}
}

func newFrameQueue() *frameQueue {
	return &frameQueue{
		frames: make([][]byte, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a frame. Returns false once the queue is closed.
func (q *frameQueue) Enqueue(frame []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.frames = append(q.frames, frame)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front frame without blocking.
func (q *frameQueue) TryDequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}
	frame := q.frames[0]
	q.frames[0] = nil
	if len(q.frames) == 1 {
		q.frames = q.frames[:0]
	} else {
		q.frames = q.frames[1:]
	}
	return frame, true
}

// Dequeue blocks until a frame is available. Returns false when the queue
// is closed and drained.
func (q *frameQueue) Dequeue() ([]byte, bool) {
	for {
		if frame, ok := q.TryDequeue(); ok {
			return frame, true
		}
		q.mu.Lock()
		if q.closed && len(q.frames) == 0 {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

// Len returns the number of queued frames.
func (q *frameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close stops accepting frames and wakes the writer.
func (q *frameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
