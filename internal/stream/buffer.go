package stream

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferCapacity is used when a profile does not set one.
const DefaultBufferCapacity = 64

// FrameBuffer is a bounded queue of frames pending delivery to a
// single subscriber. It decouples the producer's timing from the
// subscriber's consumption rate: Push never blocks, and when the
// buffer is full the oldest pending frame is discarded so acquisition
// throughput is never limited by the slowest subscriber.
type FrameBuffer struct {
	mu     sync.Mutex
	frames []*Frame
	head   int
	count  int
	closed bool

	pushed    uint64
	delivered uint64
	dropped   uint64

	// notify wakes the delivery loop; capacity 1 so Push never blocks.
	notify chan struct{}
}

func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &FrameBuffer{
		frames: make([]*Frame, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues a frame, evicting the oldest pending frame when full.
// Pushing into a closed buffer is a no-op.
func (b *FrameBuffer) Push(f *Frame) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	if b.count == len(b.frames) {
		// Full: evict the oldest unconsumed frame.
		b.frames[b.head] = nil
		b.head = (b.head + 1) % len(b.frames)
		b.count--
		atomic.AddUint64(&b.dropped, 1)
	}

	tail := (b.head + b.count) % len(b.frames)
	b.frames[tail] = f
	b.count++
	atomic.AddUint64(&b.pushed, 1)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the oldest pending frame. It never
// blocks; ok is false when the buffer is empty or closed.
func (b *FrameBuffer) TryPop() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.count == 0 {
		return nil, false
	}

	f := b.frames[b.head]
	b.frames[b.head] = nil
	b.head = (b.head + 1) % len(b.frames)
	b.count--
	atomic.AddUint64(&b.delivered, 1)
	return f, true
}

// Ready returns the channel the delivery loop selects on; it receives
// a token whenever new frames may be pending.
func (b *FrameBuffer) Ready() <-chan struct{} {
	return b.notify
}

// Close discards all pending frames. Subsequent pushes are ignored.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for i := range b.frames {
		b.frames[i] = nil
	}
	b.count = 0

	// Wake the delivery loop so it can observe the close.
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *FrameBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the number of frames pending delivery.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *FrameBuffer) Capacity() int {
	return len(b.frames)
}

// Stats returns cumulative push/deliver/drop counters.
func (b *FrameBuffer) Stats() BufferStats {
	return BufferStats{
		Pushed:    atomic.LoadUint64(&b.pushed),
		Delivered: atomic.LoadUint64(&b.delivered),
		Dropped:   atomic.LoadUint64(&b.dropped),
	}
}

type BufferStats struct {
	Pushed    uint64 `json:"pushed"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}
