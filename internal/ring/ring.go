// Package ring provides a lock-free single-producer/single-consumer
// float sample FIFO used to decouple the capture and playback audio
// threads.
package ring

import "sync/atomic"

// minCapacity is the floor enforced on every buffer regardless of the
// requested size.
const minCapacity = 8192

// Buffer is a fixed-capacity, sample-granular ring buffer. Push is
// called only from the producer (capture callback), Pop only from the
// consumer (playback callback). Both are wait-free: neither blocks nor
// allocates. Overflow policy is drop-oldest: when a Push would not fit,
// Push itself advances tail to evict the oldest buffered samples rather
// than rejecting the newest ones, so tail is occasionally written from
// the producer side as well as the consumer side. A Pop racing with an
// evicting Push can observe samples the eviction is about to overwrite;
// that is the accepted cost of keeping the newest audio instead of the
// oldest.
type Buffer struct {
	samples   []float32
	capacity  uint64
	head      atomic.Uint64 // next write index (producer-owned)
	tail      atomic.Uint64 // next read index (advanced by Pop, and by Push on overflow)
	dropCount atomic.Uint64
}

// New creates a ring buffer sized to hold at least capacity samples,
// rounded up to minCapacity.
func New(capacity int) *Buffer {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Buffer{
		samples:  make([]float32, capacity),
		capacity: uint64(capacity),
	}
}

// CapacityFor computes the ring buffer capacity for a given period
// and channel count: max(4 * periodFrames * channels, minCapacity).
func CapacityFor(periodFrames, channels int) int {
	c := 4 * periodFrames * channels
	if c < minCapacity {
		c = minCapacity
	}
	return c
}

// Push writes samples into the buffer, never blocking. The full input
// is always written; if it would overflow the buffer, the oldest
// buffered samples are evicted to make room (drop-oldest) by advancing
// tail, and the overflow counter tracks how many samples were evicted.
// Returns the count written, which is always len(samples).
func (b *Buffer) Push(samples []float32) int {
	n := uint64(len(samples))
	if n == 0 {
		return 0
	}

	head := b.head.Load()
	for i := uint64(0); i < n; i++ {
		b.samples[(head+i)%b.capacity] = samples[i]
	}
	newHead := head + n
	b.head.Store(newHead)

	tail := b.tail.Load()
	if newHead-tail > b.capacity {
		minTail := newHead - b.capacity
		dropped := minTail - tail
		b.dropCount.Add(dropped)
		b.tail.Store(minTail)
	}
	return int(n)
}

// Pop reads up to len(out) samples into out, never blocking. Returns a
// short count (including zero) when the buffer is underfilled; the
// caller is responsible for filling the remainder with silence.
func (b *Buffer) Pop(out []float32) int {
	tail := b.tail.Load()
	head := b.head.Load()

	avail := head - tail
	n := uint64(len(out))
	if n > avail {
		n = avail
	}

	for i := uint64(0); i < n; i++ {
		out[i] = b.samples[(tail+i)%b.capacity]
	}
	b.tail.Store(tail + n)
	return int(n)
}

// AvailableRead returns the number of samples currently buffered.
func (b *Buffer) AvailableRead() int {
	return int(b.head.Load() - b.tail.Load())
}

// AvailableWrite returns the number of samples that can be written
// before the next Push would drop data.
func (b *Buffer) AvailableWrite() int {
	return int(b.capacity) - b.AvailableRead()
}

// Dropped returns the total number of samples dropped to overflow since
// creation.
func (b *Buffer) Dropped() uint64 {
	return b.dropCount.Load()
}

// Reset discards all buffered samples, used when the pipeline restarts.
func (b *Buffer) Reset() {
	b.tail.Store(b.head.Load())
}
