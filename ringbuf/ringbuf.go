// Package ringbuf provides the fixed-capacity byte ring shared between an
// interrupt handler and main-line code.
//
// A RingBuffer has exactly one producer and one consumer. For a TX ring the
// producer is main-line code and the consumer is the interrupt handler; for an
// RX ring the roles are swapped. No locks are taken: each side owns one index
// and publishes it only after its slot has been written or read.
package ringbuf

import "sync/atomic"

// DefaultSize is the storage size used by the drivers in this module.
// One slot is kept free, so DefaultSize-1 bytes are usable.
const DefaultSize = 128

// Sentinel is returned by Get on an empty buffer. It is also a valid data
// byte; check the boolean result before trusting it.
const Sentinel byte = 0xFF

// RingBuffer is a single-producer single-consumer byte queue.
//
// The buffer is empty when head == tail and full when (head+1) mod N == tail,
// so it holds at most N-1 bytes.
type RingBuffer struct {
	storage []byte
	head    atomic.Uint32 // next write, owned by the producer
	tail    atomic.Uint32 // next read, owned by the consumer
}

// New returns an initialized ring with size storage slots. Storage is
// allocated once here and never resized. size must be at least 2.
func New(size int) *RingBuffer {
	if size < 2 {
		panic("ringbuf: size must be at least 2")
	}
	return &RingBuffer{storage: make([]byte, size)}
}

// Init resets head and tail to zero, discarding any content. It must run
// before the interrupt that shares the buffer is armed.
func (rb *RingBuffer) Init() {
	rb.head.Store(0)
	rb.tail.Store(0)
}

// Size returns the number of storage slots.
func (rb *RingBuffer) Size() int { return len(rb.storage) }

// Cap returns the usable capacity, Size()-1.
func (rb *RingBuffer) Cap() int { return len(rb.storage) - 1 }

// Used returns how many bytes are waiting to be read.
func (rb *RingBuffer) Used() int {
	n := uint32(len(rb.storage))
	return int((rb.head.Load() + n - rb.tail.Load()) % n)
}

// Free returns how many bytes can be written before the buffer is full.
func (rb *RingBuffer) Free() int { return rb.Cap() - rb.Used() }

// IsEmpty reports whether head == tail.
func (rb *RingBuffer) IsEmpty() bool {
	return rb.head.Load() == rb.tail.Load()
}

// IsFull reports whether advancing head by one would reach tail.
func (rb *RingBuffer) IsFull() bool {
	return rb.next(rb.head.Load()) == rb.tail.Load()
}

// Put stores a byte. If the buffer is full the byte is dropped, nothing is
// overwritten, and Put returns false.
func (rb *RingBuffer) Put(val byte) bool {
	h := rb.head.Load()
	next := rb.next(h)
	if next == rb.tail.Load() {
		return false
	}
	rb.storage[h] = val // 1) write data
	rb.head.Store(next) // 2) publish
	return true
}

// Get removes and returns the oldest byte. On an empty buffer it returns
// (Sentinel, false).
func (rb *RingBuffer) Get() (byte, bool) {
	t := rb.tail.Load()
	if t == rb.head.Load() {
		return Sentinel, false
	}
	v := rb.storage[t]        // 1) read current element
	rb.tail.Store(rb.next(t)) // 2) publish consumption
	return v, true
}

func (rb *RingBuffer) next(i uint32) uint32 {
	i++
	if i == uint32(len(rb.storage)) {
		return 0
	}
	return i
}
