// ABOUTME: Thread-safe circular buffer between the device callback and readers
// ABOUTME: Writers never block; readers wait until samples arrive or the buffer closes
package capture

import (
	"io"
	"sync"
)

// RingBuffer provides a thread-safe circular buffer for audio samples
type RingBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buffer   []float32
	readPos  int
	writePos int
	count    int
	dropped  int
	closed   bool
}

// NewRingBuffer creates a ring buffer with given capacity (in samples)
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{buffer: make([]float32, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write adds samples, dropping whatever does not fit. Returns samples stored.
func (rb *RingBuffer) Write(samples []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return 0
	}

	written := 0
	size := len(rb.buffer)
	for i := 0; i < len(samples) && rb.count < size; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % size
		rb.count++
		written++
	}
	rb.dropped += len(samples) - written
	if written > 0 {
		rb.cond.Broadcast()
	}
	return written
}

// Read blocks until at least one sample is available, then drains up to len(dst).
// Returns io.EOF once the buffer is closed and empty.
func (rb *RingBuffer) Read(dst []float32) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count == 0 && !rb.closed {
		rb.cond.Wait()
	}
	if rb.count == 0 {
		return 0, io.EOF
	}

	read := 0
	for read < len(dst) && rb.count > 0 {
		dst[read] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % len(rb.buffer)
		rb.count--
		read++
	}
	return read, nil
}

// Available returns the number of samples waiting to be read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Dropped returns how many samples were discarded because the buffer was full
func (rb *RingBuffer) Dropped() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}

// Close wakes blocked readers
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.mu.Unlock()
	rb.cond.Broadcast()
}
