// ABOUTME: Ring buffer holding the most recent mono samples of the active source
// ABOUTME: Feeds the analyser node with a time-domain window on demand
package analyzer

import "sync"

// Tap keeps the latest size mono samples in a ring
type Tap struct {
	mu   sync.Mutex
	buf  []float64
	pos  int
	size int
}

// NewTap creates a tap holding size samples
func NewTap(size int) *Tap {
	return &Tap{
		buf:  make([]float64, size),
		size: size,
	}
}

// Write appends mono samples, overwriting the oldest
func (t *Tap) Write(samples []float32) {
	t.mu.Lock()
	for _, s := range samples {
		t.buf[t.pos] = float64(s)
		t.pos = (t.pos + 1) % t.size
	}
	t.mu.Unlock()
}

// Samples copies the last len(dst) samples in chronological order
func (t *Tap) Samples(dst []float64) []float64 {
	n := len(dst)
	if n > t.size {
		n = t.size
		dst = dst[:n]
	}
	t.mu.Lock()
	start := (t.pos - n + t.size) % t.size
	for i := 0; i < n; i++ {
		dst[i] = t.buf[(start+i)%t.size]
	}
	t.mu.Unlock()
	return dst
}

// Reset zeroes the history so a new source starts from silence
func (t *Tap) Reset() {
	t.mu.Lock()
	for i := range t.buf {
		t.buf[i] = 0
	}
	t.pos = 0
	t.mu.Unlock()
}
