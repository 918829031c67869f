// Package window provides a fixed-capacity FIFO buffer of stream samples.
package window

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCapacityTooSmall is returned when a buffer is constructed with a
// capacity that cannot support a standard deviation.
var ErrCapacityTooSmall = errors.New("window: capacity must be at least 2")

// Sample is a single measurement taken from the stream. GlobalIndex is
// the caller-assigned arrival order; it stays on the sample through
// eviction and wraparound, so results are always addressed in
// stream-global coordinates rather than window-local positions.
type Sample struct {
	GlobalIndex uint64  `json:"global_index"`
	Value       float64 `json:"value"`
}

// Buffer holds the most recent samples up to a fixed capacity. Pushing
// into a full buffer evicts the oldest sample.
type Buffer struct {
	mu      sync.RWMutex
	samples []Sample
	pos     int // next write slot
	count   int
}

// New creates a buffer with the given capacity. Capacity must be at
// least 2; windows smaller than that have no defined standard deviation.
func New(capacity int) (*Buffer, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrCapacityTooSmall, capacity)
	}
	return &Buffer{samples: make([]Sample, capacity)}, nil
}

// Push appends a sample, evicting the oldest one if the buffer is full.
func (b *Buffer) Push(s Sample) {
	b.mu.Lock()
	b.samples[b.pos] = s
	b.pos = (b.pos + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
	b.mu.Unlock()
}

// Snapshot returns a copy of the current contents in arrival order.
// The copy stays valid across later pushes.
func (b *Buffer) Snapshot() []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}
	out := make([]Sample, b.count)
	if b.count < len(b.samples) {
		copy(out, b.samples[:b.count])
	} else {
		// Full ring: oldest sample sits at the write position.
		n := copy(out, b.samples[b.pos:])
		copy(out[n:], b.samples[:b.pos])
	}
	return out
}

// Len returns the number of samples currently buffered.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.samples)
}

// IsFull reports whether the next push will evict.
func (b *Buffer) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count == len(b.samples)
}
