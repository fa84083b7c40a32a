// SPDX-License-Identifier: MIT
/*
Package soundbuf implements the cyclic sound buffer shared by the sampling task
(writer) and the spectral pipeline (reader).

The buffer always holds the last Capacity samples written. Write and
SnapshotInto take the same mutex for the duration of their copies, so a snapshot
is either entirely before or entirely after any given write. The lock is never
held outside those copies.
*/
package soundbuf

import (
	"fmt"
	"sync"
)

// Buffer is a fixed-capacity ring of int32 samples.
type Buffer struct {
	mu         sync.Mutex
	samples    []int32
	cursor     int // next write position, in [0, len(samples))
	sampleRate int // rate of the most recent write
	written    uint64
}

// New creates a zero-filled buffer of the given capacity.
func New(capacity, sampleRate int) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("sound buffer capacity must be positive, got %d", capacity)
	}
	return &Buffer{
		samples:    make([]int32, capacity),
		sampleRate: sampleRate,
	}, nil
}

// Capacity returns the fixed number of samples held.
func (b *Buffer) Capacity() int { return len(b.samples) }

// Write appends samples at the cursor, overwriting the oldest data, and records
// sampleRate as the rate of the buffer contents. The cursor advances by
// len(samples) mod Capacity.
func (b *Buffer) Write(samples []int32, sampleRate int) {
	n := len(samples)
	if n == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)
	b.written += uint64(n)
	b.sampleRate = sampleRate

	// Only the trailing Capacity samples survive. Skip the rest but move the
	// cursor as if they had been written one by one.
	if n > capacity {
		b.cursor = (b.cursor + n - capacity) % capacity
		samples = samples[n-capacity:]
		n = capacity
	}

	// Split into at most two contiguous copies around the wrap point.
	first := copy(b.samples[b.cursor:], samples)
	if first < n {
		copy(b.samples, samples[first:])
	}
	b.cursor = (b.cursor + n) % capacity
}

// SnapshotInto copies the logical window, oldest sample first, into dest and
// returns the number of samples copied along with the sample rate of the
// contents. If dest is shorter than the buffer, the newest len(dest) samples are
// copied; if longer, the tail of dest is left untouched.
func (b *Buffer) SnapshotInto(dest []int32) (n int, sampleRate int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)
	n = min(len(dest), capacity)

	// Oldest of the n newest samples.
	start := (b.cursor - n + capacity) % capacity
	first := copy(dest[:n], b.samples[start:])
	if first < n {
		copy(dest[first:n], b.samples[:n-first])
	}
	return n, b.sampleRate
}

// SampleRate returns the sample rate recorded by the most recent write.
func (b *Buffer) SampleRate() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sampleRate
}

// Written returns the total number of samples ever written.
func (b *Buffer) Written() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}
