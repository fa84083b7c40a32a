// SPDX-License-Identifier: MIT
package spectrum

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrLengthMismatch is returned when a publish or read uses a slice whose
// length differs from the buffer's fixed length.
var ErrLengthMismatch = errors.New("spectrum: vector length mismatch")

// Buffer holds the most recently published amplitude vector. Its length is
// fixed at construction so readers can never observe a partial vector: Publish
// and ReadSnapshot both copy the whole vector under the same lock.
type Buffer struct {
	mu        sync.RWMutex
	values    []float32
	sequence  uint64
	published time.Time
}

// New creates a zeroed buffer of the given length.
func New(length int) (*Buffer, error) {
	if length < 1 {
		return nil, errors.Errorf("spectrum: length must be positive, got %d", length)
	}
	return &Buffer{values: make([]float32, length)}, nil
}

// Len returns the fixed vector length.
func (b *Buffer) Len() int { return len(b.values) }

// Publish replaces the vector with values.
func (b *Buffer) Publish(values []float32) error {
	if len(values) != len(b.values) {
		return errors.Wrapf(ErrLengthMismatch, "publish %d values into %d", len(values), len(b.values))
	}
	b.mu.Lock()
	copy(b.values, values)
	b.sequence++
	b.published = time.Now()
	b.mu.Unlock()
	return nil
}

// ReadSnapshot copies the current vector into dest and returns its sequence
// number, which is zero until the first Publish.
func (b *Buffer) ReadSnapshot(dest []float32) (uint64, error) {
	if len(dest) != len(b.values) {
		return 0, errors.Wrapf(ErrLengthMismatch, "read %d values into %d", len(b.values), len(dest))
	}
	b.mu.RLock()
	copy(dest, b.values)
	seq := b.sequence
	b.mu.RUnlock()
	return seq, nil
}

// Sequence returns the number of completed publishes and the time of the last one.
func (b *Buffer) Sequence() (uint64, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sequence, b.published
}
