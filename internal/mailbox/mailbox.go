// SPDX-License-Identifier: MIT
/*
Package mailbox hands captured sample chunks from the capture callback to the
sampling task.

The mailbox owns a fixed pool of chunks allocated once at construction. The
producer side (Alloc, Post) never blocks and never allocates; the consumer side
(Receive, Release) blocks only in Receive. Ownership of a chunk moves

	pool --Alloc--> producer --Post--> queue --Receive--> consumer --Release--> pool

so a chunk is held by exactly one party at a time. Both the free list and the
queue are buffered channels with capacity equal to the pool size, which makes
Post infallible for any chunk obtained from Alloc and keeps delivery FIFO.
*/
package mailbox

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	// ErrPoolExhausted is returned by Alloc when every chunk is in flight.
	ErrPoolExhausted = errors.New("mailbox: chunk pool exhausted")
	// ErrForeignChunk is returned when a chunk not owned by this mailbox is posted or released.
	ErrForeignChunk = errors.New("mailbox: chunk does not belong to this mailbox")
)

// Chunk is one capture buffer's worth of samples.
type Chunk struct {
	samples    []int32
	length     int
	sampleRate int
	owner      *Mailbox
}

// Fill copies src into the chunk, truncating to the chunk capacity, and records
// the sample rate in effect at capture time. It returns the number of samples copied.
func (c *Chunk) Fill(src []int32, sampleRate int) int {
	c.length = copy(c.samples, src)
	c.sampleRate = sampleRate
	return c.length
}

// Samples returns the valid samples. The slice aliases the chunk and must not
// be retained after Release.
func (c *Chunk) Samples() []int32 { return c.samples[:c.length] }

// Len returns the number of valid samples.
func (c *Chunk) Len() int { return c.length }

// SampleRate returns the sample rate recorded by Fill.
func (c *Chunk) SampleRate() int { return c.sampleRate }

// Capacity returns the maximum number of samples the chunk holds.
func (c *Chunk) Capacity() int { return len(c.samples) }

// Mailbox is a bounded FIFO of chunks backed by a fixed pool.
type Mailbox struct {
	free  chan *Chunk
	queue chan *Chunk

	poolSize  int
	chunkSize int

	posted  atomic.Uint64
	dropped atomic.Uint64
}

// New creates a mailbox with poolSize chunks of chunkSize samples each.
func New(poolSize, chunkSize int) (*Mailbox, error) {
	if poolSize < 1 {
		return nil, errors.Errorf("mailbox: pool size must be at least 1, got %d", poolSize)
	}
	if chunkSize < 1 {
		return nil, errors.Errorf("mailbox: chunk size must be at least 1, got %d", chunkSize)
	}

	m := &Mailbox{
		free:      make(chan *Chunk, poolSize),
		queue:     make(chan *Chunk, poolSize),
		poolSize:  poolSize,
		chunkSize: chunkSize,
	}
	for range poolSize {
		m.free <- &Chunk{samples: make([]int32, chunkSize), owner: m}
	}
	return m, nil
}

// Alloc takes a chunk from the pool without blocking. When the pool is empty the
// drop counter is incremented and ErrPoolExhausted is returned.
func (m *Mailbox) Alloc() (*Chunk, error) {
	select {
	case c := <-m.free:
		c.length = 0
		return c, nil
	default:
		m.dropped.Add(1)
		return nil, ErrPoolExhausted
	}
}

// Post enqueues a chunk obtained from Alloc. It never blocks. On error the
// chunk still belongs to the caller, who hands it back with Release.
func (m *Mailbox) Post(c *Chunk) error {
	if c == nil || c.owner != m {
		return ErrForeignChunk
	}
	select {
	case m.queue <- c:
		m.posted.Add(1)
		return nil
	default:
		// Unreachable while callers respect Alloc/Post pairing: the queue has
		// one slot per pool chunk.
		m.dropped.Add(1)
		return ErrPoolExhausted
	}
}

// Receive blocks until a chunk is available or ctx is done.
func (m *Mailbox) Receive(ctx context.Context) (*Chunk, error) {
	select {
	case c := <-m.queue:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a received chunk to the pool.
func (m *Mailbox) Release(c *Chunk) error {
	if c == nil || c.owner != m {
		return ErrForeignChunk
	}
	c.length = 0
	select {
	case m.free <- c:
		return nil
	default:
		return errors.New("mailbox: release of a chunk that is already free")
	}
}

// PoolSize returns the number of chunks in the pool.
func (m *Mailbox) PoolSize() int { return m.poolSize }

// ChunkSize returns the sample capacity of each chunk.
func (m *Mailbox) ChunkSize() int { return m.chunkSize }

// Pending returns the number of posted chunks not yet received.
func (m *Mailbox) Pending() int { return len(m.queue) }

// Posted returns the number of chunks delivered to the queue.
func (m *Mailbox) Posted() uint64 { return m.posted.Load() }

// Dropped returns the number of chunks lost to pool exhaustion.
func (m *Mailbox) Dropped() uint64 { return m.dropped.Load() }
