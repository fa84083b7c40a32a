// SPDX-License-Identifier: MIT
package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyPool(t *testing.T) {
	_, err := New(0, 16)
	assert.Error(t, err)
	_, err = New(1, 0)
	assert.Error(t, err)
}

func TestPoolOfOneSecondCaptureDropped(t *testing.T) {
	m, err := New(1, 4)
	require.NoError(t, err)

	first, err := m.Alloc()
	require.NoError(t, err)
	first.Fill([]int32{1, 2, 3, 4}, 8000)
	require.NoError(t, m.Post(first))

	second, err := m.Alloc()
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, uint64(1), m.Dropped())

	got, err := m.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4}, got.Samples())
	assert.Equal(t, 8000, got.SampleRate())
	require.NoError(t, m.Release(got))

	// The slot is usable again once the consumer releases it.
	again, err := m.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 0, again.Len())
}

func TestFIFOOrder(t *testing.T) {
	m, err := New(3, 1)
	require.NoError(t, err)

	for i := int32(0); i < 3; i++ {
		c, err := m.Alloc()
		require.NoError(t, err)
		c.Fill([]int32{i}, 16000)
		require.NoError(t, m.Post(c))
	}
	assert.Equal(t, 3, m.Pending())

	for i := int32(0); i < 3; i++ {
		c, err := m.Receive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, c.Samples()[0])
		require.NoError(t, m.Release(c))
	}
	assert.Equal(t, uint64(3), m.Posted())
}

func TestFillTruncatesToCapacity(t *testing.T) {
	m, err := New(1, 2)
	require.NoError(t, err)
	c, err := m.Alloc()
	require.NoError(t, err)

	n := c.Fill([]int32{7, 8, 9}, 44100)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int32{7, 8}, c.Samples())
	assert.Equal(t, 2, c.Capacity())
}

func TestReceiveHonoursContext(t *testing.T) {
	m, err := New(1, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestForeignChunkRejected(t *testing.T) {
	a, err := New(1, 1)
	require.NoError(t, err)
	b, err := New(1, 1)
	require.NoError(t, err)

	c, err := a.Alloc()
	require.NoError(t, err)
	assert.ErrorIs(t, b.Post(c), ErrForeignChunk)
	assert.ErrorIs(t, b.Release(c), ErrForeignChunk)
	assert.ErrorIs(t, a.Post(nil), ErrForeignChunk)
}

func TestDoubleReleaseRejected(t *testing.T) {
	m, err := New(1, 1)
	require.NoError(t, err)
	c, err := m.Alloc()
	require.NoError(t, err)
	require.NoError(t, m.Release(c))
	assert.Error(t, m.Release(c))
}

// A rejected Post leaves the chunk with the caller; only its Release puts it
// back in the pool, so the pool never holds the same chunk twice.
func TestFailedPostLeavesChunkWithCaller(t *testing.T) {
	m, err := New(1, 1)
	require.NoError(t, err)
	c, err := m.Alloc()
	require.NoError(t, err)
	require.NoError(t, m.Post(c))

	// The queue already holds the only pool chunk.
	assert.ErrorIs(t, m.Post(c), ErrPoolExhausted)
	assert.Equal(t, uint64(1), m.Dropped())
	_, err = m.Alloc()
	assert.ErrorIs(t, err, ErrPoolExhausted, "failed Post must not refill the pool")

	got, err := m.Receive(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Release(got))

	again, err := m.Alloc()
	require.NoError(t, err)
	assert.Same(t, c, again)
	_, err = m.Alloc()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	// A second release of the same chunk is refused.
	require.NoError(t, m.Release(again))
	assert.Error(t, m.Release(again))
}

func TestProducerNeverAllocates(t *testing.T) {
	m, err := New(2, 256)
	require.NoError(t, err)
	samples := make([]int32, 256)

	allocs := testing.AllocsPerRun(100, func() {
		c, err := m.Alloc()
		if err != nil {
			return
		}
		c.Fill(samples, 48000)
		_ = m.Post(c)
		got, _ := m.Receive(context.Background())
		_ = m.Release(got)
	})
	assert.Zero(t, allocs)
}

func TestConcurrentHandOff(t *testing.T) {
	m, err := New(4, 8)
	require.NoError(t, err)

	const total = 1000
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan int32, total)
	go func() {
		for {
			c, err := m.Receive(ctx)
			if err != nil {
				return
			}
			received <- c.Samples()[0]
			_ = m.Release(c)
		}
	}()

	sent := 0
	for sent < total {
		c, err := m.Alloc()
		if err != nil {
			time.Sleep(time.Microsecond)
			continue
		}
		c.Fill([]int32{int32(sent)}, 8000)
		require.NoError(t, m.Post(c))
		sent++
	}

	for want := int32(0); want < total; want++ {
		select {
		case got := <-received:
			require.Equal(t, want, got)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for chunk %d", want)
		}
	}
}
