// SPDX-License-Identifier: MIT
package spectrum

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndRead(t *testing.T) {
	buf, err := New(4)
	require.NoError(t, err)

	dest := make([]float32, 4)
	seq, err := buf.ReadSnapshot(dest)
	require.NoError(t, err)
	assert.Zero(t, seq)
	assert.Equal(t, []float32{0, 0, 0, 0}, dest)

	require.NoError(t, buf.Publish([]float32{1, 2, 3, 4}))
	seq, err = buf.ReadSnapshot(dest)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, []float32{1, 2, 3, 4}, dest)
}

func TestPublishIsCopied(t *testing.T) {
	buf, err := New(2)
	require.NoError(t, err)

	src := []float32{5, 6}
	require.NoError(t, buf.Publish(src))
	src[0] = 99

	dest := make([]float32, 2)
	_, err = buf.ReadSnapshot(dest)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6}, dest)
}

func TestPublishTwiceIdempotent(t *testing.T) {
	buf, err := New(3)
	require.NoError(t, err)
	values := []float32{0.5, 0.25, 0.125}

	first := make([]float32, 3)
	second := make([]float32, 3)
	require.NoError(t, buf.Publish(values))
	_, err = buf.ReadSnapshot(first)
	require.NoError(t, err)
	require.NoError(t, buf.Publish(values))
	_, err = buf.ReadSnapshot(second)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLengthMismatch(t *testing.T) {
	buf, err := New(3)
	require.NoError(t, err)

	err = buf.Publish([]float32{1, 2})
	assert.True(t, errors.Is(err, ErrLengthMismatch))

	_, err = buf.ReadSnapshot(make([]float32, 4))
	assert.True(t, errors.Is(err, ErrLengthMismatch))

	seq, _ := buf.Sequence()
	assert.Zero(t, seq, "rejected publish must not count")
}

func TestNewRejectsZeroLength(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

// Each publish writes a uniform vector; a reader must never see two values.
func TestReadersNeverSeeMixedResult(t *testing.T) {
	const length = 512
	buf, err := New(length)
	require.NoError(t, err)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		vec := make([]float32, length)
		for v := float32(1); ; v++ {
			select {
			case <-done:
				return
			default:
			}
			for i := range vec {
				vec[i] = v
			}
			_ = buf.Publish(vec)
		}
	}()

	dest := make([]float32, length)
	for range 2000 {
		_, err := buf.ReadSnapshot(dest)
		require.NoError(t, err)
		for i := range dest {
			if dest[i] != dest[0] {
				close(done)
				wg.Wait()
				t.Fatalf("mixed result at %d: %v vs %v", i, dest[0], dest[i])
			}
		}
	}
	close(done)
	wg.Wait()
}

func TestPublishReadZeroAllocs(t *testing.T) {
	buf, err := New(512)
	require.NoError(t, err)
	vec := make([]float32, 512)
	dest := make([]float32, 512)

	allocs := testing.AllocsPerRun(100, func() {
		_ = buf.Publish(vec)
		_, _ = buf.ReadSnapshot(dest)
	})
	assert.Zero(t, allocs)
}
