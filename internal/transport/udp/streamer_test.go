// SPDX-License-Identifier: MIT
package udp

import (
	"context"
	"encoding/binary"
	"math"
	"net"
	"net/netip"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"specstream/internal/config"
	"specstream/internal/netif"
	"specstream/internal/spectrum"
	"specstream/internal/system"
	"specstream/internal/window"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() { c.n.Add(1) }

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newStore(t *testing.T, period time.Duration, dest *net.UDPConn) *config.Store {
	t.Helper()
	port := uint16(dest.LocalAddr().(*net.UDPAddr).Port)
	store, err := config.NewStore(config.SystemConfig{
		SamplingPeriod:  period,
		AudioSampleRate: 16000,
		Destination:     netip.MustParseAddr("127.0.0.1"),
		DestinationPort: port,
		Window:          window.Rectangle,
	})
	require.NoError(t, err)
	return store
}

type harness struct {
	sender   *UDPSender
	trigger  *countingTrigger
	spectrum *spectrum.Buffer
	store    *config.Store
	streamer *Streamer
	task     *system.Task
}

func newHarness(t *testing.T, bins int, period time.Duration, dest *net.UDPConn) *harness {
	t.Helper()
	sender, err := NewUDPSender("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { sender.Close() })

	spec, err := spectrum.New(bins)
	require.NoError(t, err)
	store := newStore(t, period, dest)
	trigger := &countingTrigger{}
	task := system.NewRegistry().Register("streaming")

	s, err := NewStreamer(sender, trigger, spec, store, netif.New(), task)
	require.NoError(t, err)
	return &harness{sender: sender, trigger: trigger, spectrum: spec, store: store, streamer: s, task: task}
}

func readDatagram(t *testing.T, conn *net.UDPConn, timeout time.Duration) ([]byte, error) {
	t.Helper()
	buf := make([]byte, 65536)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func decode(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func TestStreamerPayloadIsLittleEndianSpectrum(t *testing.T) {
	dest := listen(t)
	h := newHarness(t, 4, 10*time.Millisecond, dest)
	require.NoError(t, h.spectrum.Publish([]float32{0.5, -1, 3.25, 0}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.streamer.Run(ctx)

	data, err := readDatagram(t, dest, time.Second)
	require.NoError(t, err)
	assert.Len(t, data, 16)
	assert.Equal(t, []float32{0.5, -1, 3.25, 0}, decode(data))
	assert.GreaterOrEqual(t, h.trigger.n.Load(), int32(1))
}

func TestStreamerOneDatagramPerPeriod(t *testing.T) {
	const (
		bins    = 512
		period  = 100 * time.Millisecond
		observe = 1050 * time.Millisecond
	)
	dest := listen(t)
	h := newHarness(t, bins, period, dest)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.streamer.Run(ctx) }()

	deadline := time.Now().Add(observe)
	count := 0
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		data, err := readDatagram(t, dest, remaining)
		if err != nil {
			var netErr net.Error
			require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected read error: %v", err)
			break
		}
		assert.Len(t, data, bins*4)
		count++
	}
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, count, 8)
	assert.LessOrEqual(t, count, 11)
	assert.GreaterOrEqual(t, h.sender.Sent(), uint64(count))
	assert.Equal(t, system.Stopped, h.task.State())
}

func TestStreamerFollowsDestinationChange(t *testing.T) {
	first := listen(t)
	second := listen(t)
	h := newHarness(t, 2, 10*time.Millisecond, first)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.streamer.Run(ctx)

	_, err := readDatagram(t, first, time.Second)
	require.NoError(t, err)

	port := uint16(second.LocalAddr().(*net.UDPAddr).Port)
	_, err = h.store.Apply(config.Patch{DestinationPort: &port})
	require.NoError(t, err)

	data, err := readDatagram(t, second, time.Second)
	require.NoError(t, err)
	assert.Len(t, data, 8)
}

func TestStreamerStopsOnClosedSocket(t *testing.T) {
	dest := listen(t)
	h := newHarness(t, 2, 5*time.Millisecond, dest)
	require.NoError(t, h.sender.Close())

	done := make(chan error, 1)
	go func() { done <- h.streamer.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrSocketClosed))
	case <-time.After(time.Second):
		t.Fatal("streamer kept running on a closed socket")
	}
	assert.Equal(t, uint64(1), h.task.Errors())
}

func TestSendToAfterCloseIsFatal(t *testing.T) {
	sender, err := NewUDPSender("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close(), "second close is a no-op")

	err = sender.SendTo([]byte{1}, netip.MustParseAddrPort("127.0.0.1:9"))
	assert.True(t, IsFatal(err))
	assert.Equal(t, uint64(1), sender.Failed())
}

func TestErrorClassification(t *testing.T) {
	refused := &net.OpError{Op: "write", Net: "udp", Err: &net.OpError{Err: syscall.ECONNREFUSED}}
	assert.True(t, IsTransient(errors.Wrap(refused, "send")))
	assert.True(t, IsTransient(syscall.ENETDOWN))
	assert.False(t, IsFatal(refused))

	assert.True(t, IsFatal(errors.Wrap(net.ErrClosed, "write")))
	assert.False(t, IsTransient(net.ErrClosed))
	assert.False(t, IsTransient(errors.New("some other error")))
}

func TestNewStreamerValidation(t *testing.T) {
	spec, _ := spectrum.New(2)
	_, err := NewStreamer(nil, &countingTrigger{}, spec, nil, netif.New(), nil)
	assert.Error(t, err)
}
