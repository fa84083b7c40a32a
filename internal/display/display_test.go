package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"specstream/internal/spectrum"
	"specstream/internal/system"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedProvider maps 512 bins of a 1024-point transform at rate Hz.
type fixedProvider struct{ rate int }

func (p fixedProvider) FrequencyForBin(bin int) float64 {
	return float64(bin) * float64(p.rate) / 1024
}
func (p fixedProvider) TransformSize() int { return 1024 }
func (p fixedProvider) SampleRate() int    { return p.rate }

type recordingTransport struct {
	mu      sync.Mutex
	frames  []map[string]any
	closed  bool
	sendErr error
}

func (r *recordingTransport) Send(data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.frames = append(r.frames, data.(map[string]any))
	return nil
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestBandsTopBandFollowsNyquist(t *testing.T) {
	bands := Bands(16000)
	require.Len(t, bands, 6)
	assert.Equal(t, "treble", bands[5].Name)
	assert.Equal(t, 8000.0, bands[5].HighHz)
	assert.Equal(t, 24000.0, Bands(48000)[5].HighHz)
}

func TestBandEnergies(t *testing.T) {
	provider := fixedProvider{rate: 16000} // 15.625 Hz per bin
	amplitudes := make([]float32, 512)
	amplitudes[64] = 0.9 // 1000 Hz, inside "mid"

	bands := Bands(16000)
	energies := make([]float64, len(bands))
	BandEnergies(energies, amplitudes, bands, provider.FrequencyForBin)

	assert.Equal(t, 1.0, energies[3], "mid is clamped")
	for i, e := range energies {
		if i != 3 {
			assert.Zero(t, e, bands[i].Name)
		}
	}
}

func TestBandEnergiesEmptyBand(t *testing.T) {
	// At 1024 points and 96 kHz a bin spans 93.75 Hz, so no bin center lands
	// in 20..60 Hz.
	provider := fixedProvider{rate: 96000}
	amplitudes := make([]float32, 512)
	for i := range amplitudes {
		amplitudes[i] = 0.001
	}
	bands := Bands(96000)
	energies := make([]float64, len(bands))
	BandEnergies(energies, amplitudes, bands, provider.FrequencyForBin)

	assert.Zero(t, energies[0])
	assert.InDelta(t, 0.05, energies[5], 1e-6)
}

func TestRefreshSkipsUnchangedSpectrum(t *testing.T) {
	buf, err := spectrum.New(512)
	require.NoError(t, err)
	tr := &recordingTransport{}
	d, err := New(buf, fixedProvider{rate: 16000}, tr, time.Millisecond, nil)
	require.NoError(t, err)

	sent, err := d.Refresh()
	require.NoError(t, err)
	assert.False(t, sent, "nothing published yet")

	values := make([]float32, 512)
	values[64] = 0.01
	require.NoError(t, buf.Publish(values))

	sent, err = d.Refresh()
	require.NoError(t, err)
	assert.True(t, sent)
	sent, err = d.Refresh()
	require.NoError(t, err)
	assert.False(t, sent)

	require.Equal(t, 1, tr.count())
	frame := tr.frames[0]
	assert.Equal(t, "band_energy", frame["type"])
	assert.Equal(t, uint64(1), frame["sequence"])
	assert.Equal(t, 16000, frame["sampleRate"])
	assert.InDelta(t, 0.051, frame["mid"], 0.001) // 0.01 spread over 96 bins
	for _, name := range []string{"sub", "bass", "lowMid", "highMid", "treble"} {
		assert.Contains(t, frame, name)
	}
}

func TestRunSendsAndClosesTransport(t *testing.T) {
	buf, err := spectrum.New(512)
	require.NoError(t, err)
	tr := &recordingTransport{}
	task := system.NewRegistry().Register("display")
	d, err := New(buf, fixedProvider{rate: 16000}, tr, 2*time.Millisecond, task)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	values := make([]float32, 512)
	for i := range 3 {
		values[10] = float32(i + 1)
		require.NoError(t, buf.Publish(values))
		require.Eventually(t, func() bool { return tr.count() == i+1 }, time.Second, time.Millisecond)
	}

	cancel()
	require.NoError(t, <-done)
	assert.True(t, tr.closed)
	assert.Equal(t, uint64(3), task.Cycles())
	assert.Equal(t, system.Stopped, task.State())
}

func TestRunCountsSendErrors(t *testing.T) {
	buf, err := spectrum.New(512)
	require.NoError(t, err)
	tr := &recordingTransport{sendErr: errors.New("observer gone")}
	task := system.NewRegistry().Register("display")
	d, err := New(buf, fixedProvider{rate: 16000}, tr, time.Millisecond, task)
	require.NoError(t, err)
	require.NoError(t, buf.Publish(make([]float32, 512)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	require.Eventually(t, func() bool { return task.Errors() >= 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestNewValidation(t *testing.T) {
	buf, err := spectrum.New(8)
	require.NoError(t, err)
	_, err = New(buf, fixedProvider{rate: 16000}, &recordingTransport{}, 0, nil)
	assert.Error(t, err)
	_, err = New(buf, nil, &recordingTransport{}, time.Second, nil)
	assert.Error(t, err)
}
