// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"os"
	"time"

	applog "specstream/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// LoadWAV decodes a PCM WAV file into int32 full-scale mono samples, keeping
// the first channel. It returns the file's sample rate.
func LoadWAV(path string) ([]int32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "wav: open")
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, 0, errors.Errorf("wav: %s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, errors.Wrap(err, "wav: decode")
	}
	return toMonoInt32(buf, int(dec.BitDepth)), int(dec.SampleRate), nil
}

// toMonoInt32 takes the first channel of buf and scales it to 32-bit full scale.
func toMonoInt32(buf *audio.IntBuffer, bitDepth int) []int32 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	shift := 32 - bitDepth
	if bitDepth <= 0 || bitDepth > 32 {
		shift = 0
	}
	if bitDepth == 8 {
		// 8-bit PCM is unsigned.
		out := make([]int32, len(buf.Data)/channels)
		for i := range out {
			out[i] = int32(buf.Data[i*channels]-128) << 24
		}
		return out
	}
	out := make([]int32, len(buf.Data)/channels)
	for i := range out {
		out[i] = int32(buf.Data[i*channels]) << shift
	}
	return out
}

// WAVSource replays a decoded file in chunkSize blocks at the file's own pace,
// looping at the end. Blocks are stamped by Capture with the live sample rate.
type WAVSource struct {
	samples    []int32
	sampleRate int
	chunkSize  int
}

var _ Source = (*WAVSource)(nil)

// NewWAVSource loads path for replay.
func NewWAVSource(path string, chunkSize int) (*WAVSource, error) {
	if chunkSize < 1 {
		return nil, errors.Errorf("wav: chunk size must be positive, got %d", chunkSize)
	}
	samples, rate, err := LoadWAV(path)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 || rate <= 0 {
		return nil, errors.Errorf("wav: %s holds no audio", path)
	}
	applog.Infof("WAV: Loaded %s (%d samples at %d Hz)", path, len(samples), rate)
	return &WAVSource{samples: samples, sampleRate: rate, chunkSize: chunkSize}, nil
}

// SampleRate returns the file's sample rate.
func (s *WAVSource) SampleRate() int { return s.sampleRate }

func (s *WAVSource) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(blockDuration(s.chunkSize, s.sampleRate))
	defer ticker.Stop()

	pos := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		end := min(pos+s.chunkSize, len(s.samples))
		sink.BufferFilled(s.samples[pos:end])
		pos = end
		if pos == len(s.samples) {
			pos = 0
		}
	}
}
