// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"time"

	applog "specstream/internal/log"
	"specstream/pkg/signal"

	"github.com/pkg/errors"
)

// Source drives a Sink with captured audio until ctx is done.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// blockDuration is the real time covered by n samples at rate.
func blockDuration(n, rate int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// ToneSource synthesizes a sine wave in real time. It reads the live sample
// rate for every block, so a rate change alters both pacing and pitch mapping.
type ToneSource struct {
	osc       *signal.Oscillator
	chunkSize int
	config    ConfigSource
}

var _ Source = (*ToneSource)(nil)

// NewToneSource returns a tone generator producing chunkSize-sample blocks.
func NewToneSource(frequency float64, chunkSize int, cfg ConfigSource) (*ToneSource, error) {
	if chunkSize < 1 {
		return nil, errors.Errorf("tone: chunk size must be positive, got %d", chunkSize)
	}
	if frequency <= 0 {
		return nil, errors.Errorf("tone: frequency must be positive, got %f", frequency)
	}
	return &ToneSource{osc: signal.NewOscillator(frequency), chunkSize: chunkSize, config: cfg}, nil
}

func (s *ToneSource) Run(ctx context.Context, sink Sink) error {
	block := make([]int32, s.chunkSize)
	rate := s.config.Load().AudioSampleRate
	ticker := time.NewTicker(blockDuration(s.chunkSize, rate))
	defer ticker.Stop()
	applog.Infof("Tone: Generating %.1f Hz at %d Hz in blocks of %d", s.osc.Frequency, rate, s.chunkSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if current := s.config.Load().AudioSampleRate; current != rate {
			rate = current
			ticker.Reset(blockDuration(s.chunkSize, rate))
			applog.Infof("Tone: Sample rate changed to %d Hz", rate)
		}
		s.osc.Fill(block, rate)
		sink.BufferFilled(block)
	}
}
