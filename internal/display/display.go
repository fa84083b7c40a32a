// SPDX-License-Identifier: MIT

// Package display is the optional observer of the published spectrum. It
// reduces each new amplitude vector to band energies and hands a frame to a
// transport.
package display

import (
	"context"
	"time"

	"specstream/internal/analysis"
	applog "specstream/internal/log"
	"specstream/internal/system"
	"specstream/internal/transport"

	"github.com/pkg/errors"
)

// SpectrumReader is the read side of the spectrum buffer.
type SpectrumReader interface {
	ReadSnapshot(dest []float32) (uint64, error)
	Len() int
}

// Task periodically reads the spectrum and sends band energy frames.
type Task struct {
	spectrum  SpectrumReader
	provider  analysis.ResultProvider
	transport transport.Transport
	interval  time.Duration
	task      *system.Task

	values   []float32
	energies []float64
	lastSeq  uint64
}

// New returns the display task. task may be nil.
func New(spectrum SpectrumReader, provider analysis.ResultProvider, tr transport.Transport, interval time.Duration, task *system.Task) (*Task, error) {
	if interval <= 0 {
		return nil, errors.Errorf("display: interval must be positive, got %s", interval)
	}
	if spectrum == nil || provider == nil || tr == nil {
		return nil, errors.New("display: spectrum, provider and transport are required")
	}
	return &Task{
		spectrum:  spectrum,
		provider:  provider,
		transport: tr,
		interval:  interval,
		task:      task,
		values:    make([]float32, spectrum.Len()),
	}, nil
}

// Run sends a frame every interval while new spectra are being published. It
// closes the transport when ctx is done.
func (d *Task) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	defer d.transport.Close()
	defer d.task.SetState(system.Stopped)
	applog.Infof("Display: Started (Interval: %s)", d.interval)

	for {
		d.task.SetState(system.Waiting)
		select {
		case <-ctx.Done():
			applog.Infof("Display: Stopped")
			return nil
		case <-ticker.C:
		}

		d.task.SetState(system.Running)
		sent, err := d.Refresh()
		if err != nil {
			d.task.Fail()
			applog.Warnf("Display: %v", err)
			continue
		}
		if sent {
			d.task.Cycle()
		}
	}
}

// Refresh sends one frame if a spectrum newer than the last one sent has been
// published. It reports whether a frame was sent.
func (d *Task) Refresh() (bool, error) {
	seq, err := d.spectrum.ReadSnapshot(d.values)
	if err != nil {
		return false, errors.Wrap(err, "read spectrum")
	}
	if seq == 0 || seq == d.lastSeq {
		return false, nil
	}
	d.lastSeq = seq

	rate := d.provider.SampleRate()
	bands := Bands(rate)
	if len(d.energies) != len(bands) {
		d.energies = make([]float64, len(bands))
	}
	BandEnergies(d.energies, d.values, bands, d.provider.FrequencyForBin)

	frame := map[string]any{
		"type":       "band_energy",
		"sequence":   seq,
		"sampleRate": rate,
	}
	for i, band := range bands {
		frame[band.Name] = d.energies[i]
	}
	if err := d.transport.Send(frame); err != nil {
		return false, errors.Wrap(err, "send frame")
	}
	return true, nil
}
