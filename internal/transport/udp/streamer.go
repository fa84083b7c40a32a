// SPDX-License-Identifier: MIT
package udp

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"specstream/internal/config"
	applog "specstream/internal/log"
	"specstream/internal/system"

	"github.com/pkg/errors"
)

// Trigger raises the spectral pipeline's start signal.
type Trigger interface {
	Trigger()
}

// SpectrumReader is the read side of the published spectrum.
type SpectrumReader interface {
	ReadSnapshot(dest []float32) (uint64, error)
	Len() int
}

// ConfigSource supplies the live configuration.
type ConfigSource interface {
	Load() config.SystemConfig
}

// NetworkLock serializes use of the network interface.
type NetworkLock interface {
	Do(fn func() error) error
}

/*
Datagram layout: the amplitude vector and nothing else.

	+----------------+----------------+-----+--------------------+
	| amplitude[0]   | amplitude[1]   | ... | amplitude[N/2 - 1] |
	| float32 LE     | float32 LE     |     | float32 LE         |
	+----------------+----------------+-----+--------------------+

N is the transform size, so every datagram is N/2 * 4 bytes.
*/

// Streamer is the streaming task. Each cycle it triggers the pipeline, sleeps
// for the configured period, then sends the latest spectrum under the network
// lock. The datagram therefore carries the result of the previous trigger.
type Streamer struct {
	sender   *UDPSender
	pipeline Trigger
	spectrum SpectrumReader
	config   ConfigSource
	netif    NetworkLock
	task     *system.Task

	values []float32 // Snapshot of the spectrum buffer
	packet []byte    // Encoded datagram, len(values)*4
}

// NewStreamer wires a streaming task. task may be nil.
func NewStreamer(sender *UDPSender, pipeline Trigger, spectrum SpectrumReader, cfg ConfigSource, netif NetworkLock, task *system.Task) (*Streamer, error) {
	if sender == nil {
		return nil, errors.New("Streamer: UDP sender cannot be nil")
	}
	if pipeline == nil || spectrum == nil || cfg == nil || netif == nil {
		return nil, errors.New("Streamer: pipeline, spectrum, config and network lock are required")
	}
	n := spectrum.Len()
	applog.Infof("Streamer: Initializing (Bins: %d, Datagram: %d bytes)", n, n*4)
	return &Streamer{
		sender:   sender,
		pipeline: pipeline,
		spectrum: spectrum,
		config:   cfg,
		netif:    netif,
		task:     task,
		values:   make([]float32, n),
		packet:   make([]byte, n*4),
	}, nil
}

// Run streams until ctx is done or the socket is closed. Send failures other
// than a closed socket are logged and the loop continues.
func (s *Streamer) Run(ctx context.Context) error {
	defer s.task.SetState(system.Stopped)

	period := s.config.Load().SamplingPeriod
	timer := time.NewTimer(period)
	defer timer.Stop()
	applog.Infof("Streamer: Started (Period: %s)", period)

	for {
		s.pipeline.Trigger()

		s.task.SetState(system.Waiting)
		select {
		case <-ctx.Done():
			applog.Infof("Streamer: Stopped")
			return nil
		case <-timer.C:
		}
		s.task.SetState(system.Running)

		err := s.netif.Do(s.sendSnapshot)
		switch {
		case err == nil:
			s.task.Cycle()
		case IsFatal(err):
			s.task.Fail()
			applog.Errorf("Streamer: Socket unusable, stopping: %v", err)
			return err
		case IsTransient(err):
			s.task.Fail()
			applog.Warnf("Streamer: Transient send failure: %v", err)
		default:
			s.task.Fail()
			applog.Errorf("Streamer: Send failed: %v", err)
		}

		// A period changed through the config store applies from the next sleep.
		period = s.config.Load().SamplingPeriod
		timer.Reset(period)
	}
}

// sendSnapshot reads the spectrum and sends it to the destination currently
// in the config store. Called with the network lock held.
func (s *Streamer) sendSnapshot() error {
	seq, err := s.spectrum.ReadSnapshot(s.values)
	if err != nil {
		return errors.Wrap(err, "read spectrum")
	}
	for i, v := range s.values {
		binary.LittleEndian.PutUint32(s.packet[i*4:], math.Float32bits(v))
	}

	dest := s.config.Load().DestinationAddrPort()
	if err := s.sender.SendTo(s.packet, dest); err != nil {
		return err
	}
	applog.Debugf("Streamer: Sent spectrum %d to %s (%d bytes)", seq, dest, len(s.packet))
	return nil
}

// Close releases the socket.
func (s *Streamer) Close() error {
	return s.sender.Close()
}

// Ensure Streamer satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Streamer)(nil)
