// SPDX-License-Identifier: MIT
/*
Package audio implements the capture side of the pipeline:
- Capture, the interrupt-context hand-off into the sample mailbox
- Sampler, the task draining the mailbox into the cyclic sound buffer
- Sources that drive Capture: PortAudio input, WAV file replay, sine tone

Thread Safety:
- BufferFilled never blocks and never allocates; a full pool drops the chunk
- Counters use atomic operations so the callback needs no locks
- The PortAudio callback locks its OS thread while running
*/
package audio

import (
	"sync/atomic"

	"specstream/internal/config"
	applog "specstream/internal/log"
	"specstream/internal/mailbox"
	"specstream/internal/system"
)

// ConfigSource supplies the live configuration.
type ConfigSource interface {
	Load() config.SystemConfig
}

// Sink receives captured sample blocks. Sources call it from their capture
// context.
type Sink interface {
	BufferFilled(samples []int32)
}

// Capture posts captured blocks into the mailbox, stamped with the sample rate
// in the live configuration.
type Capture struct {
	mailbox *mailbox.Mailbox
	config  ConfigSource
	task    *system.Task

	dropping atomic.Bool // Inside a burst of pool exhaustion
}

var _ Sink = (*Capture)(nil)

// NewCapture returns the capture hand-off. task may be nil.
func NewCapture(mb *mailbox.Mailbox, cfg ConfigSource, task *system.Task) *Capture {
	return &Capture{mailbox: mb, config: cfg, task: task}
}

// BufferFilled is the capture interrupt. Blocks longer than the mailbox chunk
// size are split across several chunks.
func (c *Capture) BufferFilled(samples []int32) {
	rate := c.config.Load().AudioSampleRate
	for len(samples) > 0 {
		chunk, err := c.mailbox.Alloc()
		if err != nil {
			c.task.Fail()
			if !c.dropping.Swap(true) {
				applog.Warnf("Capture: %v, dropping samples", err)
			}
			applog.Debugf("Capture: Dropped %d samples", len(samples))
			return
		}
		c.dropping.Store(false)

		n := chunk.Fill(samples, rate)
		if err := c.mailbox.Post(chunk); err != nil {
			c.task.Fail()
			applog.Errorf("Capture: Post failed: %v", err)
			if err := c.mailbox.Release(chunk); err != nil {
				applog.Errorf("Capture: %v", err)
			}
			return
		}
		samples = samples[n:]
	}
	c.task.Cycle()
}
