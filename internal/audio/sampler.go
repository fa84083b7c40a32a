// SPDX-License-Identifier: MIT
package audio

import (
	"context"

	applog "specstream/internal/log"
	"specstream/internal/mailbox"
	"specstream/internal/soundbuf"
	"specstream/internal/system"
)

// Sampler is the sampling task: it moves chunks from the mailbox into the
// cyclic sound buffer and returns them to the pool.
type Sampler struct {
	mailbox *mailbox.Mailbox
	buffer  *soundbuf.Buffer
	task    *system.Task
}

// NewSampler returns the sampling task. task may be nil.
func NewSampler(mb *mailbox.Mailbox, buffer *soundbuf.Buffer, task *system.Task) *Sampler {
	return &Sampler{mailbox: mb, buffer: buffer, task: task}
}

// Run drains the mailbox until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	applog.Infof("Sampler: Started (Pool: %d chunks of %d samples)", s.mailbox.PoolSize(), s.mailbox.ChunkSize())
	defer s.task.SetState(system.Stopped)

	for {
		s.task.SetState(system.Waiting)
		chunk, err := s.mailbox.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				applog.Infof("Sampler: Stopped")
				return nil
			}
			s.task.Fail()
			applog.Warnf("Sampler: Receive failed: %v", err)
			continue
		}

		s.task.SetState(system.Running)
		if chunk.Len() > 0 {
			s.buffer.Write(chunk.Samples(), chunk.SampleRate())
		}
		if err := s.mailbox.Release(chunk); err != nil {
			s.task.Fail()
			applog.Errorf("Sampler: Release failed: %v", err)
			continue
		}
		s.task.Cycle()
	}
}
