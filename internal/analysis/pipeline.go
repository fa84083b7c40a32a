// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"sync/atomic"

	applog "specstream/internal/log"
	"specstream/internal/system"
	"specstream/internal/window"
	"specstream/pkg/bitint"

	"github.com/pkg/errors"
)

// DefaultTransformSize is used when the sound buffer length is not a power of 2.
const DefaultTransformSize = 1024

// normFactor scales int32 samples to [-1.0, 1.0).
const normFactor = 1.0 / float64(0x80000000)

// ErrKernelUnavailable marks a cycle skipped because no transform kernel
// could be acquired or the kernel failed.
var ErrKernelUnavailable = errors.New("analysis: transform kernel unavailable")

// State is the pipeline's position in its two-state machine.
type State int32

const (
	Idle       State = iota // Waiting for a start signal
	Processing              // Snapshot, window, transform, publish
)

func (s State) String() string {
	if s == Processing {
		return "processing"
	}
	return "idle"
}

// TransformSize returns the transform size used for a sound buffer of the given
// length: the length itself when it is a power of 2, DefaultTransformSize otherwise.
func TransformSize(bufferLen int) int {
	if bitint.IsPowerOfTwo(bufferLen) {
		return bufferLen
	}
	return DefaultTransformSize
}

// Pipeline turns sound buffer snapshots into published amplitude vectors, one
// per start signal. All working memory is allocated at construction; with the
// gonum kernel a cycle does not allocate.
type Pipeline struct {
	source    SampleSource
	sink      ResultSink
	config    ConfigSource
	newKernel KernelFactory
	kernel    Kernel
	task      *system.Task

	size    int
	trigger chan struct{}
	state   atomic.Int32
	rate    atomic.Int64

	snapshot   []int32
	input      []float64
	coeffs     []float64
	coeffsLen  int
	coeffsFunc window.Func
	magnitudes []float32
}

// Compile-time checks for interface implementations.
var _ ResultProvider = (*Pipeline)(nil)

// NewPipeline creates an idle pipeline. bufferLen is the capacity of the sound
// buffer behind source; sink must accept TransformSize(bufferLen)/2 values.
// task may be nil.
func NewPipeline(source SampleSource, sink ResultSink, cfg ConfigSource, bufferLen int, newKernel KernelFactory, task *system.Task) (*Pipeline, error) {
	if source == nil || sink == nil || cfg == nil {
		return nil, errors.New("analysis: pipeline requires a source, a sink and a config")
	}
	if bufferLen < 1 {
		return nil, errors.Errorf("analysis: buffer length must be positive, got %d", bufferLen)
	}
	if newKernel == nil {
		newKernel = NewGonumKernel
	}

	size := TransformSize(bufferLen)
	if size != bufferLen {
		applog.Warnf("Analysis: Buffer length %d is not a power of 2, using transform size %d", bufferLen, size)
	}

	p := &Pipeline{
		source:     source,
		sink:       sink,
		config:     cfg,
		newKernel:  newKernel,
		task:       task,
		size:       size,
		trigger:    make(chan struct{}, 1),
		snapshot:   make([]int32, min(bufferLen, size)),
		input:      make([]float64, size),
		coeffs:     make([]float64, size),
		magnitudes: make([]float32, size/2),
	}
	p.rate.Store(int64(cfg.Load().AudioSampleRate))

	applog.Infof("Analysis: Initializing pipeline (Transform size: %d, Bins: %d)", size, size/2)
	return p, nil
}

// Trigger raises the start signal without blocking. Signals raised while a
// cycle is pending coalesce into one.
func (p *Pipeline) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run waits for start signals and processes one cycle per signal until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	applog.Infof("Analysis: Pipeline started")
	defer p.task.SetState(system.Stopped)

	for {
		p.setState(Idle)
		p.task.SetState(system.Waiting)
		select {
		case <-ctx.Done():
			applog.Infof("Analysis: Pipeline stopped")
			return nil
		case <-p.trigger:
		}

		p.setState(Processing)
		p.task.SetState(system.Running)
		if err := p.Process(); err != nil {
			p.task.Fail()
			applog.Warnf("Analysis: Cycle skipped: %v", err)
			continue
		}
		p.task.Cycle()
	}
}

// Process runs one cycle synchronously. On failure the previously published
// spectrum is left in place.
func (p *Pipeline) Process() error {
	// The sound buffer lock is held only for the copy.
	n, rate := p.source.SnapshotInto(p.snapshot)
	if rate > 0 {
		p.rate.Store(int64(rate))
	}

	if p.kernel == nil {
		k, err := p.newKernel(p.size)
		if err != nil {
			return errors.Wrapf(ErrKernelUnavailable, "acquire size %d: %v", p.size, err)
		}
		p.kernel = k
	}

	p.prepareWindow(n, p.config.Load().Window)
	for i := range p.input {
		if i < n {
			p.input[i] = float64(p.snapshot[i]) * normFactor * p.coeffs[i]
		} else {
			p.input[i] = 0 // Zero-padding.
		}
	}

	if err := p.kernel.Magnitudes(p.magnitudes, p.input); err != nil {
		p.kernel = nil
		return errors.Wrapf(ErrKernelUnavailable, "transform: %v", err)
	}
	return p.sink.Publish(p.magnitudes)
}

// prepareWindow recomputes the coefficients when the window or the snapshot
// length changed since the last cycle.
func (p *Pipeline) prepareWindow(n int, f window.Func) {
	if n == p.coeffsLen && f == p.coeffsFunc {
		return
	}
	window.Coefficients(p.coeffs[:n], f)
	p.coeffsLen = n
	p.coeffsFunc = f
	applog.Debugf("Analysis: Window set to %s over %d samples", f, n)
}

// State returns the current state of the state machine.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// TransformSize returns the number of points fed to the transform.
func (p *Pipeline) TransformSize() int { return p.size }

// Bins returns the length of each published amplitude vector.
func (p *Pipeline) Bins() int { return p.size / 2 }

// SampleRate returns the sample rate of the last analyzed snapshot.
func (p *Pipeline) SampleRate() int { return int(p.rate.Load()) }

// FrequencyForBin returns the center frequency (Hz) for an amplitude bin.
func (p *Pipeline) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= p.size/2 {
		return 0.0
	}
	return float64(bin) * (float64(p.rate.Load()) / float64(p.size))
}
