// SPDX-License-Identifier: MIT
package analysis

import (
	"math/cmplx"

	"specstream/pkg/bitint"

	"github.com/mjibson/go-dsp/fft"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Kernel computes single-sided amplitudes of a real signal. Magnitudes writes
// size/2 values into dst for an input of exactly size samples.
type Kernel interface {
	Size() int
	Magnitudes(dst []float32, input []float64) error
}

// KernelFactory acquires a kernel for a transform size. It may fail, in which
// case the pipeline skips the cycle and tries again on the next trigger.
type KernelFactory func(size int) (Kernel, error)

// KernelByName returns the factory for a configured kernel name.
func KernelByName(name string) (KernelFactory, error) {
	switch name {
	case "gonum", "":
		return NewGonumKernel, nil
	case "godsp":
		return NewGoDSPKernel, nil
	default:
		return nil, errors.Errorf("analysis: unknown fft kernel %q", name)
	}
}

// Compile-time checks for interface implementations.
var _ Kernel = (*gonumKernel)(nil)
var _ Kernel = (*godspKernel)(nil)

type gonumKernel struct {
	fft    *fourier.FFT
	size   int
	coeffs []complex128 // size/2 + 1 for real input
}

// NewGonumKernel builds a kernel on gonum's real FFT. It allocates only here.
func NewGonumKernel(size int) (Kernel, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, errors.Errorf("analysis: transform size must be a power of 2, got %d", size)
	}
	return &gonumKernel{
		fft:    fourier.NewFFT(size),
		size:   size,
		coeffs: make([]complex128, size/2+1),
	}, nil
}

func (k *gonumKernel) Size() int { return k.size }

func (k *gonumKernel) Magnitudes(dst []float32, input []float64) error {
	if err := checkLengths(k.size, dst, input); err != nil {
		return err
	}
	k.fft.Coefficients(k.coeffs, input)
	scale := 2 / float64(k.size)
	for i := range dst {
		dst[i] = float32(cmplx.Abs(k.coeffs[i]) * scale)
	}
	return nil
}

type godspKernel struct {
	size int
}

// NewGoDSPKernel builds a kernel on mjibson/go-dsp. Unlike the gonum kernel it
// allocates on every call, since FFTReal returns a fresh slice.
func NewGoDSPKernel(size int) (Kernel, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, errors.Errorf("analysis: transform size must be a power of 2, got %d", size)
	}
	return &godspKernel{size: size}, nil
}

func (k *godspKernel) Size() int { return k.size }

func (k *godspKernel) Magnitudes(dst []float32, input []float64) error {
	if err := checkLengths(k.size, dst, input); err != nil {
		return err
	}
	out := fft.FFTReal(input)
	scale := 2 / float64(k.size)
	for i := range dst {
		dst[i] = float32(cmplx.Abs(out[i]) * scale)
	}
	return nil
}

func checkLengths(size int, dst []float32, input []float64) error {
	if len(input) != size || len(dst) != size/2 {
		return errors.Errorf("analysis: kernel of size %d given %d inputs and %d outputs", size, len(input), len(dst))
	}
	return nil
}
