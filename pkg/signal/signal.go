// SPDX-License-Identifier: MIT
//
// Package signal generates test and synthetic audio signals in the int32
// full-scale sample format used by the capture pipeline.
package signal

import "math"

// Amplitude is the default peak level, 90% of int32 full scale.
const Amplitude = 0.9

// Oscillator is a phase-continuous sine generator. Consecutive calls to Fill
// produce one uninterrupted waveform even when the sample rate changes between
// calls. It is not safe for concurrent use.
type Oscillator struct {
	Frequency float64
	Amplitude float64
	phase     float64
}

// NewOscillator returns an oscillator at frequency Hz and the default amplitude.
func NewOscillator(frequency float64) *Oscillator {
	return &Oscillator{Frequency: frequency, Amplitude: Amplitude}
}

// Fill writes len(dst) samples at sampleRate into dst.
func (o *Oscillator) Fill(dst []int32, sampleRate int) {
	if sampleRate <= 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	step := 2 * math.Pi * o.Frequency / float64(sampleRate)
	for i := range dst {
		dst[i] = int32(math.Sin(o.phase) * math.MaxInt32 * o.Amplitude)
		o.phase += step
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// GenerateSineWave returns size samples of a sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int32(math.Sin(2*math.Pi*frequency*t) * math.MaxInt32 * Amplitude)
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		s := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int32(s * math.MaxInt32 * Amplitude)
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in magnitudes within
// [startBin, endBin]. Bounds are clamped to the slice.
func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
