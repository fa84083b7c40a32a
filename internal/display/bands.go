// SPDX-License-Identifier: MIT
package display

import "math"

// energyScale maps the RMS amplitude of a band onto the 0..1 display range.
const energyScale = 50.0

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// Bands returns the display bands for a signal sampled at sampleRate. The top
// band extends to the Nyquist frequency.
func Bands(sampleRate int) []FrequencyBand {
	return []FrequencyBand{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: float64(sampleRate) / 2},
	}
}

// BinFrequency maps an amplitude bin to its center frequency in Hz.
type BinFrequency func(bin int) float64

// BandEnergies writes one value per band into dst: the RMS of the amplitudes
// whose bin frequency lies in [LowHz, HighHz), scaled and clamped to [0, 1].
// A band with no bins reports 0.
func BandEnergies(dst []float64, amplitudes []float32, bands []FrequencyBand, freq BinFrequency) {
	counts := make([]int, len(bands))
	for i := range dst {
		dst[i] = 0
	}

	for bin, amp := range amplitudes {
		f := freq(bin)
		for i, band := range bands {
			if f >= band.LowHz && f < band.HighHz {
				dst[i] += float64(amp) * float64(amp)
				counts[i]++
				break
			}
		}
	}

	for i := range bands {
		if counts[i] == 0 {
			dst[i] = 0
			continue
		}
		dst[i] = math.Min(1.0, math.Sqrt(dst[i]/float64(counts[i]))*energyScale)
	}
}
