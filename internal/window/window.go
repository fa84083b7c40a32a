// SPDX-License-Identifier: MIT
package window

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// Func selects the window applied to the sample snapshot before the transform.
// The numeric values are part of the config wire format and must not be reordered.
type Func int

const (
	Rectangle Func = iota
	Hann
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Lanczos
	Nuttall

	numFuncs
)

var names = [...]string{
	Rectangle:       "rectangle",
	Hann:            "hann",
	Hamming:         "hamming",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	BartlettHann:    "bartletthann",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

// String returns the wire name of the window.
func (f Func) String() string {
	if !f.Valid() {
		return fmt.Sprintf("window(%d)", int(f))
	}
	return names[f]
}

// Valid reports whether f names a known window.
func (f Func) Valid() bool {
	return f >= 0 && f < numFuncs
}

// Parse converts a window name (case-insensitive) to a Func.
func Parse(name string) (Func, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rectangle", "rectangular", "none":
		return Rectangle, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangle, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// Coefficients fills coeffs with the window sequence for f. The sequence has
// the same length as coeffs, so it matches whatever snapshot length it is sized for.
func Coefficients(coeffs []float64, f Func) {
	// gonum windows multiply in place, so start from a unit sequence.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch f {
	case Rectangle:
		window.Rectangular(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	}
}
