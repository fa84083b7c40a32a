// SPDX-License-Identifier: MIT
package analysis

import "specstream/internal/config"

// SampleSource is the read side of the cyclic sound buffer. SnapshotInto copies
// the newest samples into dest under the buffer's lock and reports how many
// were copied and the sample rate they were captured at.
type SampleSource interface {
	SnapshotInto(dest []int32) (n int, sampleRate int)
}

// ResultSink receives each completed amplitude vector.
type ResultSink interface {
	Publish(values []float32) error
}

// ConfigSource supplies the live configuration, read once per cycle.
type ConfigSource interface {
	Load() config.SystemConfig
}

// ResultProvider describes the published spectrum for consumers that map bins
// to frequencies, such as the display task.
type ResultProvider interface {
	FrequencyForBin(bin int) float64 // Center frequency (Hz) of an amplitude bin.
	TransformSize() int              // Number of points fed to the transform.
	SampleRate() int                 // Sample rate of the last analyzed snapshot.
}
