// SPDX-License-Identifier: MIT
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"specstream/internal/window"
)

// wireConfig is the JSON form served on GET /config and accepted on PUT.
// The sampling delay travels in milliseconds.
type wireConfig struct {
	AmplitudeSamplingDelay int64  `json:"amplitudeSamplingDelay"`
	AudioSamplingFrequency int    `json:"audioSamplingFrequency"`
	ClientIP               string `json:"clientIp"`
	ClientPort             uint16 `json:"clientPort"`
	WindowType             string `json:"windowType"`
}

// wirePatch mirrors wireConfig with every field optional. The window may be
// sent either by name or by its numeric index.
type wirePatch struct {
	AmplitudeSamplingDelay *int64          `json:"amplitudeSamplingDelay"`
	AudioSamplingFrequency *int            `json:"audioSamplingFrequency"`
	ClientIP               *string         `json:"clientIp"`
	ClientPort             *int            `json:"clientPort"`
	WindowType             json.RawMessage `json:"windowType"`
}

// MarshalJSON encodes the configuration in the HTTP wire format.
func (c SystemConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireConfig{
		AmplitudeSamplingDelay: c.SamplingPeriod.Milliseconds(),
		AudioSamplingFrequency: c.AudioSampleRate,
		ClientIP:               c.Destination.String(),
		ClientPort:             c.DestinationPort,
		WindowType:             c.Window.String(),
	})
}

// ParsePatch decodes a wire-format update. Unknown keys are ignored; a field
// that is present but malformed fails the whole patch.
func ParsePatch(data []byte) (Patch, error) {
	var p Patch
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return p, fmt.Errorf("empty payload")
	}

	var w wirePatch
	if err := json.Unmarshal(data, &w); err != nil {
		return p, fmt.Errorf("malformed payload: %w", err)
	}

	if w.AmplitudeSamplingDelay != nil {
		ms := *w.AmplitudeSamplingDelay
		// Checked before scaling: a large count would wrap into the valid range.
		if ms < int64(MinSamplingPeriod/time.Millisecond) || ms > int64(MaxSamplingPeriod/time.Millisecond) {
			return Patch{}, fmt.Errorf("amplitudeSamplingDelay %d outside [%d, %d]",
				ms, MinSamplingPeriod.Milliseconds(), MaxSamplingPeriod.Milliseconds())
		}
		d := time.Duration(ms) * time.Millisecond
		p.SamplingPeriod = &d
	}
	if w.AudioSamplingFrequency != nil {
		rate := *w.AudioSamplingFrequency
		p.AudioSampleRate = &rate
	}
	if w.ClientIP != nil {
		addr, err := parseIPv4(*w.ClientIP)
		if err != nil {
			return Patch{}, fmt.Errorf("clientIp: %w", err)
		}
		p.Destination = &addr
	}
	if w.ClientPort != nil {
		if *w.ClientPort < 1 || *w.ClientPort > 65535 {
			return Patch{}, fmt.Errorf("clientPort %d outside [1, 65535]", *w.ClientPort)
		}
		port := uint16(*w.ClientPort)
		p.DestinationPort = &port
	}
	if len(w.WindowType) > 0 && string(w.WindowType) != "null" {
		f, err := parseWireWindow(w.WindowType)
		if err != nil {
			return Patch{}, fmt.Errorf("windowType: %w", err)
		}
		p.Window = &f
	}
	return p, nil
}

func parseWireWindow(raw json.RawMessage) (window.Func, error) {
	var idx int
	if err := json.Unmarshal(raw, &idx); err == nil {
		f := window.Func(idx)
		if !f.Valid() {
			return window.Rectangle, fmt.Errorf("unknown window index %d", idx)
		}
		return f, nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return window.Rectangle, fmt.Errorf("expected a name or index")
	}
	return window.Parse(name)
}
