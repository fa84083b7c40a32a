// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"specstream/internal/window"
)

// SystemConfig is the live configuration shared by every task. Values are
// immutable once stored; readers get a consistent copy of all fields.
type SystemConfig struct {
	SamplingPeriod  time.Duration // Interval between streamed spectra
	AudioSampleRate int           // Rate stamped on captured chunks (Hz)
	Destination     netip.Addr    // IPv4 receiver of the spectrum datagrams
	DestinationPort uint16
	Window          window.Func
}

// DestinationAddrPort joins the destination address and port.
func (c SystemConfig) DestinationAddrPort() netip.AddrPort {
	return netip.AddrPortFrom(c.Destination, c.DestinationPort)
}

// Validate reports the first field outside its accepted range.
func (c SystemConfig) Validate() error {
	if c.SamplingPeriod < MinSamplingPeriod || c.SamplingPeriod > MaxSamplingPeriod {
		return fmt.Errorf("sampling period %s outside [%s, %s]", c.SamplingPeriod, MinSamplingPeriod, MaxSamplingPeriod)
	}
	if c.SamplingPeriod%time.Millisecond != 0 {
		return fmt.Errorf("sampling period %s is not a whole number of milliseconds", c.SamplingPeriod)
	}
	if c.AudioSampleRate < MinSampleRate || c.AudioSampleRate > MaxSampleRate {
		return fmt.Errorf("sample rate %d outside [%d, %d]", c.AudioSampleRate, MinSampleRate, MaxSampleRate)
	}
	if !c.Destination.Is4() {
		return fmt.Errorf("destination %s is not an IPv4 address", c.Destination)
	}
	if c.DestinationPort == 0 {
		return fmt.Errorf("destination port must be non-zero")
	}
	if !c.Window.Valid() {
		return fmt.Errorf("unknown window %s", c.Window)
	}
	return nil
}

// Store publishes the live SystemConfig. Load is lock-free; writers are
// serialized so a read-modify-write patch never loses a concurrent update.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[SystemConfig]
	version atomic.Uint64
}

// NewStore validates initial and makes it the current configuration.
func NewStore(initial SystemConfig) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	s.current.Store(&initial)
	return s, nil
}

// Load returns a copy of the current configuration.
func (s *Store) Load() SystemConfig {
	return *s.current.Load()
}

// Version counts successful updates since construction.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Apply merges patch into the current configuration. An invalid result leaves
// the store untouched and returns the error alongside the unchanged value.
func (s *Store) Apply(patch Patch) (SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.current.Load()
	next := patch.apply(cur)
	if err := next.Validate(); err != nil {
		return cur, err
	}
	if next == cur {
		return cur, nil
	}
	s.current.Store(&next)
	s.version.Add(1)
	return next, nil
}

// Patch lists the fields of a partial update. Nil fields are left as they are.
type Patch struct {
	SamplingPeriod  *time.Duration
	AudioSampleRate *int
	Destination     *netip.Addr
	DestinationPort *uint16
	Window          *window.Func
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.SamplingPeriod == nil && p.AudioSampleRate == nil && p.Destination == nil &&
		p.DestinationPort == nil && p.Window == nil
}

func (p Patch) apply(c SystemConfig) SystemConfig {
	if p.SamplingPeriod != nil {
		c.SamplingPeriod = *p.SamplingPeriod
	}
	if p.AudioSampleRate != nil {
		c.AudioSampleRate = *p.AudioSampleRate
	}
	if p.Destination != nil {
		c.Destination = *p.Destination
	}
	if p.DestinationPort != nil {
		c.DestinationPort = *p.DestinationPort
	}
	if p.Window != nil {
		c.Window = *p.Window
	}
	return c
}
