// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"time"

	"specstream/internal/window"

	"gopkg.in/yaml.v3"
)

// Config represents the startup configuration, loaded from YAML.
type Config struct {
	LogLevel string         `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio    AudioConfig    `yaml:"audio"`     // Capture source settings.
	Pipeline PipelineConfig `yaml:"pipeline"`  // Mailbox, sound buffer and transform settings.
	Stream   StreamConfig   `yaml:"stream"`    // UDP spectrum streaming.
	HTTP     HTTPConfig     `yaml:"http"`      // HTTP configuration server.
	Display  DisplayConfig  `yaml:"display"`   // Optional websocket display task.
	Network  NetworkConfig  `yaml:"network"`   // Network interface bring-up.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	Source        string  `yaml:"source"`         // "portaudio", "wav" or "tone".
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index (-1 for default).
	SampleRate    int     `yaml:"sample_rate"`    // Initial audio sample rate in Hz.
	ChunkSize     int     `yaml:"chunk_size"`     // Samples delivered per capture callback.
	LowLatency    bool    `yaml:"low_latency"`    // Request low latency settings from PortAudio.
	WAVFile       string  `yaml:"wav_file"`       // Input file for the "wav" source.
	ToneFrequency float64 `yaml:"tone_frequency"` // Sine frequency for the "tone" source.
}

// PipelineConfig holds buffer sizing and transform settings.
type PipelineConfig struct {
	MailboxPoolSize int    `yaml:"mailbox_pool_size"` // Capture chunks in flight.
	SoundBufferSize int    `yaml:"sound_buffer_size"` // Cyclic buffer capacity; the transform size when a power of 2.
	FFTKernel       string `yaml:"fft_kernel"`        // "gonum" or "godsp".
	Window          string `yaml:"window"`            // Initial window function name.
}

// StreamConfig holds UDP streaming settings.
type StreamConfig struct {
	Enabled            bool          `yaml:"enabled"`
	LocalAddress       string        `yaml:"local_address"`       // Local bind address of the UDP socket.
	DestinationAddress string        `yaml:"destination_address"` // Initial IPv4 destination.
	DestinationPort    uint16        `yaml:"destination_port"`    // Initial destination port.
	Period             time.Duration `yaml:"period"`              // Initial sampling period.
}

// HTTPConfig holds HTTP configuration server settings.
type HTTPConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ListenAddress  string        `yaml:"listen_address"`
	AcceptTimeout  time.Duration `yaml:"accept_timeout"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

// DisplayConfig holds display task settings.
type DisplayConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ListenAddress string        `yaml:"listen_address"` // Empty logs frames instead of serving a websocket.
	Interval      time.Duration `yaml:"interval"`
}

// NetworkConfig selects the interface whose link is awaited at startup.
type NetworkConfig struct {
	Interface string `yaml:"interface"` // Empty selects the first up, non-loopback interface.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Source:        DefaultAudioSource,
			InputDevice:   DefaultDeviceID,
			SampleRate:    DefaultSampleRate,
			ChunkSize:     DefaultChunkSize,
			ToneFrequency: DefaultToneFrequency,
		},
		Pipeline: PipelineConfig{
			MailboxPoolSize: DefaultMailboxPoolSize,
			SoundBufferSize: DefaultSoundBufferSize,
			FFTKernel:       DefaultFFTKernel,
			Window:          DefaultWindow,
		},
		Stream: StreamConfig{
			Enabled:            true,
			LocalAddress:       DefaultStreamLocalAddress,
			DestinationAddress: DefaultStreamDestination,
			DestinationPort:    DefaultStreamPort,
			Period:             DefaultSamplingPeriod,
		},
		HTTP: HTTPConfig{
			Enabled:        true,
			ListenAddress:  DefaultHTTPListenAddress,
			AcceptTimeout:  DefaultHTTPAcceptTimeout,
			ReceiveTimeout: DefaultHTTPReceiveTimeout,
			PollInterval:   DefaultHTTPPollInterval,
		},
		Display: DisplayConfig{
			Enabled:       false,
			ListenAddress: DefaultDisplayListenAddress,
			Interval:      DefaultDisplayInterval,
		},
		Network: NetworkConfig{
			Interface: DefaultNetworkIfName,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is
// empty, it looks for "config.yaml" in the working directory and falls back to
// built-in defaults when none exists. Environment overrides are applied after
// loading and the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Audio.Source {
	case SourcePortAudio, SourceTone:
	case SourceWAV:
		if c.Audio.WAVFile == "" {
			return fmt.Errorf("audio.wav_file must be set when audio.source is %q", SourceWAV)
		}
	default:
		return fmt.Errorf("audio.source %q is not one of portaudio, wav, tone", c.Audio.Source)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %d outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.ChunkSize < 1 || c.Audio.ChunkSize > MaxBufferFrames {
		return fmt.Errorf("audio.chunk_size %d outside [1, %d]", c.Audio.ChunkSize, MaxBufferFrames)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d is invalid", c.Audio.InputDevice)
	}

	if c.Pipeline.MailboxPoolSize < 1 || c.Pipeline.MailboxPoolSize > MaxMailboxPoolSize {
		return fmt.Errorf("pipeline.mailbox_pool_size %d outside [1, %d]", c.Pipeline.MailboxPoolSize, MaxMailboxPoolSize)
	}
	if c.Pipeline.SoundBufferSize < 2 || c.Pipeline.SoundBufferSize > MaxBufferFrames {
		return fmt.Errorf("pipeline.sound_buffer_size %d outside [2, %d]", c.Pipeline.SoundBufferSize, MaxBufferFrames)
	}
	switch c.Pipeline.FFTKernel {
	case KernelGonum, KernelGoDSP:
	default:
		return fmt.Errorf("pipeline.fft_kernel %q is not one of gonum, godsp", c.Pipeline.FFTKernel)
	}
	if _, err := window.Parse(c.Pipeline.Window); err != nil {
		return fmt.Errorf("pipeline.window: %w", err)
	}

	if _, err := parseIPv4(c.Stream.DestinationAddress); err != nil {
		return fmt.Errorf("stream.destination_address: %w", err)
	}
	if c.Stream.DestinationPort == 0 {
		return fmt.Errorf("stream.destination_port must be non-zero")
	}
	if c.Stream.Period < MinSamplingPeriod || c.Stream.Period > MaxSamplingPeriod {
		return fmt.Errorf("stream.period %s outside [%s, %s]", c.Stream.Period, MinSamplingPeriod, MaxSamplingPeriod)
	}
	if c.Stream.Period%time.Millisecond != 0 {
		return fmt.Errorf("stream.period %s is not a whole number of milliseconds", c.Stream.Period)
	}

	if c.HTTP.Enabled {
		if c.HTTP.ListenAddress == "" {
			return fmt.Errorf("http.listen_address must be set when http is enabled")
		}
		if c.HTTP.AcceptTimeout <= 0 || c.HTTP.ReceiveTimeout <= 0 {
			return fmt.Errorf("http timeouts must be positive")
		}
		if c.HTTP.PollInterval < 0 {
			return fmt.Errorf("http.poll_interval must not be negative")
		}
	}

	if c.Display.Enabled && c.Display.Interval <= 0 {
		return fmt.Errorf("display.interval must be positive when display is enabled")
	}
	return nil
}

// System builds the initial live configuration from the startup settings.
func (c *Config) System() (SystemConfig, error) {
	addr, err := parseIPv4(c.Stream.DestinationAddress)
	if err != nil {
		return SystemConfig{}, err
	}
	w, err := window.Parse(c.Pipeline.Window)
	if err != nil {
		return SystemConfig{}, err
	}
	sc := SystemConfig{
		SamplingPeriod:  c.Stream.Period,
		AudioSampleRate: c.Audio.SampleRate,
		Destination:     addr,
		DestinationPort: c.Stream.DestinationPort,
		Window:          w,
	}
	return sc, sc.Validate()
}

// applyEnvOverrides applies ENV_* variables on top of the file or defaults.
// Unparseable values are reported and ignored.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("ENV_AUDIO_SOURCE"); ok {
		c.Audio.Source = val
	}
	if val, ok := os.LookupEnv("ENV_STREAM_DESTINATION"); ok {
		c.Stream.DestinationAddress = val
	}
	if val, ok := os.LookupEnv("ENV_STREAM_PORT"); ok {
		if port, err := strconv.ParseUint(val, 10, 16); err == nil {
			c.Stream.DestinationPort = uint16(port)
		} else {
			fmt.Fprintf(os.Stderr, "configuration: ignoring ENV_STREAM_PORT=%q: %v\n", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_STREAM_PERIOD"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Stream.Period = dur
		} else {
			fmt.Fprintf(os.Stderr, "configuration: ignoring ENV_STREAM_PERIOD=%q: %v\n", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_HTTP_LISTEN"); ok {
		c.HTTP.ListenAddress = val
	}
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid IPv4 address %q", s)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%q is not an IPv4 address", s)
	}
	return addr, nil
}
