package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture, analysis and streaming pipeline.
const (
	// Audio capture defaults
	DefaultAudioSource   = SourceTone
	DefaultDeviceID      = MinDeviceID // System default input device
	DefaultSampleRate    = 16000       // Hz
	DefaultChunkSize     = 256         // Samples per capture callback
	DefaultToneFrequency = 1000.0      // Hz, synthetic source only

	// Pipeline defaults
	DefaultMailboxPoolSize = 4    // Chunks in flight between capture and sampling
	DefaultSoundBufferSize = 2048 // Cyclic buffer capacity (power of 2)
	DefaultFFTKernel       = KernelGonum
	DefaultWindow          = "rectangle"

	// Streaming defaults
	DefaultStreamLocalAddress = ":0"
	DefaultStreamDestination  = "127.0.0.1"
	DefaultStreamPort         = 9090
	DefaultSamplingPeriod     = 100 * time.Millisecond

	// HTTP configuration server defaults
	DefaultHTTPListenAddress  = ":8080"
	DefaultHTTPAcceptTimeout  = 10 * time.Millisecond
	DefaultHTTPReceiveTimeout = 500 * time.Millisecond
	DefaultHTTPPollInterval   = 20 * time.Millisecond

	// Display defaults
	DefaultDisplayListenAddress = ":8081"
	DefaultDisplayInterval      = 100 * time.Millisecond

	// Hardware and processing limits
	MinDeviceID          = -1     // -1 represents system default device
	MinSampleRate        = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate        = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames      = 1 << 16
	MinSamplingPeriod    = time.Millisecond
	MaxSamplingPeriod    = time.Minute
	MaxMailboxPoolSize   = 64
	DefaultLogLevel      = "info"
	DefaultNetworkIfName = ""
)

// Audio sources selectable in the startup configuration.
const (
	SourcePortAudio = "portaudio"
	SourceWAV       = "wav"
	SourceTone      = "tone"
)

// Transform kernels selectable in the startup configuration.
const (
	KernelGonum = "gonum"
	KernelGoDSP = "godsp"
)
