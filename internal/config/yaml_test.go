// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"specstream/internal/window"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
audio:
  source: tone
  sample_rate: 44100
pipeline:
  sound_buffer_size: 1024
  window: hann
stream:
  destination_address: 10.0.0.7
  destination_port: 7000
  period: 250ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Pipeline.SoundBufferSize != 1024 {
		t.Errorf("sound buffer = %d, want 1024", cfg.Pipeline.SoundBufferSize)
	}
	if cfg.Stream.Period != 250*time.Millisecond {
		t.Errorf("period = %s, want 250ms", cfg.Stream.Period)
	}
	// Untouched sections keep their defaults.
	if cfg.HTTP.ListenAddress != DefaultHTTPListenAddress {
		t.Errorf("http listen = %q, want %q", cfg.HTTP.ListenAddress, DefaultHTTPListenAddress)
	}
	if cfg.Pipeline.MailboxPoolSize != DefaultMailboxPoolSize {
		t.Errorf("pool size = %d, want %d", cfg.Pipeline.MailboxPoolSize, DefaultMailboxPoolSize)
	}

	sys, err := cfg.System()
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	if got := sys.DestinationAddrPort().String(); got != "10.0.0.7:7000" {
		t.Errorf("destination = %s, want 10.0.0.7:7000", got)
	}
	if sys.Window != window.Hann {
		t.Errorf("window = %s, want hann", sys.Window)
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{"unknown source", "audio:\n  source: mic\n"},
		{"wav without file", "audio:\n  source: wav\n"},
		{"sample rate too low", "audio:\n  sample_rate: 100\n"},
		{"pool size zero", "pipeline:\n  mailbox_pool_size: 0\n"},
		{"unknown kernel", "pipeline:\n  fft_kernel: fftw\n"},
		{"unknown window", "pipeline:\n  window: kaiser\n"},
		{"ipv6 destination", "stream:\n  destination_address: \"::1\"\n"},
		{"zero port", "stream:\n  destination_port: 0\n"},
		{"zero period", "stream:\n  period: 0s\n"},
		{"sub-millisecond period", "stream:\n  period: 1500us\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeTempConfig(t, tt.content)
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_STREAM_DESTINATION", "192.168.1.20")
	t.Setenv("ENV_STREAM_PORT", "5005")
	t.Setenv("ENV_STREAM_PERIOD", "40ms")
	t.Setenv("ENV_HTTP_LISTEN", "127.0.0.1:9999")
	t.Setenv("ENV_LOG_LEVEL", "debug")

	path := writeTempConfig(t, "stream:\n  destination_port: 7000\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Stream.DestinationAddress != "192.168.1.20" {
		t.Errorf("destination = %q", cfg.Stream.DestinationAddress)
	}
	if cfg.Stream.DestinationPort != 5005 {
		t.Errorf("port = %d, want env value 5005", cfg.Stream.DestinationPort)
	}
	if cfg.Stream.Period != 40*time.Millisecond {
		t.Errorf("period = %s", cfg.Stream.Period)
	}
	if cfg.HTTP.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("http listen = %q", cfg.HTTP.ListenAddress)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadConfig_BadEnvIgnored(t *testing.T) {
	t.Setenv("ENV_STREAM_PORT", "not-a-port")
	path := writeTempConfig(t, "stream:\n  destination_port: 7000\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Stream.DestinationPort != 7000 {
		t.Errorf("port = %d, want file value 7000", cfg.Stream.DestinationPort)
	}
}
