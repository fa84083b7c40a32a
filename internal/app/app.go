// SPDX-License-Identifier: MIT

// Package app builds the pipeline from the startup configuration and runs its
// tasks. Components are constructed leaves first:
//
//	registry, config store, mailbox, sound buffer, spectrum buffer
//	pipeline, network interface
//	streamer, HTTP server, display
//	capture source, sampler
//
// Start order is the reverse of data flow so that every consumer is waiting
// before its producer runs.
package app

import (
	"context"
	"net"
	"net/netip"
	"runtime"

	"specstream/internal/analysis"
	"specstream/internal/audio"
	"specstream/internal/config"
	"specstream/internal/display"
	"specstream/internal/httpconfig"
	applog "specstream/internal/log"
	"specstream/internal/mailbox"
	"specstream/internal/netif"
	"specstream/internal/soundbuf"
	"specstream/internal/spectrum"
	"specstream/internal/system"
	"specstream/internal/transport"
	"specstream/internal/transport/udp"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Task names as they appear in the /system summary.
const (
	TaskNetif     = "netif"
	TaskCapture   = "capture"
	TaskSampling  = "sampling"
	TaskSpectral  = "spectral"
	TaskStreaming = "streaming"
	TaskHTTP      = "http"
	TaskDisplay   = "display"
)

// System owns every component of a running pipeline.
type System struct {
	cfg *config.Config

	Registry    *system.Registry
	Store       *config.Store
	Mailbox     *mailbox.Mailbox
	SoundBuffer *soundbuf.Buffer
	Spectrum    *spectrum.Buffer
	Pipeline    *analysis.Pipeline
	Netif       *netif.Interface

	detector netif.LinkDetector
	source   audio.Source
	capture  *audio.Capture
	sampler  *audio.Sampler
	streamer *udp.Streamer      // nil when streaming is disabled
	sender   *udp.UDPSender     // nil when streaming is disabled
	http     *httpconfig.Server // nil when the HTTP server is disabled
	display  *display.Task      // nil when the display is disabled
}

// Option customizes New.
type Option func(*System)

// WithLinkDetector replaces the host interface table as the link source.
func WithLinkDetector(d netif.LinkDetector) Option {
	return func(s *System) { s.detector = d }
}

// WithSource replaces the capture source selected by the configuration.
func WithSource(src audio.Source) Option {
	return func(s *System) { s.source = src }
}

// New constructs the system. It fails only when a core component cannot be
// built; a network endpoint that cannot be bound disables its feature.
func New(cfg *config.Config, opts ...Option) (*System, error) {
	if cfg == nil {
		return nil, errors.New("app: configuration is required")
	}
	initial, err := cfg.System()
	if err != nil {
		return nil, errors.Wrap(err, "app: initial configuration")
	}

	s := &System{
		cfg:      cfg,
		Registry: system.NewRegistry(),
		Netif:    netif.New(),
		detector: netif.SystemLink{Name: cfg.Network.Interface},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.Store, err = config.NewStore(initial); err != nil {
		return nil, errors.Wrap(err, "app: config store")
	}
	if s.Mailbox, err = mailbox.New(cfg.Pipeline.MailboxPoolSize, cfg.Audio.ChunkSize); err != nil {
		return nil, errors.Wrap(err, "app: sample mailbox")
	}
	if s.SoundBuffer, err = soundbuf.New(cfg.Pipeline.SoundBufferSize, initial.AudioSampleRate); err != nil {
		return nil, errors.Wrap(err, "app: sound buffer")
	}
	bins := analysis.TransformSize(cfg.Pipeline.SoundBufferSize) / 2
	if s.Spectrum, err = spectrum.New(bins); err != nil {
		return nil, errors.Wrap(err, "app: spectrum buffer")
	}
	kernel, err := analysis.KernelByName(cfg.Pipeline.FFTKernel)
	if err != nil {
		return nil, errors.Wrap(err, "app: transform kernel")
	}
	s.Pipeline, err = analysis.NewPipeline(s.SoundBuffer, s.Spectrum, s.Store,
		cfg.Pipeline.SoundBufferSize, kernel, s.Registry.Register(TaskSpectral))
	if err != nil {
		return nil, errors.Wrap(err, "app: spectral pipeline")
	}

	s.Registry.Register(TaskNetif)
	s.capture = audio.NewCapture(s.Mailbox, s.Store, s.Registry.Register(TaskCapture))
	s.sampler = audio.NewSampler(s.Mailbox, s.SoundBuffer, s.Registry.Register(TaskSampling))
	if s.source == nil {
		if s.source, err = newSource(cfg.Audio, s.Store); err != nil {
			return nil, err
		}
	}

	s.setupStreaming()
	s.setupHTTP()
	s.setupDisplay()
	s.registerGauges()
	return s, nil
}

func newSource(cfg config.AudioConfig, store *config.Store) (audio.Source, error) {
	switch cfg.Source {
	case config.SourcePortAudio:
		return audio.NewPortAudioSource(cfg.InputDevice, cfg.SampleRate, cfg.ChunkSize, cfg.LowLatency), nil
	case config.SourceWAV:
		src, err := audio.NewWAVSource(cfg.WAVFile, cfg.ChunkSize)
		if err != nil {
			return nil, errors.Wrap(err, "app: wav source")
		}
		if src.SampleRate() != cfg.SampleRate {
			applog.Warnf("App: %s is %d Hz, chunks are stamped with the configured %d Hz",
				cfg.WAVFile, src.SampleRate(), cfg.SampleRate)
		}
		return src, nil
	case config.SourceTone:
		src, err := audio.NewToneSource(cfg.ToneFrequency, cfg.ChunkSize, store)
		if err != nil {
			return nil, errors.Wrap(err, "app: tone source")
		}
		return src, nil
	default:
		return nil, errors.Errorf("app: unknown audio source %q", cfg.Source)
	}
}

func (s *System) setupStreaming() {
	task := s.Registry.Register(TaskStreaming)
	if !s.cfg.Stream.Enabled {
		task.SetState(system.Stopped)
		return
	}
	sender, err := udp.NewUDPSender(s.cfg.Stream.LocalAddress)
	if err != nil {
		task.SetState(system.Stopped)
		applog.Errorf("App: Streaming disabled: %v", err)
		return
	}
	streamer, err := udp.NewStreamer(sender, s.Pipeline, s.Spectrum, s.Store, s.Netif, task)
	if err != nil {
		sender.Close()
		task.SetState(system.Stopped)
		applog.Errorf("App: Streaming disabled: %v", err)
		return
	}
	s.sender, s.streamer = sender, streamer
}

func (s *System) setupHTTP() {
	task := s.Registry.Register(TaskHTTP)
	if !s.cfg.HTTP.Enabled {
		task.SetState(system.Stopped)
		return
	}
	opts := httpconfig.Options{
		AcceptTimeout:  s.cfg.HTTP.AcceptTimeout,
		ReceiveTimeout: s.cfg.HTTP.ReceiveTimeout,
		PollInterval:   s.cfg.HTTP.PollInterval,
	}
	server, err := httpconfig.Listen(s.cfg.HTTP.ListenAddress, opts, s.Store, s.Registry, s.Netif, task)
	if err != nil {
		task.SetState(system.Stopped)
		applog.Errorf("App: HTTP server disabled: %v", err)
		return
	}
	s.http = server
}

func (s *System) setupDisplay() {
	if !s.cfg.Display.Enabled {
		return
	}
	task := s.Registry.Register(TaskDisplay)

	var tr transport.Transport
	if addr := s.cfg.Display.ListenAddress; addr != "" {
		ws, err := transport.NewWebSocketTransport(addr)
		if err != nil {
			task.SetState(system.Stopped)
			applog.Errorf("App: Display disabled: %v", err)
			return
		}
		tr = ws
	} else {
		tr = transport.NewLoggingTransport()
	}

	d, err := display.New(s.Spectrum, s.Pipeline, tr, s.cfg.Display.Interval, task)
	if err != nil {
		tr.Close()
		task.SetState(system.Stopped)
		applog.Errorf("App: Display disabled: %v", err)
		return
	}
	s.display = d
}

func (s *System) registerGauges() {
	s.Registry.AddGauge("mailbox.posted", s.Mailbox.Posted)
	s.Registry.AddGauge("mailbox.dropped", s.Mailbox.Dropped)
	s.Registry.AddGauge("soundbuf.written", s.SoundBuffer.Written)
	s.Registry.AddGauge("spectrum.published", func() uint64 {
		seq, _ := s.Spectrum.Sequence()
		return seq
	})
	s.Registry.AddGauge("config.version", s.Store.Version)
	if s.sender != nil {
		s.Registry.AddGauge("udp.sent", s.sender.Sent)
		s.Registry.AddGauge("udp.failed", s.sender.Failed)
	}
}

// HTTPAddr returns the bound HTTP address, or nil when the server is disabled.
func (s *System) HTTPAddr() net.Addr {
	if s.http == nil {
		return nil
	}
	return s.http.Addr()
}

// StreamAddr returns the local UDP address, or nil when streaming is disabled.
func (s *System) StreamAddr() net.Addr {
	if s.sender == nil {
		return nil
	}
	return s.sender.LocalAddr()
}

// Run brings the network up, waits for the link-ready signal, then runs every
// task until ctx is done. A task that fails is logged and stops on its own; the
// rest of the system keeps running.
func (s *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	defer s.Close()

	netTask := s.Registry.Register(TaskNetif)
	netTask.SetState(system.Running)
	g.Go(func() error {
		defer netTask.SetState(system.Stopped)
		if err := netif.BringUp(ctx, s.detector, s.Netif); err != nil {
			netTask.Fail()
			applog.Errorf("App: %v, starting without link information", err)
			s.Netif.SignalReady("", netip.Addr{}, false)
			return nil
		}
		netTask.Cycle()
		return nil
	})

	if err := s.Netif.WaitReady(ctx); err != nil {
		return g.Wait()
	}
	name, addr, up := s.Netif.Status()
	applog.Infof("App: Network ready (Interface: %q, Address: %s, Link: %t, GOMAXPROCS: %d)",
		name, addr, up, runtime.GOMAXPROCS(0))

	s.spawn(ctx, g, TaskSampling, s.sampler.Run)
	s.spawn(ctx, g, TaskSpectral, s.Pipeline.Run)
	if s.streamer != nil {
		s.spawn(ctx, g, TaskStreaming, s.streamer.Run)
	}
	if s.http != nil {
		s.spawn(ctx, g, TaskHTTP, s.http.Serve)
	}
	if s.display != nil {
		s.spawn(ctx, g, TaskDisplay, s.display.Run)
	}
	s.spawn(ctx, g, TaskCapture, func(ctx context.Context) error {
		return s.source.Run(ctx, s.capture)
	})

	return g.Wait()
}

// spawn runs fn in the group. An error ends that task only.
func (s *System) spawn(ctx context.Context, g *errgroup.Group, name string, fn func(context.Context) error) {
	g.Go(func() error {
		if err := fn(ctx); err != nil {
			task := s.Registry.Register(name)
			task.Fail()
			task.SetState(system.Stopped)
			applog.WithField("task", name).Errorf("App: Task stopped: %v", err)
		}
		return nil
	})
}

// Close releases the network endpoints. It is called by Run on return and is
// safe to call more than once.
func (s *System) Close() error {
	var first error
	if s.http != nil {
		if err := s.http.Close(); err != nil && !errors.Is(err, net.ErrClosed) && first == nil {
			first = err
		}
	}
	if s.streamer != nil {
		if err := s.streamer.Close(); err != nil && !errors.Is(err, net.ErrClosed) && first == nil {
			first = err
		}
	}
	return first
}
