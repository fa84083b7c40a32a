// SPDX-License-Identifier: MIT
//
// Package httpconfig implements the minimal HTTP/1.0 configuration server.
// Connections are handled one at a time on a raw TCP listener: accept, bounded
// receives, dispatch, one response, close.
//
//	GET /config  -> 200, current configuration as JSON
//	GET /system  -> 200, task and resource summary
//	PUT /config  -> 200, configuration after applying the payload
//	GET|PUT other paths -> 404, any other method -> 501
package httpconfig

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"specstream/internal/config"
	applog "specstream/internal/log"
	"specstream/internal/system"

	"github.com/pkg/errors"
)

// recvBufferSize bounds a single received message, headers and body alike.
const recvBufferSize = 1024

// ConfigStore is the live configuration the server reads and patches.
type ConfigStore interface {
	Load() config.SystemConfig
	Apply(patch config.Patch) (config.SystemConfig, error)
}

// StatsProvider renders the /system body.
type StatsProvider interface {
	Summary() string
}

// NetworkLock serializes use of the network interface.
type NetworkLock interface {
	Do(fn func() error) error
}

// Options holds the server timeouts.
type Options struct {
	AcceptTimeout  time.Duration // Longest time the network lock is held waiting for a client
	ReceiveTimeout time.Duration // Per read on an accepted connection
	PollInterval   time.Duration // Pause between accept attempts
}

// Server is the HTTP configuration task.
type Server struct {
	listener *net.TCPListener
	store    ConfigStore
	stats    StatsProvider
	netif    NetworkLock
	opts     Options
	task     *system.Task

	buf  []byte
	body []byte // PUT payload, assembled from one or more reads
}

// Listen binds the server on address. task may be nil.
func Listen(address string, opts Options, store ConfigStore, stats StatsProvider, netif NetworkLock, task *system.Task) (*Server, error) {
	if store == nil || stats == nil || netif == nil {
		return nil, errors.New("HTTP: store, stats and network lock are required")
	}
	if opts.AcceptTimeout <= 0 || opts.ReceiveTimeout <= 0 {
		return nil, errors.New("HTTP: accept and receive timeouts must be positive")
	}
	laddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "HTTP: resolve '%s'", address)
	}
	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, errors.Wrapf(err, "HTTP: listen on '%s'", address)
	}
	applog.Infof("HTTP: Listening on %s", ln.Addr())
	return &Server{
		listener: ln,
		store:    store,
		stats:    stats,
		netif:    netif,
		opts:     opts,
		task:     task,
		buf:      make([]byte, recvBufferSize),
		body:     make([]byte, 0, recvBufferSize),
	}, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Close stops the listener. Serve returns after its current connection.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Serve accepts and handles connections until ctx is done or the listener is
// closed.
func (s *Server) Serve(ctx context.Context) error {
	defer s.task.SetState(system.Stopped)
	for {
		s.task.SetState(system.Waiting)
		if !s.pause(ctx) {
			return nil
		}

		conn, err := s.accept()
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				continue
			case errors.Is(err, net.ErrClosed):
				applog.Infof("HTTP: Listener closed")
				return nil
			default:
				s.task.Fail()
				applog.Warnf("HTTP: Accept failed: %v", err)
				continue
			}
		}

		s.task.SetState(system.Running)
		if err := s.handle(conn); err != nil {
			s.task.Fail()
			applog.WithField("remote", conn.RemoteAddr().String()).Warnf("HTTP: %v", err)
		} else {
			s.task.Cycle()
		}
		if err := s.netif.Do(conn.Close); err != nil {
			applog.Debugf("HTTP: Close failed: %v", err)
		}
	}
}

// pause waits for the poll interval and reports whether serving should go on.
func (s *Server) pause(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if s.opts.PollInterval <= 0 {
		return true
	}
	timer := time.NewTimer(s.opts.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// accept waits at most AcceptTimeout for a client while holding the network lock.
func (s *Server) accept() (*net.TCPConn, error) {
	var conn *net.TCPConn
	err := s.netif.Do(func() error {
		if err := s.listener.SetDeadline(time.Now().Add(s.opts.AcceptTimeout)); err != nil {
			return err
		}
		c, err := s.listener.AcceptTCP()
		conn = c
		return err
	})
	return conn, err
}

// handle serves one request. The caller closes conn on every path.
func (s *Server) handle(conn *net.TCPConn) error {
	n, err := s.receive(conn)
	if err != nil {
		return errors.Wrap(err, "no request data")
	}
	req := ParseRequest(s.buf[:n])
	applog.Debugf("HTTP: %s %s", req.Method, req.Path)

	resp := s.dispatch(conn, req)
	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.ReceiveTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(resp); err != nil {
		return errors.Wrap(err, "write response")
	}
	return nil
}

func (s *Server) receive(conn *net.TCPConn) (int, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.opts.ReceiveTimeout)); err != nil {
		return 0, err
	}
	return conn.Read(s.buf)
}

func (s *Server) dispatch(conn *net.TCPConn, req Request) []byte {
	switch req.Method {
	case Get:
		switch req.Path {
		case "/config":
			return s.configResponse(s.store.Load())
		case "/system":
			return FormatResponse(statusOK, headerConnectionClosed, s.stats.Summary())
		}
	case Put:
		if req.Path == "/config" {
			return s.configResponse(s.applyPayload(conn, req))
		}
	default:
		applog.Warnf("HTTP: Not implemented method")
		return FormatResponse(statusNotImplemented, headerHTML, bodyNotImplemented)
	}
	applog.Warnf("HTTP: Not supported request %s %s", req.Method, req.Path)
	return FormatResponse(statusNotFound, headerHTML, bodyNotFound)
}

// applyPayload applies a PUT body and returns the resulting configuration.
// Reads continue while the first message carried no payload or fewer bytes
// than its Content-Length, up to recvBufferSize in total. A missing, short or
// invalid payload changes nothing.
func (s *Server) applyPayload(conn *net.TCPConn, req Request) config.SystemConfig {
	// req.Body aliases s.buf, which each receive overwrites
	body := append(s.body[:0], req.Body...)
	want := min(req.ContentLength, cap(s.body))
	for len(body) == 0 || len(body) < want {
		n, err := s.receive(conn)
		if err != nil || n == 0 {
			applog.Warnf("HTTP: Incomplete PUT data (%d of %d bytes): %v", len(body), req.ContentLength, err)
			return s.store.Load()
		}
		n = min(n, cap(s.body)-len(body))
		body = append(body, s.buf[:n]...)
	}

	patch, err := config.ParsePatch(body)
	if err != nil {
		applog.Warnf("HTTP: Ignoring config payload: %v", err)
		return s.store.Load()
	}
	cfg, err := s.store.Apply(patch)
	if err != nil {
		applog.Warnf("HTTP: Rejected config payload: %v", err)
		return cfg
	}
	applog.Infof("HTTP: Configuration updated")
	return cfg
}

func (s *Server) configResponse(cfg config.SystemConfig) []byte {
	body, err := json.Marshal(cfg)
	if err != nil {
		applog.Errorf("HTTP: Encoding configuration: %v", err)
		body = nil
	}
	return FormatResponse(statusOK, headerConnectionClosed, string(body))
}
