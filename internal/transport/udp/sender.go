// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"

	applog "specstream/internal/log"

	"github.com/pkg/errors"
)

// ErrSocketClosed is returned once the sender's socket is gone. It is the only
// send error that stops the streaming task.
var ErrSocketClosed = errors.New("udp: socket closed")

// UDPSender owns one UDP socket, bound once, and sends datagrams to whatever
// destination each call names.
type UDPSender struct {
	conn   *net.UDPConn
	mu     sync.Mutex // Protects conn during Close
	closed bool

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewUDPSender binds a UDP socket on localAddress, e.g. ":0" for any port.
func NewUDPSender(localAddress string) (*UDPSender, error) {
	laddr, err := net.ResolveUDPAddr("udp4", localAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve UDP local address '%s'", localAddress)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, errors.Wrapf(err, "bind UDP socket on '%s'", localAddress)
	}
	applog.Infof("UDP Sender: Socket bound on %s", conn.LocalAddr())
	return &UDPSender{conn: conn}, nil
}

// LocalAddr returns the bound address.
func (s *UDPSender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// SendTo transmits data as a single datagram to dest.
func (s *UDPSender) SendTo(data []byte, dest netip.AddrPort) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.failed.Add(1)
		return ErrSocketClosed
	}
	_, err := s.conn.WriteToUDPAddrPort(data, dest)
	s.mu.Unlock()

	if err != nil {
		s.failed.Add(1)
		if errors.Is(err, net.ErrClosed) {
			return errors.Wrap(ErrSocketClosed, err.Error())
		}
		return errors.Wrapf(err, "send %d bytes to %s", len(data), dest)
	}
	s.sent.Add(1)
	return nil
}

// Sent returns the number of datagrams handed to the kernel.
func (s *UDPSender) Sent() uint64 { return s.sent.Load() }

// Failed returns the number of failed sends.
func (s *UDPSender) Failed() uint64 { return s.failed.Load() }

// Close closes the socket. Later sends fail with ErrSocketClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Already closed
	}
	s.closed = true
	applog.Infof("UDP Sender: Closing socket %s", s.conn.LocalAddr())
	if err := s.conn.Close(); err != nil {
		return errors.Wrap(err, "close UDP socket")
	}
	return nil
}

// IsTransient reports whether err belongs to the error class expected on a
// flaky or disconnected link.
func IsTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ENETDOWN,
		syscall.ENOBUFS,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err means the socket can no longer be used.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSocketClosed) || errors.Is(err, net.ErrClosed)
}

// Ensure UDPSender satisfies the io.Closer interface.
var _ interface{ Close() error } = (*UDPSender)(nil)
