// SPDX-License-Identifier: MIT
//
// Package netif owns the single network interface: the mutual-exclusion domain
// that serializes socket use between the streaming and HTTP tasks, and the
// one-shot link-ready signal raised by the bring-up task.
package netif

import (
	"context"
	"net"
	"net/netip"
	"sync"

	applog "specstream/internal/log"

	"github.com/pkg/errors"
)

// Interface is the shared network interface handle.
type Interface struct {
	mu sync.Mutex

	readyOnce sync.Once
	ready     chan struct{}
	name      string
	addr      netip.Addr
	linkUp    bool
}

// New returns an interface that is not yet ready.
func New() *Interface {
	return &Interface{ready: make(chan struct{})}
}

// Do runs fn while holding the network-interface lock.
func (i *Interface) Do(fn func() error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return fn()
}

// SignalReady records the link state and releases every WaitReady caller.
// Only the first call has any effect.
func (i *Interface) SignalReady(name string, addr netip.Addr, linkUp bool) {
	i.readyOnce.Do(func() {
		i.name = name
		i.addr = addr
		i.linkUp = linkUp
		close(i.ready)
	})
}

// Ready returns a channel closed once the interface is ready.
func (i *Interface) Ready() <-chan struct{} { return i.ready }

// WaitReady blocks until SignalReady has been called or ctx is done.
func (i *Interface) WaitReady(ctx context.Context) error {
	select {
	case <-i.ready:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "netif: waiting for link")
	}
}

// Status returns what bring-up recorded. It is only meaningful once ready.
func (i *Interface) Status() (name string, addr netip.Addr, linkUp bool) {
	select {
	case <-i.ready:
		return i.name, i.addr, i.linkUp
	default:
		return "", netip.Addr{}, false
	}
}

// Link describes an interface found by a LinkDetector.
type Link struct {
	Name string
	Addr netip.Addr
	Up   bool
}

// LinkDetector inspects the physical link.
type LinkDetector interface {
	Detect(ctx context.Context) (Link, error)
}

// BringUp is the one-shot network bring-up task. A link that is down is
// reported but does not stop the system from starting; only a detector error
// leaves the interface unsignalled.
func BringUp(ctx context.Context, detector LinkDetector, iface *Interface) error {
	link, err := detector.Detect(ctx)
	if err != nil {
		return errors.Wrap(err, "netif: link detection failed")
	}
	if link.Up {
		applog.Infof("Netif: Link up on %s (%s)", link.Name, link.Addr)
	} else {
		applog.Warnf("Netif: Cable not connected on %s", link.Name)
	}
	iface.SignalReady(link.Name, link.Addr, link.Up)
	return nil
}

// SystemLink detects the link from the host's interface table. Name selects an
// interface; when empty the first up, non-loopback interface with an IPv4
// address is used, falling back to loopback.
type SystemLink struct {
	Name string
}

var _ LinkDetector = SystemLink{}

func (s SystemLink) Detect(ctx context.Context) (Link, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return Link{}, errors.Wrap(err, "list interfaces")
	}

	var loopback *Link
	for _, ifi := range ifaces {
		if s.Name != "" && ifi.Name != s.Name {
			continue
		}
		link := Link{
			Name: ifi.Name,
			Addr: firstIPv4(ifi),
			Up:   ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagRunning != 0,
		}
		if s.Name != "" {
			return link, nil
		}
		if ifi.Flags&net.FlagLoopback != 0 {
			if loopback == nil && link.Up {
				loopback = &link
			}
			continue
		}
		if link.Up && link.Addr.IsValid() {
			return link, nil
		}
	}

	if s.Name != "" {
		return Link{}, errors.Errorf("interface %q not found", s.Name)
	}
	if loopback != nil {
		return *loopback, nil
	}
	return Link{Name: "none"}, nil
}

func firstIPv4(ifi net.Interface) netip.Addr {
	addrs, err := ifi.Addrs()
	if err != nil {
		return netip.Addr{}
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			addr, _ := netip.AddrFromSlice(ip4)
			return addr
		}
	}
	return netip.Addr{}
}
