// SPDX-License-Identifier: MIT

// Package transport carries display frames to observers. The UDP amplitude
// stream lives in the udp subpackage.
package transport

// Transport sends display frames. Implementations must be safe for concurrent
// use and must not block the caller on a slow observer.
type Transport interface {
	Send(data any) error
	Close() error
}
